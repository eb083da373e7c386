package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/coursebay/coursebay/internal/cart"
	"github.com/coursebay/coursebay/internal/httpx"
	"github.com/coursebay/coursebay/internal/order"
	"github.com/coursebay/coursebay/internal/payment"
)

func createIntentHandler(carts cart.Repository, gw payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		lines, err := carts.Lines(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[payment] cart lines for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment intent"})
			return
		}
		if len(lines) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "your cart is empty"})
			return
		}
		total, err := cart.Total(lines)
		if err != nil {
			log.Printf("[payment] cart total for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment intent"})
			return
		}
		courseIDs := make([]string, 0, len(lines))
		for _, l := range lines {
			courseIDs = append(courseIDs, l.CourseID)
		}
		intent, err := gw.CreateIntent(c.Request.Context(),
			total.Mul(decimal.NewFromInt(100)).IntPart(),
			payment.Metadata{UserID: uid, CourseIDs: courseIDs})
		if err != nil {
			log.Printf("[payment] create intent for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment intent"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
	}
}

// stripeWebhookHandler is the asynchronous trigger. Responses are for the
// gateway, not a buyer: 400 tells Stripe the payload was unauthentic, 500
// asks for redelivery, 200 acknowledges (including intentionally-unhandled
// event types).
func stripeWebhookHandler(gw payment.Gateway, rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
			return
		}
		ev, err := gw.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Printf("[webhook] rejected: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		ctx := c.Request.Context()
		switch ev.Type {
		case payment.EventPaymentSucceeded:
			if ev.Metadata.UserID == "" {
				// Ack so the gateway stops retrying a poisoned event.
				log.Printf("[webhook] event %s ref=%s has no userId metadata", ev.ID, ev.Reference)
				break
			}
			if _, err := rec.OnPaymentSuccess(ctx, ev.Metadata.UserID, ev.Reference, ev.Metadata, ev.Amount); err != nil {
				log.Printf("[webhook] reconcile ref=%s: %v", ev.Reference, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
				return
			}
		case payment.EventPaymentFailed:
			if err := rec.OnPaymentFailure(ctx, ev.Metadata.UserID, ev.Reference, ev.FailureMessage, ev.Amount); err != nil {
				log.Printf("[webhook] record failure ref=%s: %v", ev.Reference, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
				return
			}
		default:
			log.Printf("[webhook] unhandled event %s", ev.ID)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

// verifyPaymentHandler is the poll trigger: the buyer's browser calls it from
// the confirmation page, possibly before or after the webhook landed, and
// possibly many times.
func verifyPaymentHandler(orders order.Repository, gw payment.Gateway, rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Query("payment_intent")
		if ref == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_intent is required"})
			return
		}
		uid := c.GetString(httpx.KeyUserID)
		resp, status := verifyReference(c.Request.Context(), uid, ref, orders, gw, rec)
		c.JSON(status, resp)
	}
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// confirmPaymentHandler is the client-callback trigger, invoked right after
// client-side confirmation succeeds. Same convergence path as verify.
func confirmPaymentHandler(orders order.Repository, gw payment.Gateway, rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.PaymentIntentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_intent_id is required"})
			return
		}
		uid := c.GetString(httpx.KeyUserID)
		resp, status := verifyReference(c.Request.Context(), uid, req.PaymentIntentID, orders, gw, rec)
		c.JSON(status, resp)
	}
}

func verifyReference(ctx context.Context, uid, ref string, orders order.Repository, gw payment.Gateway, rec *payment.Reconciler) (verifyResponse, int) {
	// Fast path: already reconciled, no gateway round trip. The reconciler
	// still runs to heal any missing enrollments. Another user's order must
	// not leak through the reconciler's own order-exists fast path.
	if o, _, err := orders.GetByPaymentRef(ctx, ref); err == nil {
		if o.UserID != uid {
			return verifyResponse{Success: false, Message: "no order found for this payment"}, http.StatusOK
		}
		return reconcileVerified(ctx, uid, ref, payment.Metadata{}, 0, rec)
	}

	intent, err := gw.GetIntent(ctx, ref)
	if err != nil {
		log.Printf("[verify] retrieve intent %s: %v", ref, err)
		return verifyResponse{Success: false, Message: "error retrieving payment information"}, http.StatusOK
	}
	if intent.Status != payment.IntentSucceeded {
		return verifyResponse{
			Success: false,
			Message: fmt.Sprintf("payment not completed. status: %s", intent.Status),
		}, http.StatusOK
	}
	return reconcileVerified(ctx, uid, ref, intent.Metadata, intent.Amount, rec)
}

func reconcileVerified(ctx context.Context, uid, ref string, md payment.Metadata, amountCents int64, rec *payment.Reconciler) (verifyResponse, int) {
	out, err := rec.OnPaymentSuccess(ctx, uid, ref, md, amountCents)
	if err != nil {
		log.Printf("[verify] reconcile ref=%s: %v", ref, err)
		return verifyResponse{Success: false, Message: "failed to verify payment"}, http.StatusInternalServerError
	}
	switch out.State {
	case payment.StateReconciled:
		return verifyResponse{Success: true, Message: out.Message, OrderID: out.OrderID}, http.StatusOK
	case payment.StateFailed:
		return verifyResponse{Success: false, Message: out.Message, OrderID: out.OrderID}, http.StatusOK
	default:
		return verifyResponse{Success: false, Message: "no items in cart and no order found for this payment"}, http.StatusOK
	}
}
