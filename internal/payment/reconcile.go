package payment

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursebay/coursebay/internal/cart"
	"github.com/coursebay/coursebay/internal/course"
	"github.com/coursebay/coursebay/internal/enroll"
	"github.com/coursebay/coursebay/internal/order"
)

// State of a payment reference after a reconciliation attempt.
type State string

const (
	// StateUnseen: no order exists and there was nothing to build one from.
	StateUnseen State = "unseen"
	// StateReconciled: an order exists with status=paid and every item has
	// an enrollment (or had one ensured just now).
	StateReconciled State = "reconciled"
	// StateFailed: an order exists with status=failed.
	StateFailed State = "failed"
)

type Outcome struct {
	State   State
	OrderID string
	Message string
}

// Reconciler is the single convergence point for the three racing triggers
// (webhook, verify poll, client confirm). All of them call OnPaymentSuccess
// with the same semantics; the orders.payment_ref uniqueness constraint is
// the only gate.
type Reconciler struct {
	orders      order.Repository
	enrollments enroll.Repository
	carts       cart.Repository
	courses     course.Repository
}

func NewReconciler(orders order.Repository, enrollments enroll.Repository, carts cart.Repository, courses course.Repository) *Reconciler {
	return &Reconciler{orders: orders, enrollments: enrollments, carts: carts, courses: courses}
}

// OnPaymentSuccess converges a confirmed payment onto exactly one paid order
// and one enrollment per purchased course. Safe to call any number of times
// for the same reference, from any trigger, in any interleaving.
func (r *Reconciler) OnPaymentSuccess(ctx context.Context, userID, ref string, md Metadata, amountCents int64) (*Outcome, error) {
	if o, items, err := r.orders.GetByPaymentRef(ctx, ref); err == nil {
		// Duplicate delivery or a later poll. "Order exists" does not prove
		// every enrollment was created on a prior partial failure, so the
		// items are re-checked unconditionally.
		r.ensureEnrollments(ctx, o, items)
		if o.Status == order.StatusFailed {
			return &Outcome{State: StateFailed, OrderID: o.ID, Message: "payment previously failed"}, nil
		}
		return &Outcome{State: StateReconciled, OrderID: o.ID, Message: "order already reconciled"}, nil
	} else if !errors.Is(err, order.ErrNotFound) {
		return nil, err
	}

	if userID == "" {
		userID = md.UserID
	}
	if userID == "" {
		// No buyer to attribute the purchase to; an order or enrollment
		// keyed to an empty user id must never be created.
		log.Printf("[reconcile] ref=%s succeeded event has no buyer id", ref)
		return &Outcome{State: StateUnseen, Message: "nothing to reconcile"}, nil
	}
	items, total, err := r.sourceItems(ctx, userID, md)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		// Not an error: the gateway may retry after the cart was already
		// consumed or manually cleared.
		return &Outcome{State: StateUnseen, Message: "nothing to reconcile"}, nil
	}

	if amountCents > 0 {
		if cents := total.Mul(decimal.NewFromInt(100)).IntPart(); cents != amountCents {
			log.Printf("[reconcile] ref=%s amount mismatch: gateway=%d computed=%d", ref, amountCents, cents)
		}
	}

	o := &order.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        order.StatusPaid,
		Total:         total.StringFixed(2),
		PaymentMethod: "card",
		PaymentRef:    ref,
	}
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].OrderID = o.ID
	}

	if err := r.orders.Create(ctx, o, items); err != nil {
		if errors.Is(err, order.ErrDuplicateReference) {
			// Lost the race against another trigger; the winner's row is
			// the outcome.
			won, wonItems, gerr := r.orders.GetByPaymentRef(ctx, ref)
			if gerr != nil {
				return nil, gerr
			}
			r.ensureEnrollments(ctx, won, wonItems)
			return &Outcome{State: StateReconciled, OrderID: won.ID, Message: "order already reconciled"}, nil
		}
		return nil, err
	}
	log.Printf("[reconcile] ref=%s created order %s total=%s items=%d", ref, o.ID, o.Total, len(items))

	r.ensureEnrollments(ctx, o, items)

	if n, err := r.carts.Clear(ctx, userID); err != nil {
		// The order is committed; a stale cart is healed by the buyer, not
		// by rolling back the purchase.
		log.Printf("[reconcile] ref=%s cart clear failed for user %s: %v", ref, userID, err)
	} else if n > 0 {
		log.Printf("[reconcile] ref=%s cleared %d cart lines for user %s", ref, n, userID)
	}

	return &Outcome{State: StateReconciled, OrderID: o.ID, Message: "order created"}, nil
}

// OnPaymentFailure records a gateway-reported failure. Terminal orders are
// never flipped: a failure event after a paid order is logged and dropped.
func (r *Reconciler) OnPaymentFailure(ctx context.Context, userID, ref, reason string, amountCents int64) error {
	o, _, err := r.orders.GetByPaymentRef(ctx, ref)
	if err == nil {
		if order.IsTerminal(o.Status) {
			if o.Status != order.StatusFailed {
				log.Printf("[reconcile] ref=%s failure event ignored: order %s already %s", ref, o.ID, o.Status)
			}
			return nil
		}
		if uerr := r.orders.UpdateStatus(ctx, o.ID, order.StatusFailed, reason); uerr != nil {
			if errors.Is(uerr, order.ErrTerminal) {
				log.Printf("[reconcile] ref=%s failure event ignored: order %s turned terminal", ref, o.ID)
				return nil
			}
			return uerr
		}
		return nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return err
	}

	if userID == "" {
		userID = "unknown"
	}
	total := decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100))
	failed := &order.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        order.StatusFailed,
		Total:         total.StringFixed(2),
		PaymentMethod: "card",
		PaymentRef:    ref,
		LastError:     reason,
	}
	if cerr := r.orders.Create(ctx, failed, nil); cerr != nil {
		if errors.Is(cerr, order.ErrDuplicateReference) {
			return nil
		}
		return cerr
	}
	log.Printf("[reconcile] ref=%s recorded failed order %s: %s", ref, failed.ID, reason)
	return nil
}

// sourceItems snapshots what is being purchased: the buyer's cart first,
// gateway metadata course ids second (quantity 1 each, live price).
func (r *Reconciler) sourceItems(ctx context.Context, userID string, md Metadata) ([]order.Item, decimal.Decimal, error) {
	if userID != "" {
		lines, err := r.carts.Lines(ctx, userID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if len(lines) > 0 {
			total, err := cart.Total(lines)
			if err != nil {
				return nil, decimal.Zero, err
			}
			items := make([]order.Item, 0, len(lines))
			for _, l := range lines {
				items = append(items, order.Item{CourseID: l.CourseID, Quantity: l.Quantity, Price: l.CoursePrice})
			}
			return items, total, nil
		}
	}

	if len(md.CourseIDs) == 0 {
		return nil, decimal.Zero, nil
	}
	courses, err := r.courses.ListByIDs(ctx, md.CourseIDs)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	items := make([]order.Item, 0, len(courses))
	for _, c := range courses {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			return nil, decimal.Zero, err
		}
		total = total.Add(price)
		items = append(items, order.Item{CourseID: c.ID, Quantity: 1, Price: c.Price})
	}
	return items, total, nil
}

func (r *Reconciler) ensureEnrollments(ctx context.Context, o *order.Order, items []order.Item) {
	if o.Status != order.StatusPaid {
		return
	}
	for _, it := range items {
		created, err := r.enrollments.Ensure(ctx, &enroll.Enrollment{
			ID:       uuid.NewString(),
			UserID:   o.UserID, // owner of the order, not the caller
			CourseID: it.CourseID,
			OrderID:  o.ID,
			Status:   enroll.StatusActive,
			Progress: 0,
		})
		if err != nil {
			// Healed on the next trigger for this reference.
			log.Printf("[reconcile] order=%s enrollment for course %s failed: %v", o.ID, it.CourseID, err)
			continue
		}
		if created {
			log.Printf("[reconcile] order=%s enrolled user %s in course %s", o.ID, o.UserID, it.CourseID)
		}
	}
}
