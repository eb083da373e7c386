package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursebay/coursebay/internal/cart"
	"github.com/coursebay/coursebay/internal/config"
	"github.com/coursebay/coursebay/internal/course"
	"github.com/coursebay/coursebay/internal/enroll"
	"github.com/coursebay/coursebay/internal/httpx"
	"github.com/coursebay/coursebay/internal/identity"
	"github.com/coursebay/coursebay/internal/order"
	"github.com/coursebay/coursebay/internal/payment"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[main] postgres config: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[main] postgres ping: %v", err)
	}
	defer pool.Close()

	courses := course.NewPGRepo(pool)
	carts := cart.NewPGRepo(pool)
	orders := order.NewPGRepo(pool)
	enrollments := enroll.NewPGRepo(pool)
	ids := identity.NewService(identity.NewPGRepo(pool), time.Duration(cfg.SessionTTLHours)*time.Hour)
	gw := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	rec := payment.NewReconciler(orders, enrollments, carts, courses)

	r := newRouter(ids, courses, carts, orders, enrollments, gw, rec)
	log.Printf("[main] api listening on %s", cfg.HTTPAddr)
	log.Fatal(r.Run(cfg.HTTPAddr))
}

func newRouter(
	ids *identity.Service,
	courses course.Repository,
	carts cart.Repository,
	orders order.Repository,
	enrollments enroll.Repository,
	gw payment.Gateway,
	rec *payment.Reconciler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.POST("/auth/register", registerHandler(ids))
	r.POST("/auth/login", loginHandler(ids))

	r.GET("/courses", listCoursesHandler(courses))
	r.GET("/courses/:id", getCourseHandler(courses))

	// Signature-gated, not session-gated: Stripe is the caller.
	r.POST("/payment/webhook", stripeWebhookHandler(gw, rec))

	auth := r.Group("/", httpx.RequireUser(ids))
	{
		auth.POST("/auth/logout", logoutHandler(ids))

		auth.GET("/cart", getCartHandler(carts))
		auth.POST("/cart", addToCartHandler(carts, courses))
		auth.DELETE("/cart", clearCartHandler(carts))
		auth.DELETE("/cart/:id", removeCartItemHandler(carts))

		auth.POST("/payment/create-intent", createIntentHandler(carts, gw))
		auth.GET("/payment/verify", verifyPaymentHandler(orders, gw, rec))
		auth.POST("/payment/confirm", confirmPaymentHandler(orders, gw, rec))

		auth.GET("/orders", listOrdersHandler(orders))
		auth.GET("/orders/stats", orderStatsHandler(orders))
		auth.GET("/orders/:id", getOrderHandler(orders))

		auth.GET("/enrollments", listEnrollmentsHandler(enrollments))
		auth.GET("/enrollments/stats", enrollmentStatsHandler(enrollments))
		auth.PATCH("/enrollments/:id/progress", updateProgressHandler(enrollments))

		auth.POST("/courses", httpx.RequireRole(identity.RoleAdmin), createCourseHandler(courses))
	}
	return r
}
