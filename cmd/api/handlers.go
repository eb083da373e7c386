package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursebay/coursebay/internal/cart"
	"github.com/coursebay/coursebay/internal/course"
	"github.com/coursebay/coursebay/internal/enroll"
	"github.com/coursebay/coursebay/internal/httpx"
	"github.com/coursebay/coursebay/internal/order"
)

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ---------- courses ----------

func listCoursesHandler(courses course.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := course.Query{
			Q:        c.Query("q"),
			Category: c.Query("category"),
			Limit:    intQuery(c, "limit", 20),
			Offset:   intQuery(c, "offset", 0),
		}
		items, err := courses.List(c.Request.Context(), q)
		if err != nil {
			log.Printf("[courses] list: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list courses"})
			return
		}
		if items == nil {
			items = []course.Course{}
		}
		c.JSON(http.StatusOK, course.ListResponse{
			Q: q.Q, Category: q.Category, Limit: q.Limit, Offset: q.Offset, Items: items,
		})
	}
}

func getCourseHandler(courses course.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, err := courses.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
			return
		}
		c.JSON(http.StatusOK, crs)
	}
}

func createCourseHandler(courses course.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req course.CreateCourseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a non-negative decimal"})
			return
		}
		crs := &course.Course{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Price:       price.StringFixed(2),
		}
		if err := courses.Create(c.Request.Context(), crs); err != nil {
			log.Printf("[courses] create: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create course"})
			return
		}
		c.JSON(http.StatusCreated, crs)
	}
}

// ---------- cart ----------

func getCartHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		lines, err := carts.Lines(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[cart] lines for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch cart"})
			return
		}
		total, err := cart.Total(lines)
		if err != nil {
			log.Printf("[cart] total for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch cart"})
			return
		}
		if lines == nil {
			lines = []cart.Line{}
		}
		c.JSON(http.StatusOK, gin.H{"items": lines, "total": total.StringFixed(2)})
	}
}

type addToCartRequest struct {
	CourseID string `json:"course_id"`
	Quantity int    `json:"quantity"`
}

func addToCartHandler(carts cart.Repository, courses course.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.CourseID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "course_id is required"})
			return
		}
		if req.Quantity <= 0 {
			req.Quantity = 1
		}
		if _, err := courses.GetByID(c.Request.Context(), req.CourseID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
			return
		}
		line, err := carts.Add(c.Request.Context(), uid, req.CourseID, req.Quantity)
		if err != nil {
			log.Printf("[cart] add for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add item to cart"})
			return
		}
		c.JSON(http.StatusCreated, line)
	}
}

func removeCartItemHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		err := carts.Remove(c.Request.Context(), uid, c.Param("id"))
		switch {
		case errors.Is(err, cart.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
		case errors.Is(err, cart.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case err != nil:
			log.Printf("[cart] remove for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove item"})
		default:
			c.JSON(http.StatusOK, gin.H{"deleted": true})
		}
	}
}

func clearCartHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		n, err := carts.Clear(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[cart] clear for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cart"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": n})
	}
}

// ---------- orders (read-only: orders are created by reconciliation) ----------

func listOrdersHandler(orders order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		out, err := orders.ListByUser(c.Request.Context(), uid, intQuery(c, "limit", 20), intQuery(c, "offset", 0))
		if err != nil {
			log.Printf("[orders] list for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch orders"})
			return
		}
		if out == nil {
			out = []order.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": out})
	}
}

func orderStatsHandler(orders order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		stats, err := orders.Stats(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[orders] stats for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch order statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func getOrderHandler(orders order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		o, items, err := orders.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if o.UserID != uid {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if items == nil {
			items = []order.Item{}
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
	}
}

// ---------- enrollments ----------

func listEnrollmentsHandler(enrollments enroll.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		out, err := enrollments.ListByUser(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[enrollments] list for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch enrollments"})
			return
		}
		if out == nil {
			out = []enroll.Enrollment{}
		}
		c.JSON(http.StatusOK, gin.H{"enrollments": out})
	}
}

func enrollmentStatsHandler(enrollments enroll.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		stats, err := enrollments.Stats(c.Request.Context(), uid)
		if err != nil {
			log.Printf("[enrollments] stats for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch enrollment statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

type updateProgressRequest struct {
	Progress *int `json:"progress"`
}

func updateProgressHandler(enrollments enroll.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(httpx.KeyUserID)
		var req updateProgressRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Progress == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "progress is required"})
			return
		}
		if *req.Progress < 0 || *req.Progress > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "progress must be between 0 and 100"})
			return
		}
		err := enrollments.UpdateProgress(c.Request.Context(), c.Param("id"), uid, *req.Progress)
		if errors.Is(err, enroll.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "enrollment not found"})
			return
		}
		if err != nil {
			log.Printf("[enrollments] progress for %s: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}
