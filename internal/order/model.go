package order

import "time"

// Canonical status enum. Transitions are one-directional: pending may become
// paid, failed or cancelled; terminal rows are never overwritten.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func IsTerminal(status string) bool {
	return status == StatusPaid || status == StatusFailed || status == StatusCancelled
}

type Order struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
	// NUMERIC -> string
	Total         string     `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	PaymentRef    string     `json:"payment_ref"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Stats is the per-buyer purchase summary. TotalSpent sums paid orders only.
type Stats struct {
	TotalOrders int `json:"totalOrders"`
	// NUMERIC -> string
	TotalSpent      string `json:"totalSpent"`
	CompletedOrders int    `json:"completedOrders"`
}

// Item is a purchase-time snapshot; price is decoupled from the live course
// price and immutable after creation.
type Item struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	CourseID string `json:"course_id"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}
