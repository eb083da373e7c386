// Package payment holds the gateway adapter and the reconciliation core that
// converts confirmed payments into orders and enrollments exactly once.
package payment

import (
	"context"
	"errors"
)

var (
	// ErrBadSignature means the webhook payload could not be authenticated
	// and must be rejected without processing.
	ErrBadSignature = errors.New("webhook signature verification failed")
)

// Metadata rides on the payment intent so a purchase can be rebuilt even if
// the buyer's cart is gone by the time a gateway event arrives.
type Metadata struct {
	UserID    string
	CourseIDs []string
}

const IntentSucceeded = "succeeded"

// Intent mirrors the gateway's payment intent. ID is the payment reference.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64 // cents
	Metadata     Metadata
}

type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventIgnored          EventType = "ignored"
)

// Event is a verified, typed webhook notification.
type Event struct {
	ID             string
	Type           EventType
	Reference      string
	Amount         int64 // cents
	FailureMessage string
	Metadata       Metadata
}

// Gateway is the external payment collaborator. Implementations must treat
// CreateIntent metadata as opaque and return it intact from GetIntent.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, md Metadata) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	ParseWebhook(payload []byte, sigHeader string) (*Event, error)
}
