package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Metadata keys on the Stripe payment intent. courseIds is a JSON-encoded
// string array; both keys predate this service and must stay wire-compatible.
const (
	mdKeyUserID    = "userId"
	mdKeyCourseIDs = "courseIds"
)

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, md Metadata) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	params.AddMetadata(mdKeyUserID, md.UserID)
	ids, err := json.Marshal(md.CourseIDs)
	if err != nil {
		return nil, err
	}
	params.AddMetadata(mdKeyCourseIDs, string(ids))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := g.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header before touching the
// payload. Event types the reconciler does not care about come back as
// EventIgnored so the endpoint can still acknowledge them.
func (g *StripeGateway) ParseWebhook(payload []byte, sigHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch ev.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent from event %s: %w", ev.ID, err)
		}
		out := &Event{
			ID:        ev.ID,
			Reference: pi.ID,
			Amount:    pi.Amount,
			Metadata:  metadataFrom(pi.Metadata),
		}
		if ev.Type == "payment_intent.succeeded" {
			out.Type = EventPaymentSucceeded
		} else {
			out.Type = EventPaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureMessage = pi.LastPaymentError.Msg
			}
			if out.FailureMessage == "" {
				out.FailureMessage = "payment failed"
			}
		}
		return out, nil
	default:
		return &Event{ID: ev.ID, Type: EventIgnored}, nil
	}
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Metadata:     metadataFrom(pi.Metadata),
	}
}

func metadataFrom(md map[string]string) Metadata {
	out := Metadata{UserID: md[mdKeyUserID]}
	if raw := md[mdKeyCourseIDs]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &out.CourseIDs); err != nil {
			log.Printf("[stripe] unparseable courseIds metadata: %v", err)
		}
	}
	return out
}
