package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way stripe-cli does:
// v1 is HMAC-SHA256(secret, "<timestamp>.<payload>").
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func succeededPayload(ref string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "payment_intent.succeeded",
		"api_version": "2024-06-20",
		"data": {
			"object": {
				"id": %q,
				"object": "payment_intent",
				"amount": 2000,
				"status": "succeeded",
				"metadata": {
					"userId": "user-1",
					"courseIds": "[\"course-a\",\"course-b\"]"
				}
			}
		}
	}`, ref))
}

func TestParseWebhook_SucceededEvent(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := succeededPayload("pi_test_1")

	ev, err := gw.ParseWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != EventPaymentSucceeded {
		t.Fatalf("type=%v, want succeeded", ev.Type)
	}
	if ev.Reference != "pi_test_1" || ev.Amount != 2000 {
		t.Fatalf("ref=%s amount=%d", ev.Reference, ev.Amount)
	}
	if ev.Metadata.UserID != "user-1" {
		t.Fatalf("userId=%q", ev.Metadata.UserID)
	}
	if len(ev.Metadata.CourseIDs) != 2 || ev.Metadata.CourseIDs[0] != "course-a" {
		t.Fatalf("courseIds=%v", ev.Metadata.CourseIDs)
	}
}

func TestParseWebhook_FailedEvent(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := []byte(`{
		"id": "evt_test_2",
		"type": "payment_intent.payment_failed",
		"data": {
			"object": {
				"id": "pi_test_2",
				"object": "payment_intent",
				"amount": 500,
				"last_payment_error": {"message": "Your card was declined."}
			}
		}
	}`)

	ev, err := gw.ParseWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != EventPaymentFailed {
		t.Fatalf("type=%v, want failed", ev.Type)
	}
	if ev.FailureMessage != "Your card was declined." {
		t.Fatalf("failure message=%q", ev.FailureMessage)
	}
}

func TestParseWebhook_TamperedPayload(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := succeededPayload("pi_test_3")
	sig := signPayload(payload, testWebhookSecret, time.Now())

	tampered := succeededPayload("pi_attacker")
	if _, err := gw.ParseWebhook(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err=%v, want ErrBadSignature", err)
	}
}

func TestParseWebhook_WrongSecret(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := succeededPayload("pi_test_4")
	sig := signPayload(payload, "whsec_other", time.Now())

	if _, err := gw.ParseWebhook(payload, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err=%v, want ErrBadSignature", err)
	}
}

func TestParseWebhook_StaleTimestamp(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := succeededPayload("pi_test_5")
	sig := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	if _, err := gw.ParseWebhook(payload, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err=%v, want ErrBadSignature for replayed event", err)
	}
}

func TestParseWebhook_UnhandledType(t *testing.T) {
	t.Parallel()

	gw := NewStripeGateway("sk_test_x", testWebhookSecret)
	payload := []byte(`{"id": "evt_test_6", "type": "charge.refunded", "data": {"object": {}}}`)

	ev, err := gw.ParseWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != EventIgnored {
		t.Fatalf("type=%v, want ignored", ev.Type)
	}
}
