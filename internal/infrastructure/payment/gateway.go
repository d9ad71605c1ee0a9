package payment

import (
	"context"
	"fmt"
)

// MetadataTokenKey is the session metadata key binding a checkout session
// back to exactly one local payment link.
const MetadataTokenKey = "payment_token"

// SessionPaid is the gateway's payment status for a completed session.
const SessionPaid = "paid"

type CheckoutRequest struct {
	OrderID          string
	AmountMinor      int64 // minor units (cents)
	Currency         string
	PayerEmail       string
	CorrelationToken string
	SuccessURL       string
	CancelURL        string
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

type SessionResult struct {
	ID            string
	PaymentStatus string
	Metadata      map[string]string
}

// CheckoutGateway abstracts the external payment gateway. Failures are a
// distinct error domain (GatewayError) from local logic errors.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*SessionResult, error)
}

// GatewayError wraps any transport or validation failure from the remote
// gateway. The core never retries these automatically: a blind retry could
// double-charge or mint duplicate sessions.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
