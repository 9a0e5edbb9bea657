package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway is the payment provider contract the engine consumes. The provider
// is an external collaborator: any non-2xx or transport failure surfaces as a
// *GatewayError so callers can distinguish "the gateway is down" from "the
// deposit does not exist".
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	CreateRefund(ctx context.Context, chargeID string, amount decimal.Decimal) (*Refund, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)
	VerifySignature(payload []byte, signature string) bool
}

// ChargeRequest describes a charge to create against the gateway.
type ChargeRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	PayerID  string            `json:"payer_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Charge is the gateway's view of a created or retrieved charge.
type Charge struct {
	ChargeID    string `json:"charge_id"`
	Status      string `json:"status"` // PENDING, PAID, FAILED
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Refund is the gateway's acknowledgement of a refund request.
type Refund struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"` // PENDING, COMPLETED, FAILED
}

// GatewayError is a typed external failure: a timeout, transport error, or
// non-2xx response from the provider. Retryable by the caller; never mutates
// local state.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Sign computes the webhook signature for a payload: hex HMAC-SHA256 under
// the shared webhook secret.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature compares an inbound signature against the expected HMAC in
// constant time.
func verifySignature(payload []byte, signature string, secret []byte) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
