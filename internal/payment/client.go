package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret []byte
	httpClient    *http.Client
}

// NewClient builds a gateway client for the given provider endpoint.
func NewClient(baseURL, apiKey, webhookSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: []byte(webhookSecret),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateCharge asks the provider to create a new charge and returns the
// provider's charge reference plus the redirect handle for the payer.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", req, &charge); err != nil {
		return nil, err
	}

	log.Debug().
		Str("charge_id", charge.ChargeID).
		Str("payer_id", req.PayerID).
		Str("amount", req.Amount.String()).
		Msg("created gateway charge")

	return &charge, nil
}

// CreateRefund asks the provider to refund a charge, in full when amount is
// zero.
func (c *Client) CreateRefund(ctx context.Context, chargeID string, amount decimal.Decimal) (*Refund, error) {
	body := map[string]interface{}{
		"charge_id": chargeID,
	}
	if !amount.IsZero() {
		body["amount"] = amount
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", body, &refund); err != nil {
		return nil, err
	}

	log.Debug().
		Str("charge_id", chargeID).
		Str("refund_id", refund.RefundID).
		Msg("created gateway refund")

	return &refund, nil
}

// GetCharge retrieves the current provider-side status of a charge.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var charge Charge
	if err := c.do(ctx, http.MethodGet, "/v1/charges/"+chargeID, nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// VerifySignature checks an inbound webhook payload against its signature
// header using the shared webhook secret.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	return verifySignature(payload, signature, c.webhookSecret)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Op: op, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &GatewayError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}

	return nil
}
