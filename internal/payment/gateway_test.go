package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClientCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/charges", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "user-1", req.PayerID)
		require.True(t, req.Amount.Equal(decimal.NewFromInt(200)))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Charge{
			ChargeID:    "CHG_123",
			Status:      "PENDING",
			RedirectURL: "https://pay.example/CHG_123",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "whsec", 5*time.Second)

	charge, err := client.CreateCharge(context.Background(), ChargeRequest{
		Amount:   decimal.NewFromInt(200),
		Currency: "USD",
		PayerID:  "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, "CHG_123", charge.ChargeID)
	require.Equal(t, "https://pay.example/CHG_123", charge.RedirectURL)
}

func TestClientCreateRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "CHG_123", body["charge_id"])

		json.NewEncoder(w).Encode(Refund{RefundID: "RFD_456", Status: "COMPLETED"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "whsec", 5*time.Second)

	refund, err := client.CreateRefund(context.Background(), "CHG_123", decimal.NewFromInt(200))
	require.NoError(t, err)
	require.Equal(t, "RFD_456", refund.RefundID)
}

func TestClientGatewayFailureIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "whsec", 5*time.Second)

	_, err := client.CreateRefund(context.Background(), "CHG_123", decimal.Zero)
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.True(t, errors.As(err, &gatewayErr))
	require.Equal(t, http.StatusServiceUnavailable, gatewayErr.StatusCode)
}

func TestClientUnreachableGatewayIsTyped(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "test-key", "whsec", 500*time.Millisecond)

	_, err := client.GetCharge(context.Background(), "CHG_123")
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.True(t, errors.As(err, &gatewayErr))
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("http://unused", "test-key", "whsec", time.Second)
	payload := []byte(`{"charge_id":"CHG_123","status":"PAID"}`)

	valid := Sign(payload, []byte("whsec"))
	require.True(t, client.VerifySignature(payload, valid))

	require.False(t, client.VerifySignature(payload, "deadbeef"))
	require.False(t, client.VerifySignature(payload, ""))
	require.False(t, client.VerifySignature([]byte(`{}`), valid))

	wrongSecret := Sign(payload, []byte("other"))
	require.False(t, client.VerifySignature(payload, wrongSecret))
}
