package deposit_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/config"
	"github.com/motorbid/auction-api/internal/database"
	"github.com/motorbid/auction-api/internal/deposit"
	"github.com/motorbid/auction-api/internal/payment"
	"github.com/motorbid/auction-api/internal/types"
)

// fakeGateway is an in-memory payment.Gateway. Charge and refund calls are
// counted; errors can be injected per operation.
type fakeGateway struct {
	chargeCalls int
	refundCalls int

	chargeErr error
	refundErr error

	// failRefundFor makes refunds fail only for specific charge refs.
	failRefundFor map[string]bool

	lastCharge payment.ChargeRequest
}

func (g *fakeGateway) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.chargeCalls++
	g.lastCharge = req
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return &payment.Charge{
		ChargeID:    fmt.Sprintf("CHG_%d", g.chargeCalls),
		Status:      "PENDING",
		RedirectURL: "https://pay.example/checkout",
	}, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, chargeID string, _ decimal.Decimal) (*payment.Refund, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.failRefundFor[chargeID] {
		return nil, &payment.GatewayError{Op: "POST /v1/refunds", StatusCode: 503}
	}
	return &payment.Refund{
		RefundID: fmt.Sprintf("RFD_%d", g.refundCalls),
		Status:   "COMPLETED",
	}, nil
}

func (g *fakeGateway) GetCharge(_ context.Context, chargeID string) (*payment.Charge, error) {
	return &payment.Charge{ChargeID: chargeID, Status: "PAID"}, nil
}

func (g *fakeGateway) VerifySignature(payload []byte, signature string) bool {
	return payment.Sign(payload, []byte("test-webhook-secret")) == signature
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	// The uuid keeps repeated runs in one process from sharing a database.
	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		DepositAmount:   decimal.NewFromInt(200),
		DepositCurrency: "USD",
	}
}

func TestCreateDepositChargesGateway(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, 1, gateway.chargeCalls)
	require.Equal(t, "https://pay.example/checkout", result.RedirectURL)
	require.Equal(t, deposit.StatusPending, result.Deposit.Status)
	require.Equal(t, "CHG_1", result.Deposit.ChargeRef)
	require.True(t, result.Deposit.Amount.Equal(decimal.NewFromInt(200)))
	require.Equal(t, "bidder-1", gateway.lastCharge.PayerID)
}

func TestCreateDepositReusesPending(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	first, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)

	// Abandoned checkout: the second initiation re-uses the PENDING row
	// instead of creating a sibling.
	second, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, first.Deposit.DepositID, second.Deposit.DepositID)
	require.Equal(t, 2, gateway.chargeCalls)
}

func TestCreateDepositRejectsDuplicate(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)

	_, err = svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)

	_, err = svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.ErrorIs(t, err, deposit.ErrDuplicateDeposit)

	// Same user on a different auction is a fresh pair.
	_, err = svc.CreateDeposit(context.Background(), "bidder-1", "AUC_2")
	require.NoError(t, err)
}

func TestCreateDepositGatewayFailureLeavesPending(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{
		chargeErr: &payment.GatewayError{Op: "POST /v1/charges", StatusCode: 502},
	}
	svc := deposit.NewService(db, gateway, testConfig())

	_, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.Error(t, err)

	dep, err := svc.GetByUserAndAuction("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.NotNil(t, dep)
	require.Equal(t, deposit.StatusPending, dep.Status)

	// The user can retry once the gateway recovers.
	gateway.chargeErr = nil
	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, dep.DepositID, result.Deposit.DepositID)
}

func TestCreateDepositBypass(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	cfg := testConfig()
	cfg.DepositBypass = true
	svc := deposit.NewService(db, gateway, cfg)

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, deposit.StatusPaid, result.Deposit.Status)
	require.True(t, strings.HasPrefix(result.Deposit.ChargeRef, "BYPASS_"))
	require.Empty(t, result.RedirectURL)
	require.Zero(t, gateway.chargeCalls)
}

func TestBypassRefusedInProduction(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	cfg := testConfig()
	cfg.Env = "production"
	cfg.DepositBypass = true
	svc := deposit.NewService(db, gateway, cfg)

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, deposit.StatusPending, result.Deposit.Status)
	require.Equal(t, 1, gateway.chargeCalls)
}

func TestMarkPaid(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)

	dep, err := svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)
	require.Equal(t, deposit.StatusPaid, dep.Status)

	// Repeated webhook delivery is a no-op success.
	again, err := svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)
	require.Equal(t, deposit.StatusPaid, again.Status)

	_, err = svc.MarkPaid("CHG_UNKNOWN")
	require.ErrorIs(t, err, deposit.ErrDepositNotFound)
}

func TestStatusEligibility(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	// No deposit at all.
	info, err := svc.Status("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.False(t, info.HasDeposit)
	require.False(t, info.Eligible())

	// PENDING is not enough.
	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	info, err = svc.Status("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.True(t, info.HasDeposit)
	require.Equal(t, deposit.StatusPending, info.Status)
	require.False(t, info.Eligible())

	// PAID opens the gate.
	_, err = svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)
	info, err = svc.Status("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.True(t, info.Eligible())
}

func TestGrandfatheredUserIsExempt(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	cfg := testConfig()
	cfg.DepositRequiredSince = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := deposit.NewService(db, gateway, cfg)

	// A bid placed before the cutover exempts the pair.
	require.NoError(t, db.Create(&types.Bid{
		BidID:     "BID_legacy",
		AuctionID: "AUC_1",
		BidderID:  "bidder-1",
		Amount:    decimal.NewFromInt(50000),
		CreatedAt: time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC),
	}).Error)

	info, err := svc.Status("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.True(t, info.IsGrandfathered)
	require.True(t, info.Eligible())

	// The exemption is scoped to the auction the user bid on.
	info, err = svc.Status("bidder-1", "AUC_2")
	require.NoError(t, err)
	require.False(t, info.IsGrandfathered)

	// And to the user who bid.
	info, err = svc.Status("bidder-2", "AUC_1")
	require.NoError(t, err)
	require.False(t, info.IsGrandfathered)
}

func TestRefund(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	dep, err := svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)

	require.NoError(t, svc.Refund(context.Background(), dep))

	refunded, err := svc.GetByUserAndAuction("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, deposit.StatusRefunded, refunded.Status)
	require.Equal(t, "RFD_1", refunded.RefundRef)
}

func TestRefundGatewayFailureLeavesPaid(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{
		refundErr: &payment.GatewayError{Op: "POST /v1/refunds", StatusCode: 503},
	}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	dep, err := svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)

	err = svc.Refund(context.Background(), dep)
	require.Error(t, err)

	// No local state change until the provider confirms, so the refund can
	// be retried.
	after, err := svc.GetByUserAndAuction("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, deposit.StatusPaid, after.Status)
	require.Empty(t, after.RefundRef)
}

func TestRefundRequiresPaid(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)

	err = svc.Refund(context.Background(), result.Deposit)
	require.ErrorIs(t, err, deposit.ErrInvalidState)
	require.Zero(t, gateway.refundCalls)
}

func TestApplyToPurchase(t *testing.T) {
	db := testDB(t)
	gateway := &fakeGateway{}
	svc := deposit.NewService(db, gateway, testConfig())

	result, err := svc.CreateDeposit(context.Background(), "bidder-1", "AUC_1")
	require.NoError(t, err)
	dep, err := svc.MarkPaid(result.Deposit.ChargeRef)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyToPurchase(dep.DepositID))

	applied, err := svc.GetByUserAndAuction("bidder-1", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, deposit.StatusApplied, applied.Status)

	// A consumed deposit cannot be applied again or refunded.
	require.ErrorIs(t, svc.ApplyToPurchase(dep.DepositID), deposit.ErrInvalidState)
	require.ErrorIs(t, svc.Refund(context.Background(), applied), deposit.ErrInvalidState)
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    deposit.Status
		to      deposit.Status
		allowed bool
	}{
		{deposit.StatusPending, deposit.StatusPaid, true},
		{deposit.StatusPending, deposit.StatusRefunded, false},
		{deposit.StatusPaid, deposit.StatusRefunded, true},
		{deposit.StatusPaid, deposit.StatusApplied, true},
		{deposit.StatusRefunded, deposit.StatusPaid, false},
		{deposit.StatusApplied, deposit.StatusRefunded, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			require.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}
