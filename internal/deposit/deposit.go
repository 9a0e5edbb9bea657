package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/config"
	"github.com/motorbid/auction-api/internal/payment"
	"github.com/motorbid/auction-api/pkg/response"
)

var (
	// ErrDuplicateDeposit means a live deposit already exists for the pair.
	ErrDuplicateDeposit = errors.New("deposit already exists for this user and auction")

	// ErrInvalidState means a transition was attempted from the wrong status,
	// e.g. refunding a deposit that is not PAID. Indicates a caller bug or a
	// lost race, never swallowed.
	ErrInvalidState = errors.New("deposit is not in a valid state for this transition")

	// ErrDepositNotFound is returned for unknown deposit references.
	ErrDepositNotFound = errors.New("deposit not found")
)

// Service is the deposit ledger: it gates bidding behind the pay-to-bid fee
// and reconciles outcomes at settlement.
type Service struct {
	gormDB  *gorm.DB
	db      *Database
	gateway payment.Gateway

	amount        decimal.Decimal
	currency      string
	bypass        bool
	requiredSince time.Time
}

func NewService(gormDB *gorm.DB, gateway payment.Gateway, cfg *config.Config) *Service {
	bypass := cfg.DepositBypass
	if bypass && cfg.IsProduction() {
		// The bypass must never be reachable in production configuration.
		log.Warn().Msg("DEPOSIT_BYPASS is set in production, ignoring")
		bypass = false
	}

	return &Service{
		gormDB:        gormDB,
		db:            NewDatabase(gormDB),
		gateway:       gateway,
		amount:        cfg.DepositAmount,
		currency:      cfg.DepositCurrency,
		bypass:        bypass,
		requiredSince: cfg.DepositRequiredSince,
	}
}

// Status answers the deposit gate question for a (user, auction) pair,
// including the legacy grandfathering exemption.
func (s *Service) Status(userID, auctionID string) (*StatusInfo, error) {
	return s.StatusTx(s.gormDB, userID, auctionID)
}

// StatusTx evaluates the gate inside the caller's transaction, so bid
// validation sees the same snapshot it accepts against.
func (s *Service) StatusTx(tx *gorm.DB, userID, auctionID string) (*StatusInfo, error) {
	info := &StatusInfo{}

	grandfathered, err := isGrandfathered(tx, userID, auctionID, s.requiredSince)
	if err != nil {
		return nil, fmt.Errorf("failed to check grandfathered status: %w", err)
	}
	info.IsGrandfathered = grandfathered

	dep, err := NewDatabase(tx).GetDepositByUserAndAuction(userID, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deposit: %w", err)
	}
	if dep != nil {
		info.HasDeposit = true
		info.Status = dep.Status
	}

	return info, nil
}

// CreateDeposit starts the pay-to-bid flow for a pair. A PAID or applied
// deposit fails with ErrDuplicateDeposit; an abandoned PENDING deposit is
// re-initiated rather than duplicated. In bypass mode the deposit is marked
// PAID immediately without a gateway charge.
func (s *Service) CreateDeposit(ctx context.Context, userID, auctionID string) (*CreateResult, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("auction_id", auctionID).
		Str("service", "deposit").
		Logger()

	existing, err := s.db.GetDepositByUserAndAuction(userID, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing deposit: %w", err)
	}
	if existing != nil && existing.Status != StatusPending {
		return nil, ErrDuplicateDeposit
	}

	dep := existing
	if dep == nil {
		dep = &Deposit{
			DepositID: "DEP_" + uuid.New().String(),
			UserID:    userID,
			AuctionID: auctionID,
			Amount:    s.amount,
			Currency:  s.currency,
			Status:    StatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.db.CreateDeposit(dep); err != nil {
			// The unique (user_id, auction_id) index catches the race where
			// two requests create the pair simultaneously.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrDuplicateDeposit
			}
			return nil, fmt.Errorf("failed to create deposit: %w", err)
		}
	}

	if s.bypass {
		dep.ChargeRef = "BYPASS_" + uuid.New().String()
		dep.Status = StatusPaid
		dep.UpdatedAt = time.Now()
		if err := s.db.UpdateDeposit(dep); err != nil {
			return nil, fmt.Errorf("failed to mark bypass deposit paid: %w", err)
		}
		logger.Info().Str("deposit_id", dep.DepositID).Msg("deposit marked paid via bypass")
		return &CreateResult{Deposit: dep}, nil
	}

	charge, err := s.gateway.CreateCharge(ctx, payment.ChargeRequest{
		Amount:   dep.Amount,
		Currency: dep.Currency,
		PayerID:  userID,
		Metadata: map[string]string{
			"deposit_id": dep.DepositID,
			"auction_id": auctionID,
		},
	})
	if err != nil {
		// The deposit stays PENDING so the user can retry.
		logger.Error().Err(err).Str("deposit_id", dep.DepositID).Msg("gateway charge creation failed")
		return nil, fmt.Errorf("failed to create gateway charge: %w", err)
	}

	dep.ChargeRef = charge.ChargeID
	dep.UpdatedAt = time.Now()
	if err := s.db.UpdateDeposit(dep); err != nil {
		return nil, fmt.Errorf("failed to record charge reference: %w", err)
	}

	logger.Info().
		Str("deposit_id", dep.DepositID).
		Str("charge_ref", dep.ChargeRef).
		Msg("initiated deposit charge")

	return &CreateResult{Deposit: dep, RedirectURL: charge.RedirectURL}, nil
}

// MarkPaid confirms a deposit from a gateway charge notification.
// Idempotent on repeated delivery: a deposit already PAID under the same
// charge ref is a no-op success.
func (s *Service) MarkPaid(chargeRef string) (*Deposit, error) {
	dep, err := s.db.GetDepositByChargeRef(chargeRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deposit by charge ref: %w", err)
	}
	if dep == nil {
		return nil, ErrDepositNotFound
	}

	if dep.Status != StatusPending {
		if dep.Status == StatusPaid || dep.Status == StatusApplied || dep.Status == StatusRefunded {
			// Repeated webhook delivery after confirmation.
			return dep, nil
		}
		return nil, ErrInvalidState
	}

	ok, err := s.db.TransitionStatus(dep.DepositID, StatusPending, StatusPaid, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to mark deposit paid: %w", err)
	}
	if !ok {
		// Lost a race with another delivery; re-read and treat as confirmed.
		return s.db.GetDeposit(dep.DepositID)
	}

	log.Info().
		Str("deposit_id", dep.DepositID).
		Str("charge_ref", chargeRef).
		Msg("deposit confirmed paid")

	dep.Status = StatusPaid
	return dep, nil
}

// ApplyToPurchase consumes the winner's deposit: PAID to APPLIED_TO_PURCHASE,
// exactly once per auction.
func (s *Service) ApplyToPurchase(depositID string) error {
	return s.ApplyToPurchaseTx(s.gormDB, depositID)
}

// ApplyToPurchaseTx applies the winner's deposit inside the caller's
// settlement transaction, so the sale and the deposit consumption commit
// together.
func (s *Service) ApplyToPurchaseTx(tx *gorm.DB, depositID string) error {
	ok, err := NewDatabase(tx).TransitionStatus(depositID, StatusPaid, StatusApplied, nil)
	if err != nil {
		return fmt.Errorf("failed to apply deposit to purchase: %w", err)
	}
	if !ok {
		return ErrInvalidState
	}
	return nil
}

// PaidDepositsTx lists PAID deposits inside the caller's transaction.
func (s *Service) PaidDepositsTx(tx *gorm.DB, auctionID string) ([]Deposit, error) {
	return NewDatabase(tx).GetPaidDeposits(auctionID)
}

// Refund returns a loser's deposit through the gateway. On gateway failure
// the deposit stays PAID and the error is surfaced for retry; a refund
// failure never blocks the rest of settlement.
func (s *Service) Refund(ctx context.Context, dep *Deposit) error {
	if dep.Status != StatusPaid {
		return ErrInvalidState
	}

	refund, err := s.gateway.CreateRefund(ctx, dep.ChargeRef, dep.Amount)
	if err != nil {
		log.Error().
			Err(err).
			Str("deposit_id", dep.DepositID).
			Str("charge_ref", dep.ChargeRef).
			Msg("gateway refund failed, deposit remains paid")
		return fmt.Errorf("failed to refund deposit %s: %w", dep.DepositID, err)
	}

	ok, err := s.db.TransitionStatus(dep.DepositID, StatusPaid, StatusRefunded, map[string]interface{}{
		"refund_ref": refund.RefundID,
	})
	if err != nil {
		return fmt.Errorf("failed to record refund for deposit %s: %w", dep.DepositID, err)
	}
	if !ok {
		return ErrInvalidState
	}

	log.Info().
		Str("deposit_id", dep.DepositID).
		Str("refund_ref", refund.RefundID).
		Msg("deposit refunded")

	return nil
}

// PaidDeposits lists every PAID deposit on an auction.
func (s *Service) PaidDeposits(auctionID string) ([]Deposit, error) {
	return s.db.GetPaidDeposits(auctionID)
}

// GetByUserAndAuction returns the pair's deposit, nil when none exists.
func (s *Service) GetByUserAndAuction(userID, auctionID string) (*Deposit, error) {
	return s.db.GetDepositByUserAndAuction(userID, auctionID)
}

// GinHandlers contains HTTP handlers for the deposit flow
type GinHandlers struct {
	service *Service
	gateway payment.Gateway
}

func NewGinHandlers(service *Service, gateway payment.Gateway) *GinHandlers {
	return &GinHandlers{
		service: service,
		gateway: gateway,
	}
}

// CheckDepositStatusHandler handles GET requests for a user's deposit status
// on an auction. Requires a valid JWT token.
func (h *GinHandlers) CheckDepositStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client identity")
			return
		}

		info, err := h.service.Status(userID, c.Param("auction_id"))
		response.Handle(c, info, err)
	}
}

// CreateDepositHandler handles POST requests to start the pay-to-bid flow
// Requires a valid JWT token
func (h *GinHandlers) CreateDepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client identity")
			return
		}

		result, err := h.service.CreateDeposit(c.Request.Context(), userID, c.Param("auction_id"))
		if errors.Is(err, ErrDuplicateDeposit) {
			response.Conflict(c, err.Error())
			return
		}
		response.Handle(c, result, err)
	}
}

type webhookEvent struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

// PaymentWebhookHandler handles gateway charge notifications. The payload is
// authenticated by HMAC signature before anything is parsed out of it.
func (h *GinHandlers) PaymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "Unable to read payload")
			return
		}

		signature := c.GetHeader("X-Gateway-Signature")
		if !h.gateway.VerifySignature(payload, signature) {
			log.Warn().Msg("rejected webhook with invalid signature")
			response.Unauthorized(c, "Invalid signature")
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			response.BadRequest(c, "Invalid payload")
			return
		}

		if event.Status != "PAID" {
			// Only successful charges move the ledger; everything else is
			// acknowledged and dropped.
			response.Success(c, gin.H{"received": true})
			return
		}

		dep, err := h.service.MarkPaid(event.ChargeID)
		if errors.Is(err, ErrDepositNotFound) {
			response.NotFound(c, "Unknown charge reference")
			return
		}
		response.Handle(c, dep, err)
	}
}
