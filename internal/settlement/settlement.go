package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/auction"
	"github.com/motorbid/auction-api/internal/bidding"
	"github.com/motorbid/auction-api/internal/deposit"
	"github.com/motorbid/auction-api/internal/types"
	"github.com/motorbid/auction-api/pkg/response"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrAuctionStillOpen rejects ending an auction whose bidding window has
	// not closed. Auctions without an end time are the exception: an explicit
	// end request closes them.
	ErrAuctionStillOpen = errors.New("auction bidding window has not ended")

	// ErrNotSettleable rejects auctions that never opened (pending review or
	// rejected listings).
	ErrNotSettleable = errors.New("auction is not in a settleable state")
)

// Service finalizes ended auctions exactly once: it picks the winner against
// the reserve, creates the purchase, and reconciles deposits.
//
// The sale decision runs in one transaction holding the auction row lock.
// Loser refunds are external gateway calls and deliberately run after that
// transaction commits: a slow or failing refund can never leave the auction
// non-terminal or reverse the sale.
type Service struct {
	gormDB   *gorm.DB
	db       *Database
	bids     *bidding.Service
	deposits *deposit.Service
}

func NewService(gormDB *gorm.DB, bids *bidding.Service, deposits *deposit.Service) *Service {
	return &Service{
		gormDB:   gormDB,
		db:       NewDatabase(gormDB),
		bids:     bids,
		deposits: deposits,
	}
}

// SettleAuction drives one auction to its terminal state. Both the periodic
// sweep and the explicit end endpoint funnel through here. Re-settling an
// already-terminal auction is a no-op success returning the recorded result.
//
// explicit distinguishes an operator end request, which may close an auction
// that has no scheduled end time.
func (s *Service) SettleAuction(ctx context.Context, auctionID string, explicit bool) (*Result, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("service", "settlement").
		Logger()

	var (
		result *Result
		losers []deposit.Deposit
	)

	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		a, err := auction.GetAuctionForUpdate(tx, auctionID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAuctionNotFound
		}

		if a.Status == types.AuctionPendingReview || a.Status == types.AuctionRejected {
			return ErrNotSettleable
		}

		// Already settled: one sweep pass and one manual end call must not
		// produce two purchases or double-touch deposits.
		if !a.Available || a.Status == types.AuctionSold {
			receipt, err := NewDatabase(tx).GetSettlementByAuctionID(auctionID)
			if err != nil {
				return err
			}
			if receipt == nil {
				return ErrNotSettleable
			}
			result = resultFromReceipt(receipt)
			return nil
		}

		now := time.Now()
		switch auction.TemporalStateOf(a, now) {
		case auction.NotStarted:
			return ErrAuctionStillOpen
		case auction.Active:
			if !(explicit && a.EndTime == nil) {
				return ErrAuctionStillOpen
			}
			// Explicit end of an unscheduled auction closes the window now.
			a.EndTime = &now
		}

		highest, err := highestBid(tx, auctionID)
		if err != nil {
			return err
		}

		switch {
		case highest == nil:
			result, err = s.settleWithoutSale(tx, a, OutcomeNoBids, now)
			return err

		case a.ReservePrice.Valid && highest.Amount.LessThan(a.ReservePrice.Decimal):
			// Reserve not met: no purchase. Deposits stay PAID; releasing
			// them is an operator action until product decides otherwise.
			result, err = s.settleWithoutSale(tx, a, OutcomeReserveNotMet, now)
			return err

		default:
			result, losers, err = s.settleSale(tx, a, highest, now)
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadySettled {
		logger.Info().Str("outcome", string(result.Outcome)).Msg("auction already settled, returning recorded result")
		return result, nil
	}

	// Refund fan-out happens after the sale has committed. Each refund is
	// independent: one failure is recorded and the loop moves on.
	if result.Outcome == OutcomeWinnerSelected {
		s.refundLosers(ctx, result, losers)
	}

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("refunds_processed", result.Deposits.RefundsProcessed).
		Int("refunds_failed", result.Deposits.RefundsFailed).
		Msg("settlement completed")

	return result, nil
}

// settleWithoutSale terminates an auction that produced no sale: mark it
// unavailable and record the receipt. No purchase, no deposit changes.
func (s *Service) settleWithoutSale(tx *gorm.DB, a *types.Auction, outcome Outcome, now time.Time) (*Result, error) {
	a.Available = false
	a.UpdatedAt = now
	if err := tx.Save(a).Error; err != nil {
		return nil, err
	}

	receipt := &Settlement{
		SettlementID: "STL_" + uuid.New().String(),
		AuctionID:    a.AuctionID,
		Outcome:      outcome,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(receipt).Error; err != nil {
		return nil, err
	}

	return &Result{
		AuctionID: a.AuctionID,
		Outcome:   outcome,
		Deposits:  DepositReport{RefundDetails: []RefundDetail{}},
	}, nil
}

// settleSale marks the auction SOLD, records the purchase for the winner and
// applies the winner's deposit, all in the caller's transaction. It returns
// the losing PAID deposits for the post-commit refund fan-out.
func (s *Service) settleSale(tx *gorm.DB, a *types.Auction, highest *types.Bid, now time.Time) (*Result, []deposit.Deposit, error) {
	if !a.Status.CanTransitionTo(types.AuctionSold) {
		return nil, nil, ErrNotSettleable
	}

	a.Status = types.AuctionSold
	a.Available = false
	a.CurrentHighBid = decimal.NullDecimal{Decimal: highest.Amount, Valid: true}
	a.UpdatedAt = now
	if err := tx.Save(a).Error; err != nil {
		return nil, nil, err
	}

	purchase := &Purchase{
		PurchaseID: "PUR_" + uuid.New().String(),
		AuctionID:  a.AuctionID,
		BuyerID:    highest.BidderID,
		TotalPrice: highest.Amount,
		Status:     PurchaseConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.Create(purchase).Error; err != nil {
		return nil, nil, err
	}

	result := &Result{
		AuctionID: a.AuctionID,
		Outcome:   OutcomeWinnerSelected,
		Winner: &WinnerInfo{
			BidderID: highest.BidderID,
			Amount:   highest.Amount,
		},
		Deposits: DepositReport{RefundDetails: []RefundDetail{}},
	}

	paid, err := s.deposits.PaidDepositsTx(tx, a.AuctionID)
	if err != nil {
		return nil, nil, err
	}

	var losers []deposit.Deposit
	for _, dep := range paid {
		if dep.UserID == highest.BidderID {
			if err := s.deposits.ApplyToPurchaseTx(tx, dep.DepositID); err != nil {
				return nil, nil, fmt.Errorf("failed to apply winner deposit: %w", err)
			}
			result.Deposits.WinnerApplied = true
			continue
		}
		losers = append(losers, dep)
	}

	receipt := &Settlement{
		SettlementID:  "STL_" + uuid.New().String(),
		AuctionID:     a.AuctionID,
		Outcome:       OutcomeWinnerSelected,
		WinnerID:      highest.BidderID,
		WinningAmount: decimal.NullDecimal{Decimal: highest.Amount, Valid: true},
		PurchaseID:    purchase.PurchaseID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Create(receipt).Error; err != nil {
		return nil, nil, err
	}

	return result, losers, nil
}

// refundLosers fans refund calls out to the gateway, one per losing deposit.
// Failures leave the deposit PAID and are reported per-deposit so operators
// can retry the specific refunds.
func (s *Service) refundLosers(ctx context.Context, result *Result, losers []deposit.Deposit) {
	for i := range losers {
		dep := losers[i]
		detail := RefundDetail{
			DepositID: dep.DepositID,
			UserID:    dep.UserID,
		}

		if err := s.deposits.Refund(ctx, &dep); err != nil {
			detail.Error = err.Error()
			result.Deposits.RefundsFailed++
		} else {
			detail.Refunded = true
			result.Deposits.RefundsProcessed++
		}

		result.Deposits.RefundDetails = append(result.Deposits.RefundDetails, detail)
	}
}

func highestBid(tx *gorm.DB, auctionID string) (*types.Bid, error) {
	return bidding.NewDatabase(tx).HighestBid(auctionID)
}

func resultFromReceipt(receipt *Settlement) *Result {
	result := &Result{
		AuctionID:      receipt.AuctionID,
		Outcome:        receipt.Outcome,
		AlreadySettled: true,
		Deposits:       DepositReport{RefundDetails: []RefundDetail{}},
	}
	if receipt.Outcome == OutcomeWinnerSelected {
		result.Winner = &WinnerInfo{
			BidderID: receipt.WinnerID,
			Amount:   receipt.WinningAmount.Decimal,
		}
	}
	return result
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// EndAuctionHandler handles explicit end-of-auction requests
// Requires sweep-secret authentication
// URL parameter: auction_id
func (h *GinHandlers) EndAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		result, err := h.service.SettleAuction(c.Request.Context(), auctionID, true)
		switch {
		case errors.Is(err, ErrAuctionNotFound):
			response.NotFound(c, "Auction not found")
		case errors.Is(err, ErrAuctionStillOpen), errors.Is(err, ErrNotSettleable):
			response.BadRequest(c, err.Error())
		default:
			response.Handle(c, result, err)
		}
	}
}
