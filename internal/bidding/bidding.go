package bidding

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/auction"
	"github.com/motorbid/auction-api/internal/deposit"
	"github.com/motorbid/auction-api/internal/types"
	"github.com/motorbid/auction-api/pkg/response"
)

// Service validates and records bids. Acceptance is one transaction per
// auction: the auction row is locked, the window and deposit gates are
// checked, the bid is appended, the cached leader is updated and the
// auto-extend rule applied, all before the lock releases. Two bids on
// different auctions never contend.
type Service struct {
	gormDB   *gorm.DB
	db       *Database
	deposits *deposit.Service
}

func NewService(gormDB *gorm.DB, deposits *deposit.Service) *Service {
	return &Service{
		gormDB:   gormDB,
		db:       NewDatabase(gormDB),
		deposits: deposits,
	}
}

// PlaceBid runs the full validation chain and, on success, appends the bid.
// Checks run in order and the first failure wins: auction window, deposit
// gate, then amount against leader + increment.
func (s *Service) PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (*types.Bid, error) {
	logger := log.With().
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Str("amount", amount.String()).
		Str("service", "bidding").
		Logger()

	var placed *types.Bid
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		a, err := auction.GetAuctionForUpdate(tx, auctionID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrAuctionNotFound
		}

		now := time.Now()
		if a.Status != types.AuctionApproved || !a.Available {
			return ErrAuctionNotActive
		}
		if auction.TemporalStateOf(a, now) != auction.Active {
			return ErrAuctionNotActive
		}

		info, err := s.deposits.StatusTx(tx, bidderID, auctionID)
		if err != nil {
			return err
		}
		if !info.Eligible() {
			return ErrDepositRequired
		}

		min := a.MinimumNextBid()
		if amount.LessThan(min) {
			return &BidTooLowError{MinAcceptable: min}
		}

		bid := &types.Bid{
			BidID:     "BID_" + uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := CreateBid(tx, bid); err != nil {
			return err
		}

		a.CurrentHighBid = decimal.NullDecimal{Decimal: amount, Valid: true}
		extended := auction.MaybeExtend(a, now)
		a.UpdatedAt = now
		if err := tx.Save(a).Error; err != nil {
			return err
		}

		if extended {
			logger.Info().Time("new_end_time", *a.EndTime).Msg("auction end time extended")
		}

		placed = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("bid_id", placed.BidID).Msg("bid accepted")
	return placed, nil
}

// HighestBid returns the auction's leading bid, nil when none exists.
func (s *Service) HighestBid(auctionID string) (*types.Bid, error) {
	return s.db.HighestBid(auctionID)
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// PlaceBidHandler handles POST requests to bid on an auction
// Requires a valid JWT token
// URL parameter: auction_id
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("clientID")
		if bidderID == "" {
			response.Unauthorized(c, "Missing client identity")
			return
		}

		var req placeBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bid, err := h.service.PlaceBid(c.Param("auction_id"), bidderID, req.Amount)
		if err != nil {
			h.handleBidError(c, err)
			return
		}

		response.Success(c, bid)
	}
}

func (h *GinHandlers) handleBidError(c *gin.Context, err error) {
	var tooLow *BidTooLowError
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		response.NotFound(c, "Auction not found")
	case errors.Is(err, ErrAuctionNotActive):
		response.ValidationFailed(c, response.ErrCodeAuctionNotActive, err.Error(), nil)
	case errors.Is(err, ErrDepositRequired):
		response.ValidationFailed(c, response.ErrCodeDepositRequired, err.Error(), gin.H{
			"action": "create_deposit",
		})
	case errors.As(err, &tooLow):
		response.ValidationFailed(c, response.ErrCodeBidTooLow, err.Error(), gin.H{
			"min_acceptable": tooLow.MinAcceptable,
		})
	default:
		response.Handle(c, nil, err)
	}
}

// BidHistoryHandler handles GET requests for an auction's bid history,
// ordered by amount descending and annotated with the current leader
// URL parameter: auction_id
func (h *GinHandlers) BidHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		history := h.service.History(c.Param("auction_id"))

		entries := make([]HistoryEntry, 0)
		for {
			entry, ok := history.Next()
			if !ok {
				break
			}
			entries = append(entries, *entry)
		}
		if err := history.Err(); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, entries)
	}
}
