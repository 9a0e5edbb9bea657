package auction

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/types"
	"github.com/motorbid/auction-api/pkg/response"
)

var ErrAuctionNotFound = errors.New("auction not found")

// Service owns auction listing reads and the small seller/operator surface
// that produces biddable auctions. Settlement owns the terminal transitions.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateListingInput is what a seller submits for review.
type CreateListingInput struct {
	VehicleMake    string           `json:"make" binding:"required"`
	VehicleModel   string           `json:"model" binding:"required"`
	VehicleYear    int              `json:"year" binding:"required"`
	StartingPrice  decimal.Decimal  `json:"starting_price" binding:"required"`
	ReservePrice   *decimal.Decimal `json:"reserve_price"`
	BidIncrement   decimal.Decimal  `json:"bid_increment" binding:"required"`
	AutoExtendSecs int64            `json:"auto_extend_secs"`
}

// CreateListing records a new auction listing in PENDING_REVIEW. It becomes
// biddable only once approved and scheduled.
func (s *Service) CreateListing(sellerID string, in CreateListingInput) (*types.Auction, error) {
	if in.StartingPrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("starting price must be positive")
	}
	if in.BidIncrement.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("bid increment must be positive")
	}

	auction := &types.Auction{
		AuctionID:      "AUC_" + uuid.New().String(),
		SellerID:       sellerID,
		VehicleMake:    in.VehicleMake,
		VehicleModel:   in.VehicleModel,
		VehicleYear:    in.VehicleYear,
		StartingPrice:  in.StartingPrice,
		BidIncrement:   in.BidIncrement,
		AutoExtendSecs: in.AutoExtendSecs,
		Status:         types.AuctionPendingReview,
		Available:      false,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if in.ReservePrice != nil {
		auction.ReservePrice = decimal.NullDecimal{Decimal: *in.ReservePrice, Valid: true}
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auction.AuctionID).
		Str("seller_id", sellerID).
		Str("starting_price", auction.StartingPrice.String()).
		Msg("created auction listing for review")

	return auction, nil
}

// Approve schedules the bidding window and opens the listing. Returns
// ErrAuctionNotFound for unknown listings; listings no longer in review are
// rejected.
func (s *Service) Approve(auctionID string, startTime *time.Time, endTime *time.Time) (*types.Auction, error) {
	existing, err := s.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrAuctionNotFound
	}

	approved, err := s.db.ApproveAuction(auctionID, startTime, endTime)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, errors.New("auction is not awaiting review")
	}

	log.Info().
		Str("auction_id", auctionID).
		Msg("approved auction listing")

	return s.db.GetAuction(auctionID)
}

func (s *Service) GetAuction(auctionID string) (*types.Auction, error) {
	return s.db.GetAuction(auctionID)
}

func (s *Service) ListOpenAuctions() ([]types.Auction, error) {
	return s.db.ListOpenAuctions()
}

// AuctionDetail is the read shape for a single listing, annotated with the
// clock state and the lowest bid the validator would currently accept.
type AuctionDetail struct {
	types.Auction
	TemporalState  TemporalState   `json:"temporal_state"`
	MinimumNextBid decimal.Decimal `json:"minimum_next_bid"`
}

// GinHandlers contains HTTP handlers for auction listing endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListAuctionsHandler handles GET requests for open auctions
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctions, err := h.service.ListOpenAuctions()
		response.Handle(c, auctions, err)
	}
}

// GetAuctionHandler handles GET requests for a single auction
// URL parameter: auction_id
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		auction, err := h.service.GetAuction(auctionID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if auction == nil {
			response.NotFound(c, "Auction not found")
			return
		}

		response.Success(c, AuctionDetail{
			Auction:        *auction,
			TemporalState:  TemporalStateOf(auction, time.Now()),
			MinimumNextBid: auction.MinimumNextBid(),
		})
	}
}

// CreateAuctionHandler handles POST requests from sellers to list a car
// Requires a valid JWT token; the client ID becomes the seller
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("clientID")
		if sellerID == "" {
			response.Unauthorized(c, "Missing client identity")
			return
		}

		var in CreateListingInput
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.CreateListing(sellerID, in)
		response.Handle(c, auction, err)
	}
}

type approveRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// ApproveAuctionHandler handles operator approval of a pending listing
// Requires sweep-secret authentication
// URL parameter: auction_id
func (h *GinHandlers) ApproveAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID := c.Param("auction_id")

		var req approveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.service.Approve(auctionID, req.StartTime, req.EndTime)
		if errors.Is(err, ErrAuctionNotFound) {
			response.NotFound(c, "Auction not found")
			return
		}
		response.Handle(c, auction, err)
	}
}
