package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuctionStatus is the listing lifecycle state. Transitions happen only
// through named operations (approval, settlement), never by handlers writing
// the column directly.
type AuctionStatus string

const (
	AuctionPendingReview AuctionStatus = "PENDING_REVIEW"
	AuctionApproved      AuctionStatus = "APPROVED"
	AuctionSold          AuctionStatus = "SOLD"
	AuctionRejected      AuctionStatus = "REJECTED"
)

// CanTransitionTo reports whether the lifecycle permits moving to next.
// SOLD and REJECTED are terminal.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case AuctionPendingReview:
		return next == AuctionApproved || next == AuctionRejected
	case AuctionApproved:
		return next == AuctionSold
	default:
		return false
	}
}

// Auction is a car listing sold via competitive bidding. StartTime and
// EndTime stay nil until the listing is approved and scheduled. EndTime moves
// forward when a bid lands inside the auto-extend window.
type Auction struct {
	gorm.Model       `json:"-"`
	AuctionID        string              `gorm:"uniqueIndex" json:"auction_id"`
	SellerID         string              `json:"seller_id"`
	VehicleMake      string              `json:"make"`
	VehicleModel     string              `json:"model"`
	VehicleYear      int                 `json:"year"`
	StartingPrice    decimal.Decimal     `gorm:"type:decimal(20,2)" json:"starting_price"`
	ReservePrice     decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"reserve_price"`
	BidIncrement     decimal.Decimal     `gorm:"type:decimal(20,2)" json:"bid_increment"`
	CurrentHighBid   decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"current_high_bid"`
	StartTime        *time.Time          `json:"start_time"`
	EndTime          *time.Time          `gorm:"index" json:"end_time"`
	AutoExtendSecs   int64               `json:"auto_extend_secs"`
	Status           AuctionStatus       `gorm:"index" json:"status"`
	Available        bool                `gorm:"index" json:"available"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// AutoExtendWindow returns the anti-sniping window as a duration.
func (a *Auction) AutoExtendWindow() time.Duration {
	return time.Duration(a.AutoExtendSecs) * time.Second
}

// MinimumNextBid is the lowest amount the next bid may carry: the current
// leader (or the starting price when no bid exists) plus the increment.
func (a *Auction) MinimumNextBid() decimal.Decimal {
	base := a.StartingPrice
	if a.CurrentHighBid.Valid {
		base = a.CurrentHighBid.Decimal
	}
	return base.Add(a.BidIncrement)
}
