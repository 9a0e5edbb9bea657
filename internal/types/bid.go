package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid is one accepted bid. Rows are append-only: never updated, never
// deleted. For a given auction the accepted amounts are strictly increasing,
// so the newest row is always the leader.
//
// IsAutoBid is reserved schema for proxy bidding; nothing sets it today.
type Bid struct {
	gorm.Model `json:"-"`
	BidID      string          `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string          `gorm:"index:idx_bids_auction_amount" json:"auction_id"`
	BidderID   string          `gorm:"index" json:"bidder_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);index:idx_bids_auction_amount" json:"amount"`
	IsAutoBid  bool            `json:"is_auto_bid"`
	CreatedAt  time.Time       `json:"created_at"`
}
