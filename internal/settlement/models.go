package settlement

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outcome is the terminal state a settled auction landed in.
type Outcome string

const (
	OutcomeNoBids         Outcome = "ended_no_bids"
	OutcomeReserveNotMet  Outcome = "ended_reserve_not_met"
	OutcomeWinnerSelected Outcome = "ended_winner_selected"
)

// PurchaseStatus is the order lifecycle state. Auction purchases are created
// CONFIRMED: the applied deposit already proves commitment, so there is no
// manual payment confirmation step.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "PENDING"
	PurchaseConfirmed PurchaseStatus = "CONFIRMED"
	PurchaseCompleted PurchaseStatus = "COMPLETED"
	PurchaseCancelled PurchaseStatus = "CANCELLED"
)

// Purchase is the settlement artifact for a won auction: exactly one per
// auction that sold.
type Purchase struct {
	gorm.Model `json:"-"`
	PurchaseID string          `gorm:"uniqueIndex" json:"purchase_id"`
	AuctionID  string          `gorm:"uniqueIndex" json:"auction_id"`
	BuyerID    string          `json:"buyer_id"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_price"`
	Status     PurchaseStatus  `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Settlement is the idempotency receipt: one row per settled auction,
// recording the terminal outcome. A second settlement attempt reads this and
// returns it as a no-op.
type Settlement struct {
	gorm.Model    `json:"-"`
	SettlementID  string              `gorm:"uniqueIndex" json:"settlement_id"`
	AuctionID     string              `gorm:"uniqueIndex" json:"auction_id"`
	Outcome       Outcome             `json:"outcome"`
	WinnerID      string              `json:"winner_id,omitempty"`
	WinningAmount decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"winning_amount"`
	PurchaseID    string              `json:"purchase_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// WinnerInfo identifies the winning bidder and amount in a settlement result.
type WinnerInfo struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// RefundDetail reports one loser-deposit refund attempt.
type RefundDetail struct {
	DepositID string `json:"deposit_id"`
	UserID    string `json:"user_id"`
	Refunded  bool   `json:"refunded"`
	Error     string `json:"error,omitempty"`
}

// DepositReport aggregates deposit reconciliation for one settlement run.
// Failed refunds stay PAID and are listed here for operator retry.
type DepositReport struct {
	WinnerApplied    bool           `json:"winner_applied"`
	RefundsProcessed int            `json:"refunds_processed"`
	RefundsFailed    int            `json:"refunds_failed"`
	RefundDetails    []RefundDetail `json:"refund_details"`
}

// Result is the settlement outcome shape shared by the sweep and the
// explicit end call.
type Result struct {
	AuctionID      string        `json:"auction_id"`
	Outcome        Outcome       `json:"status"`
	Winner         *WinnerInfo   `json:"winner,omitempty"`
	Deposits       DepositReport `json:"deposits"`
	AlreadySettled bool          `json:"already_settled,omitempty"`
}
