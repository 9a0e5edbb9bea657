package deposit

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is the deposit lifecycle state. A deposit leaves PAID exactly once,
// to REFUNDED or APPLIED_TO_PURCHASE, never both.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
	StatusApplied  Status = "APPLIED_TO_PURCHASE"
)

// CanTransitionTo reports whether the ledger permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPaid
	case StatusPaid:
		return next == StatusRefunded || next == StatusApplied
	default:
		return false
	}
}

// Deposit is one refundable bid-eligibility fee. The composite unique index
// on (user_id, auction_id) is the duplicate gate: a second deposit for the
// same pair fails at the database, not just in code.
type Deposit struct {
	gorm.Model `json:"-"`
	DepositID  string          `gorm:"uniqueIndex" json:"deposit_id"`
	UserID     string          `gorm:"uniqueIndex:idx_deposits_user_auction" json:"user_id"`
	AuctionID  string          `gorm:"uniqueIndex:idx_deposits_user_auction" json:"auction_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	Currency   string          `json:"currency"`
	ChargeRef  string          `gorm:"index" json:"charge_ref"`
	RefundRef  string          `json:"refund_ref,omitempty"`
	Status     Status          `gorm:"index" json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StatusInfo answers the deposit-gate question for one (user, auction) pair.
type StatusInfo struct {
	HasDeposit      bool   `json:"has_deposit"`
	Status          Status `json:"status,omitempty"`
	IsGrandfathered bool   `json:"is_grandfathered"`
}

// Eligible reports whether the pair may bid: a PAID (or already applied)
// deposit, or the legacy exemption.
func (i StatusInfo) Eligible() bool {
	return i.IsGrandfathered || i.Status == StatusPaid || i.Status == StatusApplied
}

// CreateResult is returned from the pay-to-bid initiation flow.
type CreateResult struct {
	Deposit     *Deposit `json:"deposit"`
	RedirectURL string   `json:"redirect_url,omitempty"`
}
