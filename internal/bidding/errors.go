package bidding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors, surfaced to the caller with enough data to retry
// correctly. Never retried automatically.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not open for bidding")

	// ErrDepositRequired signals the caller to route the user to the
	// pay-to-bid deposit flow.
	ErrDepositRequired = errors.New("a paid deposit is required to bid on this auction")
)

// BidTooLowError rejects a bid below the current minimum and carries the
// lowest amount that would have been accepted.
type BidTooLowError struct {
	MinAcceptable decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, minimum acceptable amount is %s", e.MinAcceptable.String())
}
