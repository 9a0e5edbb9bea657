package auction

import (
	"time"

	"github.com/motorbid/auction-api/internal/types"
)

// TemporalState classifies where an auction sits in its bidding window.
type TemporalState string

const (
	NotStarted TemporalState = "NOT_STARTED"
	Active     TemporalState = "ACTIVE"
	Ended      TemporalState = "ENDED"
)

// TemporalStateOf derives the auction's window state at the given instant.
// An auction with no end time is never ENDED by the clock alone; it has to be
// ended explicitly through the settlement endpoint.
func TemporalStateOf(a *types.Auction, now time.Time) TemporalState {
	if a.StartTime != nil && now.Before(*a.StartTime) {
		return NotStarted
	}
	if a.EndTime != nil && !now.Before(*a.EndTime) {
		return Ended
	}
	return Active
}

// MaybeExtend applies the anti-sniping rule: a bid landing within the
// auto-extend window of the end time pushes the end time to
// bidTime + window. Returns true when the end time moved.
//
// Extensions are unbounded on purpose: a bidder willing to keep bidding keeps
// the auction open. Must run inside the same transaction that accepts the
// bid, so two near-expiry bidders cannot both read the stale window.
func MaybeExtend(a *types.Auction, bidTime time.Time) bool {
	if a.EndTime == nil || a.AutoExtendSecs <= 0 {
		return false
	}
	if a.EndTime.Sub(bidTime) > a.AutoExtendWindow() {
		return false
	}
	extended := bidTime.Add(a.AutoExtendWindow())
	a.EndTime = &extended
	return true
}
