package bidding

import "github.com/motorbid/auction-api/internal/types"

const historyPageSize = 50

// HistoryEntry is one bid in an auction's history, flagged when it is the
// current leader.
type HistoryEntry struct {
	types.Bid
	IsLeader bool `json:"is_leader"`
}

// History is a restartable cursor over an auction's bids, ordered by amount
// descending. Pages are fetched lazily and keyed on the last row returned, so
// bids landing mid-walk cannot shift the remaining pages into skipping or
// repeating entries, and callers walking only the top of a long history never
// load the tail.
type History struct {
	db        *Database
	auctionID string

	last    *types.Bid
	started bool
	buf     []types.Bid
	idx     int
	done    bool
	err     error
}

// History returns a cursor over the auction's bid history.
func (s *Service) History(auctionID string) *History {
	return &History{
		db:        s.db,
		auctionID: auctionID,
	}
}

// Next returns the next bid in the history, or false when the sequence is
// exhausted or a fetch failed. Check Err after a false return.
func (h *History) Next() (*HistoryEntry, bool) {
	if h.done || h.err != nil {
		return nil, false
	}

	if h.idx >= len(h.buf) {
		page, err := h.db.BidsPageAfter(h.auctionID, h.last, historyPageSize)
		if err != nil {
			h.err = err
			return nil, false
		}
		if len(page) == 0 {
			h.done = true
			return nil, false
		}
		h.buf = page
		h.idx = 0
	}

	bid := h.buf[h.idx]
	entry := &HistoryEntry{
		Bid:      bid,
		IsLeader: !h.started,
	}
	h.started = true
	h.idx++
	h.last = &bid
	return entry, true
}

// Err reports the first fetch error encountered, if any.
func (h *History) Err() error {
	return h.err
}

// Reset rewinds the cursor to the top of the history. The next Next call
// re-reads the current leader.
func (h *History) Reset() {
	h.last = nil
	h.started = false
	h.buf = nil
	h.idx = 0
	h.done = false
	h.err = nil
}
