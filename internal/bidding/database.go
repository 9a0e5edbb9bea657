package bidding

import (
	"errors"

	"github.com/motorbid/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateBid appends a bid row inside the caller's transaction. Bids are
// append-only; there is no update or delete path.
func CreateBid(tx *gorm.DB, bid *types.Bid) error {
	return tx.Create(bid).Error
}

// HighestBid returns the leading bid for an auction, nil when no bid exists.
// Ties cannot occur between accepted bids, amounts strictly increase.
func (d *Database) HighestBid(auctionID string) (*types.Bid, error) {
	var bid types.Bid
	err := d.db.
		Where("auction_id = ?", auctionID).
		Order("amount DESC, created_at DESC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

// BidsPageAfter returns one page of an auction's bids ordered by amount
// descending, starting strictly after the given row. A nil cursor starts at
// the leader. Keying the page on (amount, created_at) instead of a row offset
// keeps a walk stable while new bids land.
func (d *Database) BidsPageAfter(auctionID string, after *types.Bid, limit int) ([]types.Bid, error) {
	q := d.db.Where("auction_id = ?", auctionID)
	if after != nil {
		q = q.Where("amount < ? OR (amount = ? AND created_at < ?)",
			after.Amount, after.Amount, after.CreatedAt)
	}

	var bids []types.Bid
	err := q.
		Order("amount DESC, created_at DESC").
		Limit(limit).
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}
