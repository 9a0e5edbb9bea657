package migrations

import (
	"github.com/motorbid/auction-api/internal/types"
	"gorm.io/gorm"
)

// AddAuctionBidIndexes creates the auction and bid tables with the indexes
// the hot paths need.
func AddAuctionBidIndexes(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Auction{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.Bid{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// The sweep scans for ended, still-open auctions
		`CREATE INDEX IF NOT EXISTS idx_auctions_settleable
		 ON auctions(status, available, end_time)`,

		// Bid history and highest-bid lookups order by amount per auction
		`CREATE INDEX IF NOT EXISTS idx_bids_auction_amount_created
		 ON bids(auction_id, amount DESC, created_at DESC)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
