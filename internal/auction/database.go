package auction

import (
	"errors"
	"time"

	"github.com/motorbid/auction-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
}

func (d *Database) GetAuction(auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

// GetAuctionForUpdate loads an auction inside tx with a row lock, so bid
// acceptance and settlement serialize per auction.
func GetAuctionForUpdate(tx *gorm.DB, auctionID string) (*types.Auction, error) {
	var auction types.Auction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("auction_id = ?", auctionID).
		First(&auction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

func (d *Database) UpdateAuction(auction *types.Auction) error {
	return d.db.Save(auction).Error
}

// ListOpenAuctions returns approved, still-available listings, soonest
// deadline first. Unscheduled listings sort last.
func (d *Database) ListOpenAuctions() ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("status = ? AND available = ?", types.AuctionApproved, true).
		Order("end_time IS NULL, end_time ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// ApproveAuction moves a PENDING_REVIEW listing to APPROVED and schedules its
// bidding window. The WHERE clause on status makes concurrent approvals and
// re-approvals of settled listings no-ops.
func (d *Database) ApproveAuction(auctionID string, startTime, endTime *time.Time) (bool, error) {
	result := d.db.Model(&types.Auction{}).
		Where("auction_id = ? AND status = ?", auctionID, types.AuctionPendingReview).
		Updates(map[string]interface{}{
			"status":     types.AuctionApproved,
			"available":  true,
			"start_time": startTime,
			"end_time":   endTime,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
