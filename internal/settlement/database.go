package settlement

import (
	"errors"
	"time"

	"github.com/motorbid/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetSettlementByAuctionID(auctionID string) (*Settlement, error) {
	var settlement Settlement
	if err := d.db.Where("auction_id = ?", auctionID).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

func (d *Database) GetPurchaseByAuctionID(auctionID string) (*Purchase, error) {
	var purchase Purchase
	if err := d.db.Where("auction_id = ?", auctionID).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// GetSettleableAuctions returns approved, still-available auctions whose end
// time has passed: the sweep's work list.
func (d *Database) GetSettleableAuctions(now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("status = ? AND available = ? AND end_time IS NOT NULL AND end_time <= ?",
			types.AuctionApproved, true, now).
		Order("end_time ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}
