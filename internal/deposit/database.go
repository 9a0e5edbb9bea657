package deposit

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateDeposit(deposit *Deposit) error {
	return d.db.Create(deposit).Error
}

func (d *Database) UpdateDeposit(deposit *Deposit) error {
	return d.db.Save(deposit).Error
}

func (d *Database) GetDeposit(depositID string) (*Deposit, error) {
	var deposit Deposit
	if err := d.db.Where("deposit_id = ?", depositID).First(&deposit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deposit, nil
}

func (d *Database) GetDepositByUserAndAuction(userID, auctionID string) (*Deposit, error) {
	var deposit Deposit
	err := d.db.Where("user_id = ? AND auction_id = ?", userID, auctionID).First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deposit, nil
}

func (d *Database) GetDepositByChargeRef(chargeRef string) (*Deposit, error) {
	var deposit Deposit
	if err := d.db.Where("charge_ref = ?", chargeRef).First(&deposit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deposit, nil
}

// GetPaidDeposits returns every PAID deposit on an auction, settlement's
// refund fan-out input.
func (d *Database) GetPaidDeposits(auctionID string) ([]Deposit, error) {
	var deposits []Deposit
	err := d.db.
		Where("auction_id = ? AND status = ?", auctionID, StatusPaid).
		Order("created_at ASC").
		Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

// TransitionStatus performs a guarded state change: the row moves from
// "from" to "to" only if it is still in "from". Returns false when the guard
// failed, which callers translate to an invalid-state error.
func (d *Database) TransitionStatus(depositID string, from, to Status, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := d.db.Model(&Deposit{}).
		Where("deposit_id = ? AND status = ?", depositID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
