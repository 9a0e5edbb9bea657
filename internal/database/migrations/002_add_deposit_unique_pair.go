package migrations

import (
	"github.com/motorbid/auction-api/internal/deposit"
	"gorm.io/gorm"
)

// AddDepositUniquePair creates the deposits table and enforces the
// one-deposit-per-(user, auction) rule at the database. Racing createDeposit
// calls fail on this constraint rather than double-charging.
func AddDepositUniquePair(db *gorm.DB) error {
	if err := db.AutoMigrate(&deposit.Deposit{}); err != nil {
		return err
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_user_auction
		 ON deposits(user_id, auction_id)`,

		// Settlement's refund fan-out selects PAID deposits per auction
		`CREATE INDEX IF NOT EXISTS idx_deposits_auction_status
		 ON deposits(auction_id, status)`,

		// Webhook confirmations look deposits up by gateway charge reference
		`CREATE INDEX IF NOT EXISTS idx_deposits_charge_ref
		 ON deposits(charge_ref)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
