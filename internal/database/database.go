package database

import (
	"fmt"

	"github.com/motorbid/auction-api/internal/database/migrations"
	"github.com/motorbid/auction-api/internal/settlement"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection.
// TranslateError maps driver unique-constraint violations to
// gorm.ErrDuplicatedKey, which the deposit ledger relies on.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddAuctionBidIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddDepositUniquePair(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&settlement.Purchase{},
		&settlement.Settlement{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
