package auction_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/motorbid/auction-api/internal/auction"
	"github.com/motorbid/auction-api/internal/database"
	"github.com/motorbid/auction-api/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	// The uuid keeps repeated runs in one process from sharing a database.
	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	return db
}

func TestCreateListing(t *testing.T) {
	svc := auction.NewService(testDB(t))

	reserve := decimal.NewFromInt(55000)
	a, err := svc.CreateListing("seller-1", auction.CreateListingInput{
		VehicleMake:    "Volvo",
		VehicleModel:   "XC60",
		VehicleYear:    2022,
		StartingPrice:  decimal.NewFromInt(50000),
		ReservePrice:   &reserve,
		BidIncrement:   decimal.NewFromInt(500),
		AutoExtendSecs: 300,
	})
	require.NoError(t, err)
	require.Equal(t, types.AuctionPendingReview, a.Status)
	require.False(t, a.Available)
	require.True(t, a.ReservePrice.Valid)

	// New listings are invisible until approved.
	open, err := svc.ListOpenAuctions()
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestCreateListingValidation(t *testing.T) {
	svc := auction.NewService(testDB(t))

	_, err := svc.CreateListing("seller-1", auction.CreateListingInput{
		VehicleMake:   "Volvo",
		VehicleModel:  "XC60",
		VehicleYear:   2022,
		StartingPrice: decimal.Zero,
		BidIncrement:  decimal.NewFromInt(500),
	})
	require.Error(t, err)

	_, err = svc.CreateListing("seller-1", auction.CreateListingInput{
		VehicleMake:   "Volvo",
		VehicleModel:  "XC60",
		VehicleYear:   2022,
		StartingPrice: decimal.NewFromInt(50000),
		BidIncrement:  decimal.NewFromInt(-1),
	})
	require.Error(t, err)
}

func TestApprove(t *testing.T) {
	svc := auction.NewService(testDB(t))

	a, err := svc.CreateListing("seller-1", auction.CreateListingInput{
		VehicleMake:   "Volvo",
		VehicleModel:  "XC60",
		VehicleYear:   2022,
		StartingPrice: decimal.NewFromInt(50000),
		BidIncrement:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	start := time.Now().Add(-time.Minute)
	end := time.Now().Add(time.Hour)
	approved, err := svc.Approve(a.AuctionID, &start, &end)
	require.NoError(t, err)
	require.Equal(t, types.AuctionApproved, approved.Status)
	require.True(t, approved.Available)
	require.NotNil(t, approved.EndTime)

	open, err := svc.ListOpenAuctions()
	require.NoError(t, err)
	require.Len(t, open, 1)

	// Approval is one-shot.
	_, err = svc.Approve(a.AuctionID, &start, &end)
	require.Error(t, err)

	_, err = svc.Approve("AUC_MISSING", &start, &end)
	require.ErrorIs(t, err, auction.ErrAuctionNotFound)
}

func TestMinimumNextBid(t *testing.T) {
	a := &types.Auction{
		StartingPrice: decimal.NewFromInt(50000),
		BidIncrement:  decimal.NewFromInt(500),
	}
	require.True(t, a.MinimumNextBid().Equal(decimal.NewFromInt(50500)))

	a.CurrentHighBid = decimal.NullDecimal{Decimal: decimal.NewFromInt(51000), Valid: true}
	require.True(t, a.MinimumNextBid().Equal(decimal.NewFromInt(51500)))
}
