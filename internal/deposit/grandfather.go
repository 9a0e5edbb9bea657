package deposit

import (
	"time"

	"github.com/motorbid/auction-api/internal/types"
	"gorm.io/gorm"
)

// Legacy compatibility rule, kept out of the validator proper so it can be
// removed wholesale once pre-rollout bid data ages out.
//
// The deposit requirement was introduced at a fixed instant. A user who had
// already bid on an auction before that instant keeps bidding on it without
// a deposit. The exemption is per (user, auction), never global.

// isGrandfathered reports whether the pair predates the deposit requirement.
// A zero cutover disables the exemption entirely.
func isGrandfathered(db *gorm.DB, userID, auctionID string, requiredSince time.Time) (bool, error) {
	if requiredSince.IsZero() {
		return false, nil
	}

	var count int64
	err := db.Model(&types.Bid{}).
		Where("bidder_id = ? AND auction_id = ? AND created_at < ?", userID, auctionID, requiredSince).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
