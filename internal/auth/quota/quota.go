// Package quota enforces the per-tier daily call quota and owns the usage
// ledger the quota is counted against.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Daily limits per tier. A tier missing from this table has no quota check.
var tierLimits = map[string]int64{
	models.TierFree: 50,
	models.TierPro:  500,
}

const upgradeMessage = "Daily limit reached. " +
	"Upgrade to Pro ($49/mo) for 500 calls/day or Business ($149/mo) for unlimited. " +
	"Visit your billing page to upgrade."

// Limit returns the daily quota for tier, or false when the tier is
// unlimited.
func Limit(tier string) (int64, bool) {
	n, ok := tierLimits[tier]
	return n, ok
}

// Limiter counts same-day usage against the tier quota. The count and the
// later ledger append are deliberately not one transaction: concurrent calls
// near the boundary may both pass, which is accepted.
type Limiter struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Limiter {
	return &Limiter{db: db}
}

// Check permits the call or fails with QuotaExceeded.
func (l *Limiter) Check(ctx context.Context, user *models.User) error {
	limit, ok := tierLimits[user.Tier]
	if !ok {
		// Unlimited tier
		return nil
	}

	count, err := l.CountToday(ctx, user.ID)
	if err != nil {
		return err
	}
	if count >= limit {
		return apierr.New(apierr.KindQuotaExceeded, upgradeMessage)
	}
	return nil
}

// CountToday returns the number of ledger entries for the user since the
// start of the current UTC calendar day.
func (l *Limiter) CountToday(ctx context.Context, userID string) (int64, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("user_id = ? AND timestamp >= ?", userID, dayStart).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count daily usage: %w", err)
	}
	return count, nil
}

// Record appends one ledger entry for an admitted tool call.
func (l *Limiter) Record(ctx context.Context, user *models.User, toolName string) error {
	entry := models.UsageLog{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ToolName:  toolName,
		Timestamp: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
