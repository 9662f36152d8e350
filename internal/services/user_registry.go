package services

import (
	"context"
	"fmt"
	"time"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/models"
	"github.com/batyrai/backend/internal/telegram"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRegistry keeps one usage record per verified Telegram user.
type UserRegistry struct {
	db    *gorm.DB
	clock clock.Clock
	loc   *time.Location
}

// NewUserRegistry creates a registry. loc decides which calendar day
// "today" is.
func NewUserRegistry(db *gorm.DB, clk clock.Clock, loc *time.Location) *UserRegistry {
	if loc == nil {
		loc = time.UTC
	}
	return &UserRegistry{db: db, clock: clk, loc: loc}
}

// Ensure creates the usage record for p unless it already exists.
// Concurrent calls for the same new user insert exactly one row.
func (r *UserRegistry) Ensure(ctx context.Context, p *telegram.Principal) error {
	rec := models.UsageRecord{
		UserID:        p.ID,
		Username:      p.Username,
		FirstName:     p.DisplayName,
		UsageCount:    0,
		LastUsageDate: models.EpochDate,
		FirstSeenDate: r.clock.Now().In(r.loc).Format(models.DateLayout),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to register user %d: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of distinct users ever registered.
func (r *UserRegistry) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
