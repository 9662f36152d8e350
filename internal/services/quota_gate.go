package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/models"
	"gorm.io/gorm"
)

// ErrPrincipalNotRegistered means TryConsume ran before UserRegistry.Ensure.
var ErrPrincipalNotRegistered = errors.New("user is not registered")

// Unlimited is reported as the remaining allowance for the admin user.
const Unlimited = math.MaxInt32

// QuotaDecision is the outcome of one TryConsume call.
type QuotaDecision struct {
	Allowed   bool
	Remaining int
}

// QuotaGate enforces a renewable daily allowance per user.
type QuotaGate struct {
	db      *gorm.DB
	clock   clock.Clock
	loc     *time.Location
	limit   int
	adminID int64
}

// NewQuotaGate creates a gate allowing limit uses per calendar day.
// adminID 0 disables the admin bypass.
func NewQuotaGate(db *gorm.DB, clk clock.Clock, loc *time.Location, limit int, adminID int64) *QuotaGate {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaGate{db: db, clock: clk, loc: loc, limit: limit, adminID: adminID}
}

// Limit returns the configured daily limit.
func (g *QuotaGate) Limit() int {
	return g.limit
}

// TryConsume spends one unit of today's allowance if any is left.
//
// The read-decide-write sequence is a single conditional UPDATE, so two
// concurrent requests from the same user cannot both take the last unit.
// A record whose LastUsageDate is not today counts as zero usage.
func (g *QuotaGate) TryConsume(ctx context.Context, userID int64) (QuotaDecision, error) {
	if g.adminID != 0 && userID == g.adminID {
		return QuotaDecision{Allowed: true, Remaining: Unlimited}, nil
	}

	today := g.clock.Now().In(g.loc).Format(models.DateLayout)
	var decision QuotaDecision

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if g.limit <= 0 {
			return g.denyIfRegistered(tx, userID, &decision)
		}

		res := tx.Model(&models.UsageRecord{}).
			Where("user_id = ? AND (last_usage_date <> ? OR usage_count < ?)", userID, today, g.limit).
			Updates(map[string]interface{}{
				"usage_count":     gorm.Expr("CASE WHEN last_usage_date = ? THEN usage_count + 1 ELSE 1 END", today),
				"last_usage_date": today,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return g.denyIfRegistered(tx, userID, &decision)
		}

		var rec models.UsageRecord
		if err := tx.Where("user_id = ?", userID).First(&rec).Error; err != nil {
			return err
		}
		decision = QuotaDecision{Allowed: true, Remaining: g.limit - rec.UsageCount}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPrincipalNotRegistered) {
			return QuotaDecision{}, err
		}
		return QuotaDecision{}, fmt.Errorf("quota check for user %d failed: %w", userID, err)
	}
	return decision, nil
}

func (g *QuotaGate) denyIfRegistered(tx *gorm.DB, userID int64, decision *QuotaDecision) error {
	var count int64
	if err := tx.Model(&models.UsageRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPrincipalNotRegistered
	}
	*decision = QuotaDecision{Allowed: false, Remaining: 0}
	return nil
}

// DeniedMessage is the user-facing text for an exhausted allowance.
func (g *QuotaGate) DeniedMessage() string {
	return fmt.Sprintf("Daily limit (%d) reached. Come back tomorrow!", g.limit)
}
