package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// StatsRepository runs the aggregate counts behind the admin dashboard.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Count counts rows of model matching an optional condition.
func (r *StatsRepository) Count(ctx context.Context, model any, query string, args ...any) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	err := q.Count(&n).Error
	return n, err
}

// UsersSince counts users created at or after since.
func (r *StatsRepository) UsersSince(ctx context.Context, since time.Time) (int64, error) {
	return r.Count(ctx, &db.User{}, "created_at >= ?", since.UTC())
}

// UsersBetween counts users created in [from, to).
func (r *StatsRepository) UsersBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return r.Count(ctx, &db.User{}, "created_at >= ? AND created_at < ?", from.UTC(), to.UTC())
}

// PairCounts returns joined, active joined and pending pair totals.
func (r *StatsRepository) PairCounts(ctx context.Context) (joined, active, pending int64, err error) {
	if joined, err = r.Count(ctx, &db.Pair{}, "partner_id IS NOT NULL"); err != nil {
		return
	}
	if active, err = r.Count(ctx, &db.Pair{}, "partner_id IS NOT NULL AND is_active = ?", true); err != nil {
		return
	}
	pending, err = r.Count(ctx, &db.Pair{}, "partner_id IS NULL AND is_active = ?", true)
	return
}
