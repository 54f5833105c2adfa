package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/utils/pagination"
)

// LoveRepository persists "send love" interaction events.
type LoveRepository struct {
	db *gorm.DB
}

func NewLoveRepository(db *gorm.DB) *LoveRepository {
	return &LoveRepository{db: db}
}

func (r *LoveRepository) Create(ctx context.Context, c *db.LoveClick) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// CountBySenderSince counts the sender's events at or after since.
func (r *LoveRepository) CountBySenderSince(ctx context.Context, senderID int64, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.LoveClick{}).
		Where("sender_id = ? AND created_at >= ?", senderID, since.UTC()).
		Count(&n).Error
	return n, err
}

// CountByPairSince returns the pair's events since the given instant, per sender.
func (r *LoveRepository) CountByPairSince(ctx context.Context, pairID string, since time.Time) (map[int64]int64, error) {
	type row struct {
		SenderID int64
		N        int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&db.LoveClick{}).
		Select("sender_id, COUNT(*) AS n").
		Where("pair_id = ? AND created_at >= ?", pairID, since.UTC()).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.N
	}
	return out, nil
}

// CountSince counts all events at or after since.
func (r *LoveRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.LoveClick{}).
		Where("created_at >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// CountBetween counts events in [from, to).
func (r *LoveRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.LoveClick{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, err
}

// History returns the pair's events newest first, keyset-paginated.
//
// Behavior:
//   - Fetches limit+1 rows to know whether another page exists.
//   - The cursor is (created_at, id) of the last returned row; ties on
//     created_at are broken by id so no row is skipped or repeated.
//   - Returns a nil token on the last page.
func (r *LoveRepository) History(ctx context.Context, pairID string, token string, limit int) ([]db.LoveClick, *string, error) {
	cur, err := pagination.Decode(token)
	if err != nil {
		return nil, nil, err
	}

	q := r.db.WithContext(ctx).Where("pair_id = ?", pairID)
	if !cur.IsZero() {
		at := cur.Time()
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, cur.ID)
	}

	var clicks []db.LoveClick
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&clicks).Error; err != nil {
		return nil, nil, err
	}

	var next *string
	if len(clicks) > limit {
		clicks = clicks[:limit]
		last := clicks[len(clicks)-1]
		tok, err := pagination.Encode(pagination.After(last.ID, last.CreatedAt))
		if err != nil {
			return nil, nil, err
		}
		next = &tok
	}
	return clicks, next, nil
}
