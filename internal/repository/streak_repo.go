package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pulse/internal/db"
)

// MaxStreakAttempts bounds the optimistic retry loop of Apply.
const MaxStreakAttempts = 5

// ErrStreakContention is returned when every conditional write lost a race.
var ErrStreakContention = errors.New("streak update contention")

// StreakRepository persists per-pair streak state.
type StreakRepository struct {
	db *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

// Get returns the streak row for a pair, or (nil, nil) for legacy pairs without one.
func (r *StreakRepository) Get(ctx context.Context, pairID string) (*db.TreeStreak, error) {
	var s db.TreeStreak
	err := r.db.WithContext(ctx).First(&s, "pair_id = ?", pairID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Apply runs a read-modify-write on the pair's streak as a conditional update.
//
// Behavior:
//   - Reads the row (creating a zero row if the pair predates streaks).
//   - advance computes the next state; returning changed=false ends with no write.
//   - The write only lands if total_interactions still equals the value read,
//     so two concurrent callers can never both apply a change computed from
//     the same state. The loser re-reads and re-evaluates.
//
// Returns the resulting state and whether this call changed it.
func (r *StreakRepository) Apply(
	ctx context.Context,
	pairID string,
	advance func(cur db.TreeStreak) (db.TreeStreak, bool),
) (*db.TreeStreak, bool, error) {
	for attempt := 0; attempt < MaxStreakAttempts; attempt++ {
		cur, err := r.Get(ctx, pairID)
		if err != nil {
			return nil, false, err
		}
		if cur == nil {
			err := r.db.WithContext(ctx).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&db.TreeStreak{PairID: pairID, TreeLevel: 1}).Error
			if err != nil {
				return nil, false, err
			}
			continue
		}

		next, changed := advance(*cur)
		if !changed {
			return cur, false, nil
		}

		res := r.db.WithContext(ctx).Model(&db.TreeStreak{}).
			Where("pair_id = ? AND total_interactions = ?", pairID, cur.TotalInteractions).
			Updates(map[string]any{
				"current_streak":        next.CurrentStreak,
				"max_streak":            next.MaxStreak,
				"tree_level":            next.TreeLevel,
				"last_interaction_date": next.LastInteractionDate,
				"total_interactions":    next.TotalInteractions,
			})
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 1 {
			next.PairID = pairID
			return &next, true, nil
		}
	}
	return nil, false, fmt.Errorf("pair %s: %w", pairID, ErrStreakContention)
}

// AverageCurrent is the mean current streak across all pairs.
func (r *StreakRepository) AverageCurrent(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).Model(&db.TreeStreak{}).
		Select("AVG(current_streak)").Row().Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}
