// Package streak tracks consecutive days of pair activity and the derived tree level.
package streak

import (
	"context"
	"time"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/repository"
)

// Tier maps the current streak onto a tree level 1..5.
func Tier(current int) int {
	switch {
	case current >= 100:
		return 5
	case current >= 50:
		return 4
	case current >= 21:
		return 3
	case current >= 7:
		return 2
	default:
		return 1
	}
}

var levelNames = map[int]string{
	1: "sprout",
	2: "seedling",
	3: "young",
	4: "mature",
	5: "blooming",
}

// LevelName is the display name of a tree level.
func LevelName(level int) string {
	if n, ok := levelNames[level]; ok {
		return n
	}
	return levelNames[1]
}

// Advance applies one interaction on day today (YYYY-MM-DD).
//
// Behavior:
//   - last == today: unchanged, changed=false.
//   - last == today-1: current+1.
//   - anything else (gap or never): current = 1.
//
// On a change max, last, lifetime and tier are updated too.
// The tier is recomputed from current, so it drops when a streak breaks.
func Advance(cur db.TreeStreak, today string) (db.TreeStreak, bool) {
	if cur.LastInteractionDate != nil && *cur.LastInteractionDate == today {
		return cur, false
	}

	next := cur
	if cur.LastInteractionDate != nil && *cur.LastInteractionDate == previousDay(today) {
		next.CurrentStreak++
	} else {
		next.CurrentStreak = 1
	}
	next.MaxStreak = max(cur.MaxStreak, next.CurrentStreak)
	next.TreeLevel = Tier(next.CurrentStreak)
	next.TotalInteractions = cur.TotalInteractions + 1
	day := today
	next.LastInteractionDate = &day
	return next, true
}

func previousDay(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(time.DateOnly)
}

// Tracker persists streak transitions.
type Tracker struct {
	appCtx *app.AppContext
	repo   *repository.StreakRepository
}

func NewTracker(appCtx *app.AppContext) *Tracker {
	return &Tracker{
		appCtx: appCtx,
		repo:   repository.NewStreakRepository(appCtx.DB),
	}
}

// RecordInteraction counts today for the pair. Two calls on the same day
// change the state once, even when they race.
func (t *Tracker) RecordInteraction(ctx context.Context, pairID, today string) (*db.TreeStreak, bool, error) {
	if _, err := time.Parse(time.DateOnly, today); err != nil {
		return nil, false, svcErr.Invalid("day must be YYYY-MM-DD")
	}

	s, changed, err := t.repo.Apply(ctx, pairID, func(cur db.TreeStreak) (db.TreeStreak, bool) {
		return Advance(cur, today)
	})
	if err != nil {
		t.appCtx.Logger.Error("streak update failed", "pair_id", pairID, "day", today, "err", err)
		return nil, false, svcErr.Storage("record interaction", err)
	}
	if changed {
		t.appCtx.Logger.Debug("streak advanced", "pair_id", pairID, "current", s.CurrentStreak, "level", s.TreeLevel)
	}
	return s, changed, nil
}

// Status is the streak as shown to clients.
type Status struct {
	CurrentStreak       int     `json:"currentStreak"`
	MaxStreak           int     `json:"maxStreak"`
	TreeLevel           int     `json:"treeLevel"`
	LevelName           string  `json:"levelName"`
	LastInteractionDate *string `json:"lastInteractionDate"`
	TotalInteractions   int     `json:"totalInteractions"`
}

// StatusOf renders s; a missing row reads as a fresh level-1 streak.
func StatusOf(s *db.TreeStreak) Status {
	if s == nil {
		return Status{TreeLevel: 1, LevelName: LevelName(1)}
	}
	return Status{
		CurrentStreak:       s.CurrentStreak,
		MaxStreak:           s.MaxStreak,
		TreeLevel:           s.TreeLevel,
		LevelName:           LevelName(s.TreeLevel),
		LastInteractionDate: s.LastInteractionDate,
		TotalInteractions:   s.TotalInteractions,
	}
}
