// Package love implements the "send love" interaction and its rate limits.
package love

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/cache"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
)

const (
	// CooldownPeriod is the minimum gap between two sends by one user.
	CooldownPeriod = 5 * time.Second
	// FreeDailyLimit is how many sends a non-premium user gets per local day.
	FreeDailyLimit = 1
)

// CooldownStore is an atomic check-and-set with expiry.
// Acquire either sets key for ttl and returns true, or reports the time left.
type CooldownStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
}

// EventStore records accepted interactions.
type EventStore interface {
	CountBySenderSince(ctx context.Context, senderID int64, since time.Time) (int64, error)
	Create(ctx context.Context, c *db.LoveClick) error
}

// StreakRecorder advances the pair streak for a calendar day.
type StreakRecorder interface {
	RecordInteraction(ctx context.Context, pairID, today string) (*db.TreeStreak, bool, error)
}

// Attempt is one "send love" request.
type Attempt struct {
	PairID     string
	SenderID   int64
	ReceiverID int64
	Message    *string
	Entitled   bool
}

// Result of an accepted attempt.
type Result struct {
	Click         *db.LoveClick
	Streak        *db.TreeStreak
	StreakChanged bool
	ShouldNotify  bool
}

// Throttle applies the daily cap and the cooldown before recording an interaction.
type Throttle struct {
	appCtx    *app.AppContext
	events    EventStore
	cooldowns CooldownStore
	streaks   StreakRecorder
}

func NewThrottle(appCtx *app.AppContext, events EventStore, cooldowns CooldownStore, streaks StreakRecorder) *Throttle {
	return &Throttle{appCtx: appCtx, events: events, cooldowns: cooldowns, streaks: streaks}
}

// Attempt runs the rules in order:
//  1. non-entitled senders get FreeDailyLimit sends per local day
//  2. CooldownPeriod between sends, via the atomic cooldown store
//  3. the event is stored
//  4. the pair streak advances for today
//
// A rejection by 1 or 2 writes nothing.
func (t *Throttle) Attempt(ctx context.Context, a Attempt) (*Result, error) {
	log := t.appCtx.Logger.With("pair_id", a.PairID, "sender", a.SenderID)

	if !a.Entitled {
		n, err := t.events.CountBySenderSince(ctx, a.SenderID, t.appCtx.StartOfDay())
		if err != nil {
			return nil, svcErr.Storage("count sends", err)
		}
		if n >= FreeDailyLimit {
			log.Debug("daily limit reached", "sent_today", n)
			return nil, svcErr.ErrDailyLimit.With(t.appCtx.UntilTomorrow())
		}
	}

	ok, remaining, err := t.cooldowns.Acquire(ctx, cache.KeyForCooldown(a.SenderID), CooldownPeriod)
	if err != nil {
		return nil, svcErr.Storage("acquire cooldown", err)
	}
	if !ok {
		log.Debug("cooldown active", "remaining", remaining)
		return nil, svcErr.ErrCooldown.With(remaining)
	}

	click := &db.LoveClick{
		ID:         uuid.NewString(),
		PairID:     a.PairID,
		SenderID:   a.SenderID,
		ReceiverID: a.ReceiverID,
		Message:    a.Message,
		CreatedAt:  t.appCtx.Now().Truncate(time.Millisecond),
	}
	if err := t.events.Create(ctx, click); err != nil {
		return nil, svcErr.Storage("store love click", err)
	}

	s, changed, err := t.streaks.RecordInteraction(ctx, a.PairID, t.appCtx.Today())
	if err != nil {
		return nil, err
	}

	log.Info("love sent", "receiver", a.ReceiverID, "streak", s.CurrentStreak)
	return &Result{Click: click, Streak: s, StreakChanged: changed, ShouldNotify: true}, nil
}

// Seconds rounds a retry hint up to whole seconds for clients.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
