package love

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/cache"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/repository"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/service/streak"
	"github.com/oggyb/pulse/internal/utils/pagination"
)

const (
	MaxMessageLength   = 200
	DefaultHistorySize = 50
	MaxHistorySize     = 100
)

// Service is the user-facing side of "send love".
type Service struct {
	appCtx   *app.AppContext
	registry *pairing.Registry
	throttle *Throttle
	users    *repository.UserRepository
	clicks   *repository.LoveRepository
	notifier notify.Notifier
}

func NewService(appCtx *app.AppContext, registry *pairing.Registry, tracker *streak.Tracker, notifier notify.Notifier) *Service {
	clicks := repository.NewLoveRepository(appCtx.DB)
	return &Service{
		appCtx:   appCtx,
		registry: registry,
		throttle: NewThrottle(appCtx, clicks, appCtx.RedisCache, tracker),
		users:    repository.NewUserRepository(appCtx.DB),
		clicks:   clicks,
		notifier: notify.Safe(notifier, appCtx.Logger),
	}
}

// SendResult is returned to the sender.
type SendResult struct {
	Click  *db.LoveClick `json:"loveClick"`
	Streak streak.Status `json:"streak"`
}

// Send records a love click from userID to the partner and notifies them.
func (s *Service) Send(ctx context.Context, userID int64, message string) (*SendResult, error) {
	msg, err := normalizeMessage(message)
	if err != nil {
		return nil, err
	}

	v, err := s.registry.RequireJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load sender", err)
	}

	res, err := s.throttle.Attempt(ctx, Attempt{
		PairID:     v.Pair.ID,
		SenderID:   userID,
		ReceiverID: v.PartnerOf(userID),
		Message:    msg,
		Entitled:   sender.HasPremium(s.appCtx.Now()),
	})
	if err != nil {
		return nil, err
	}

	key := cache.KeyForLoveStats(v.Pair.ID, s.appCtx.Today())
	if err := s.appCtx.RedisCache.InvalidateCounters(ctx, key, statsTTL(s.appCtx.UntilTomorrow())); err != nil {
		s.appCtx.Logger.Warn("love stats cache invalidation failed", "key", key, "err", err)
	}

	if res.ShouldNotify {
		_ = s.notifier.Love(ctx, res.Click.ReceiverID, sender.DisplayName(), msg)
	}
	return &SendResult{Click: res.Click, Streak: streak.StatusOf(res.Streak)}, nil
}

func normalizeMessage(message string) (*string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, svcErr.Invalid("message is too long")
	}
	return &message, nil
}

// HistoryPage is one page of a pair's love clicks, newest first.
type HistoryPage struct {
	Items      []db.LoveClick `json:"items"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

// History pages through the pair's clicks. limit <= 0 means the default.
func (s *Service) History(ctx context.Context, userID int64, limit int, cursor string) (*HistoryPage, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistorySize
	case limit > MaxHistorySize:
		limit = MaxHistorySize
	}

	v, err := s.registry.GetActivePair(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, svcErr.ErrNotPaired
	}

	items, next, err := s.clicks.History(ctx, v.Pair.ID, cursor, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, svcErr.Invalid("invalid cursor")
	}
	if err != nil {
		return nil, svcErr.Storage("love history", err)
	}
	if items == nil {
		items = []db.LoveClick{}
	}
	return &HistoryPage{Items: items, NextCursor: next}, nil
}

// TodayStats summarizes the current local day for the user's pair.
type TodayStats struct {
	Sent              int64 `json:"sent"`
	Received          int64 `json:"received"`
	Total             int64 `json:"total"`
	IsPremium         bool  `json:"isPremium"`
	DailyLimit        *int  `json:"dailyLimit,omitempty"`
	Remaining         *int  `json:"remaining,omitempty"`
	CooldownRemaining int   `json:"cooldownRemaining"`
}

// TodayStats reads per-sender counts from the Redis hash for today,
// falling back to the database and re-filling the cache on a miss.
func (s *Service) TodayStats(ctx context.Context, userID int64) (*TodayStats, error) {
	v, err := s.registry.RequireJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}

	counts, err := s.dayCounts(ctx, v.Pair)
	if err != nil {
		return nil, err
	}

	partner := v.PartnerOf(userID)
	st := &TodayStats{
		Sent:      counts[strconv.FormatInt(userID, 10)],
		Received:  counts[strconv.FormatInt(partner, 10)],
		IsPremium: u.HasPremium(s.appCtx.Now()),
	}
	st.Total = st.Sent + st.Received

	if !st.IsPremium {
		limit := FreeDailyLimit
		remaining := max(0, limit-int(st.Sent))
		st.DailyLimit = &limit
		st.Remaining = &remaining
	}

	left, err := s.appCtx.RedisCache.Remaining(ctx, cache.KeyForCooldown(userID))
	if err != nil {
		s.appCtx.Logger.Warn("cooldown lookup failed", "user_id", userID, "err", err)
	}
	st.CooldownRemaining = Seconds(left)
	return st, nil
}

func (s *Service) dayCounts(ctx context.Context, p *db.Pair) (map[string]int64, error) {
	key := cache.KeyForLoveStats(p.ID, s.appCtx.Today())

	var loadErr error
	load := func(ctx context.Context) (map[string]int64, error) {
		counts, err := s.countToday(ctx, p)
		loadErr = err
		return counts, err
	}
	counts, err := s.appCtx.RedisCache.Counters(ctx, key, statsTTL(s.appCtx.UntilTomorrow()), load)
	switch {
	case loadErr != nil:
		return nil, loadErr
	case err == nil:
		return counts, nil
	case !errors.Is(err, cache.ErrCountersChanged):
		s.appCtx.Logger.Warn("love stats cache read failed", "key", key, "err", err)
	}
	return s.countToday(ctx, p)
}

func (s *Service) countToday(ctx context.Context, p *db.Pair) (map[string]int64, error) {
	bySender, err := s.clicks.CountByPairSince(ctx, p.ID, s.appCtx.StartOfDay())
	if err != nil {
		return nil, svcErr.Storage("count love clicks", err)
	}

	counts := map[string]int64{strconv.FormatInt(p.CreatorID, 10): 0}
	if p.PartnerID != nil {
		counts[strconv.FormatInt(*p.PartnerID, 10)] = 0
	}
	for sender, n := range bySender {
		counts[strconv.FormatInt(sender, 10)] = n
	}
	return counts, nil
}

// statsTTL keeps a day's counters until local midnight.
func statsTTL(untilTomorrow time.Duration) time.Duration {
	return max(untilTomorrow, time.Minute)
}

// Streak returns the streak of the user's active pair.
func (s *Service) Streak(ctx context.Context, userID int64) (streak.Status, error) {
	v, err := s.registry.GetActivePair(ctx, userID)
	if err != nil {
		return streak.Status{}, err
	}
	if v == nil {
		return streak.Status{}, svcErr.ErrNotPaired
	}
	return streak.StatusOf(v.Streak), nil
}
