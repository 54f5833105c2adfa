// Package admin backs the operator dashboard: aggregate stats, user listing
// and per-day activity charts.
package admin

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/repository"
)

const (
	DefaultPageSize  = 50
	MaxPageSize      = 200
	DefaultChartDays = 14
	MaxChartDays     = 90
)

// ErrAdminKey is returned for a missing or wrong admin key.
var ErrAdminKey = svcErr.Unauthorized("invalid_admin_key", "invalid admin key")

// HashKey hashes an admin key for ADMIN_KEY_HASH.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

type Service struct {
	appCtx  *app.AppContext
	keyHash []byte
	stats   *repository.StatsRepository
	users   *repository.UserRepository
	loves   *repository.LoveRepository
	wishes  *repository.WishRepository
	streaks *repository.StreakRepository
	dates   *repository.DateRepository
}

func NewService(appCtx *app.AppContext, keyHash string) *Service {
	return &Service{
		appCtx:  appCtx,
		keyHash: []byte(keyHash),
		stats:   repository.NewStatsRepository(appCtx.DB),
		users:   repository.NewUserRepository(appCtx.DB),
		loves:   repository.NewLoveRepository(appCtx.DB),
		wishes:  repository.NewWishRepository(appCtx.DB),
		streaks: repository.NewStreakRepository(appCtx.DB),
		dates:   repository.NewDateRepository(appCtx.DB),
	}
}

// Authenticate checks key against the configured bcrypt hash. With no hash
// configured every key is rejected.
func (s *Service) Authenticate(key string) error {
	if len(s.keyHash) == 0 || key == "" {
		return ErrAdminKey
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(key)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.appCtx.Logger.Error("admin key hash unusable", "err", err)
		}
		return ErrAdminKey
	}
	return nil
}

type UserStats struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
}

type PairStats struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Pending int64 `json:"pending"`
}

type ActivityStats struct {
	TotalLoveClicks int64 `json:"totalLoveClicks"`
	LoveToday       int64 `json:"loveToday"`
	LoveWeek        int64 `json:"loveWeek"`
	AvgPerDay       int64 `json:"avgPerDay"`
}

type EngagementStats struct {
	TotalDates   int64 `json:"totalDates"`
	TotalMatches int64 `json:"totalMatches"`
	TotalSwipes  int64 `json:"totalSwipes"`
	AvgStreak    int64 `json:"avgStreak"`
}

type Stats struct {
	Users      UserStats       `json:"users"`
	Pairs      PairStats       `json:"pairs"`
	Activity   ActivityStats   `json:"activity"`
	Engagement EngagementStats `json:"engagement"`
}

// Stats computes the dashboard totals. Windows start at local midnight.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	today := s.appCtx.StartOfDay()
	week := today.AddDate(0, 0, -7)
	month := today.AddDate(0, 0, -30)

	var out Stats
	var err error
	steps := []func() error{
		func() error { out.Users.Total, err = s.stats.Count(ctx, &db.User{}, ""); return err },
		func() error { out.Users.Today, err = s.stats.UsersSince(ctx, today); return err },
		func() error { out.Users.Week, err = s.stats.UsersSince(ctx, week); return err },
		func() error { out.Users.Month, err = s.stats.UsersSince(ctx, month); return err },
		func() error {
			out.Pairs.Total, out.Pairs.Active, out.Pairs.Pending, err = s.stats.PairCounts(ctx)
			return err
		},
		func() error { out.Activity.TotalLoveClicks, err = s.stats.Count(ctx, &db.LoveClick{}, ""); return err },
		func() error { out.Activity.LoveToday, err = s.loves.CountSince(ctx, today); return err },
		func() error { out.Activity.LoveWeek, err = s.loves.CountSince(ctx, week); return err },
		func() error { out.Engagement.TotalDates, err = s.dates.Count(ctx); return err },
		func() error { out.Engagement.TotalMatches, err = s.stats.Count(ctx, &db.WishMatch{}, ""); return err },
		func() error { out.Engagement.TotalSwipes, err = s.stats.Count(ctx, &db.WishSwipe{}, ""); return err },
		func() error {
			avg, err := s.streaks.AverageCurrent(ctx)
			out.Engagement.AvgStreak = int64(math.Round(avg))
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, svcErr.Storage("admin stats", err)
		}
	}
	out.Activity.AvgPerDay = int64(math.Round(float64(out.Activity.LoveWeek) / 7))
	return &out, nil
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users []db.User `json:"users"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
}

// Users lists users newest first. page is 1-based.
func (s *Service) Users(ctx context.Context, page, limit int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	users, total, err := s.users.Page(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, svcErr.Storage("list users", err)
	}
	return &UserPage{
		Users: users,
		Total: total,
		Page:  page,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// DayActivity is one bar of the activity chart.
type DayActivity struct {
	Date       string `json:"date"`
	LoveClicks int64  `json:"loveClicks"`
	Swipes     int64  `json:"swipes"`
	NewUsers   int64  `json:"newUsers"`
}

// Activity returns per-day counts for the last days local days, oldest first.
func (s *Service) Activity(ctx context.Context, days int) ([]DayActivity, error) {
	if days <= 0 {
		days = DefaultChartDays
	}
	days = min(days, MaxChartDays)

	start := s.appCtx.StartOfDay().In(s.appCtx.Location)
	out := make([]DayActivity, 0, days)
	for i := days - 1; i >= 0; i-- {
		from := start.AddDate(0, 0, -i)
		to := from.AddDate(0, 0, 1)

		d := DayActivity{Date: from.Format(time.DateOnly)}
		var err error
		if d.LoveClicks, err = s.loves.CountBetween(ctx, from, to); err != nil {
			return nil, svcErr.Storage("activity", err)
		}
		if d.Swipes, err = s.wishes.CountSwipesBetween(ctx, from, to); err != nil {
			return nil, svcErr.Storage("activity", err)
		}
		if d.NewUsers, err = s.stats.UsersBetween(ctx, from, to); err != nil {
			return nil, svcErr.Storage("activity", err)
		}
		out = append(out, d)
	}
	return out, nil
}
