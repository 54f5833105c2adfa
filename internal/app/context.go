package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/cache"
)

// Clock returns the current instant; tests replace it.
type Clock func() time.Time

// AppContext carries the process-wide collaborators built once in main.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Clock      Clock
	Location   *time.Location
}

// New creates a new AppContext with the real clock and the given timezone.
func New(db *gorm.DB, redisCache *cache.RedisCache, logger *slog.Logger, loc *time.Location) *AppContext {
	if loc == nil {
		loc = time.UTC
	}
	return &AppContext{
		DB:         db,
		RedisCache: redisCache,
		Logger:     logger,
		Clock:      time.Now,
		Location:   loc,
	}
}

// Now is the current instant in UTC.
func (a *AppContext) Now() time.Time { return a.Clock().UTC() }

// Today is the current calendar date (YYYY-MM-DD) in the app timezone.
func (a *AppContext) Today() string { return a.Clock().In(a.Location).Format(time.DateOnly) }

// StartOfDay is local midnight of the current day, as a UTC instant.
func (a *AppContext) StartOfDay() time.Time {
	now := a.Clock().In(a.Location)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.Location).UTC()
}

// UntilTomorrow is the time left until the next local midnight.
func (a *AppContext) UntilTomorrow() time.Duration {
	next := a.StartOfDay().In(a.Location).AddDate(0, 0, 1)
	return next.Sub(a.Clock())
}
