// Package testutil wires in-memory sqlite and miniredis for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/cache"
	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/logger"
)

// NewDB opens a per-test shared-cache in-memory sqlite DB with the full schema.
// A single connection keeps every statement on the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	cfg := db.GormConfig(logger.Discard(), "silent")
	cfg.SkipDefaultTransaction = true

	gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// NewRedis starts a miniredis bound to the test lifetime.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

// Clock is a settable clock for AppContext.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Env bundles everything a service test needs.
type Env struct {
	App   *app.AppContext
	DB    *gorm.DB
	Redis *miniredis.Miniredis
	Clock *Clock
}

// DefaultStart is 10:00 UTC on a fixed day; tests run in UTC.
var DefaultStart = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

// NewEnv wires DB, Redis and a controllable clock into an AppContext.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gdb := NewDB(t)
	rc, mr := NewRedis(t)
	clock := NewClock(DefaultStart)

	appCtx := app.New(gdb, rc, logger.Discard(), time.UTC)
	appCtx.Clock = clock.Now

	return &Env{App: appCtx, DB: gdb, Redis: mr, Clock: clock}
}

// User inserts a user with the given id and first name.
func (e *Env) User(t *testing.T, id int64, name string) *db.User {
	t.Helper()
	u := &db.User{ID: id, FirstName: name, LanguageCode: "en"}
	require.NoError(t, e.DB.Create(u).Error)
	return u
}

// Premium marks the user as entitled until the given instant.
func (e *Env) Premium(t *testing.T, id int64, until time.Time) {
	t.Helper()
	require.NoError(t, e.DB.Model(&db.User{}).Where("id = ?", id).
		Updates(map[string]any{"is_premium": true, "premium_until": until}).Error)
}

// JoinedPair inserts an active joined pair with a zero streak.
func (e *Env) JoinedPair(t *testing.T, id string, creator, partner int64) *db.Pair {
	t.Helper()
	now := e.App.Now()
	p := &db.Pair{
		ID:         id,
		CreatorID:  creator,
		PartnerID:  &partner,
		InviteCode: strings.ToUpper(fmt.Sprintf("%-8.8s", strings.ReplaceAll(id, "-", "")+"XXXXXXXX")),
		IsActive:   true,
		PairedAt:   &now,
	}
	require.NoError(t, e.DB.Create(p).Error)
	require.NoError(t, e.DB.Create(&db.TreeStreak{PairID: id, TreeLevel: 1}).Error)
	return p
}
