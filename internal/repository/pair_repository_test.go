package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
	"github.com/oggyb/pulse/internal/repository"
	"github.com/oggyb/pulse/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestCreateWithStreak(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewPairRepository(gdb)

	p := &db.Pair{ID: "p1", CreatorID: 1, InviteCode: "ABCD2345", IsActive: true}
	require.NoError(t, repo.CreateWithStreak(ctx, p))

	var s db.TreeStreak
	require.NoError(t, gdb.First(&s, "pair_id = ?", "p1").Error)
	assert.Equal(t, 1, s.TreeLevel)
	assert.Zero(t, s.CurrentStreak)

	// same code again → duplicate key, and no orphan streak row
	dup := &db.Pair{ID: "p2", CreatorID: 2, InviteCode: "ABCD2345", IsActive: true}
	err := repo.CreateWithStreak(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var n int64
	gdb.Model(&db.TreeStreak{}).Where("pair_id = ?", "p2").Count(&n)
	assert.Zero(t, n)
}

func TestFindActiveForUser_PrefersJoinedThenRecent(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewPairRepository(gdb)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	require.NoError(t, gdb.Create(&[]db.Pair{
		{ID: "unjoined", CreatorID: 1, InviteCode: "AAAAAAAA", IsActive: true, CreatedAt: newer.Add(time.Hour)},
		{ID: "old-joined", CreatorID: 1, PartnerID: ptr[int64](2), InviteCode: "BBBBBBBB", IsActive: true, PairedAt: &older},
		{ID: "new-joined", CreatorID: 3, PartnerID: ptr[int64](1), InviteCode: "CCCCCCCC", IsActive: true, PairedAt: &newer},
		{ID: "inactive", CreatorID: 1, PartnerID: ptr[int64](4), InviteCode: "DDDDDDDD", IsActive: false, PairedAt: &newer},
	}).Error)
	// IsActive=false is a zero value; make sure it really is stored as inactive
	require.NoError(t, gdb.Model(&db.Pair{}).Where("id = ?", "inactive").Update("is_active", false).Error)

	p, err := repo.FindActiveForUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "new-joined", p.ID)

	p, err = repo.FindActiveForUser(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSetPartner_IsConditional(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewPairRepository(gdb)
	require.NoError(t, repo.CreateWithStreak(ctx, &db.Pair{ID: "p1", CreatorID: 1, InviteCode: "ABCD2345", IsActive: true}))

	now := time.Now().UTC()

	ok, err := repo.SetPartner(ctx, "p1", 1, now)
	require.NoError(t, err)
	assert.False(t, ok, "creator cannot become partner")

	ok, err = repo.SetPartner(ctx, "p1", 2, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetPartner(ctx, "p1", 3, now)
	require.NoError(t, err)
	assert.False(t, ok, "second joiner loses")

	var p db.Pair
	require.NoError(t, gdb.First(&p, "id = ?", "p1").Error)
	require.NotNil(t, p.PartnerID)
	assert.Equal(t, int64(2), *p.PartnerID)
	assert.NotNil(t, p.PairedAt)
}

func TestDeactivateIncompleteAndDeactivate(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := repository.NewPairRepository(gdb)

	require.NoError(t, repo.CreateWithStreak(ctx, &db.Pair{ID: "a", CreatorID: 1, InviteCode: "AAAAAAAA", IsActive: true}))
	require.NoError(t, repo.CreateWithStreak(ctx, &db.Pair{ID: "b", CreatorID: 1, InviteCode: "BBBBBBBB", IsActive: true}))

	n, err := repo.DeactivateIncomplete(ctx, 1, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	p, _ := repo.FindActiveByCode(ctx, "AAAAAAAA")
	assert.Nil(t, p)
	p, _ = repo.FindActiveByCode(ctx, "BBBBBBBB")
	require.NotNil(t, p)

	require.NoError(t, repo.Deactivate(ctx, "b"))
	require.NoError(t, repo.Deactivate(ctx, "b"), "idempotent")
	p, _ = repo.FindActiveByCode(ctx, "BBBBBBBB")
	assert.Nil(t, p)
}
