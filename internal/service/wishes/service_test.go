package wishes_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/service/wishes"
	"github.com/oggyb/pulse/internal/testutil"
)

// setupService seeds two paired users and the wish catalog.
func setupService(t *testing.T) (*testutil.Env, *wishes.Service, *db.Pair) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.User(t, 1, "Anna")
	env.User(t, 2, "Bob")
	pair := env.JoinedPair(t, "pair-1", 1, 2)
	require.NoError(t, db.SeedCatalog(env.DB))

	svc := wishes.NewService(env.App, pairing.NewRegistry(env.App))
	return env, svc, pair
}

func TestRecordSwipe_MutualLikeMatchesOnce(t *testing.T) {
	_, svc, pair := setupService(t)
	ctx := context.Background()

	res, err := svc.RecordSwipe(ctx, 1, pair, 1, true)
	require.NoError(t, err)
	assert.Nil(t, res.Match)

	res, err = svc.RecordSwipe(ctx, 2, pair, 1, true)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.True(t, res.IsNew)
	require.NotNil(t, res.Match.Card)
	assert.Equal(t, uint(1), res.Match.Card.ID)

	_, err = svc.RecordSwipe(ctx, 2, pair, 1, true)
	assert.ErrorIs(t, err, svcErr.ErrAlreadySwiped)

	matches, err := svc.Matches(ctx, pair.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRecordSwipe_DislikeNeverMatches(t *testing.T) {
	_, svc, pair := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordSwipe(ctx, 1, pair, 2, false)
	require.NoError(t, err)

	res, err := svc.RecordSwipe(ctx, 2, pair, 2, true)
	require.NoError(t, err)
	assert.Nil(t, res.Match)

	_, err = svc.RecordSwipe(ctx, 1, pair, 2, true)
	assert.ErrorIs(t, err, svcErr.ErrAlreadySwiped, "no un-swipe")
}

func TestRecordSwipe_Errors(t *testing.T) {
	_, svc, pair := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordSwipe(ctx, 1, pair, 9999, true)
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err))

	_, err = svc.RecordSwipe(ctx, 3, pair, 1, true)
	assert.ErrorIs(t, err, svcErr.ErrNotPaired)
}

func TestRecordSwipe_IgnoresLikesFromEarlierPair(t *testing.T) {
	env, svc, old := setupService(t)
	ctx := context.Background()
	env.User(t, 3, "Cleo")

	_, err := svc.RecordSwipe(ctx, 2, old, 1, true)
	require.NoError(t, err)
	require.NoError(t, env.DB.Model(&db.Pair{}).Where("id = ?", old.ID).Update("is_active", false).Error)

	// Bob starts over with Cleo; his old like must not pair up with hers.
	current := env.JoinedPair(t, "pair-2", 3, 2)
	res, err := svc.RecordSwipe(ctx, 3, current, 1, true)
	require.NoError(t, err)
	assert.Nil(t, res.Match)

	var matches int64
	env.DB.Model(&db.WishMatch{}).Count(&matches)
	assert.Zero(t, matches)
}

func TestRecordSwipe_ConcurrentDuplicates(t *testing.T) {
	env, svc, pair := setupService(t)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordSwipe(context.Background(), int64(1+i%2), pair, 3, true)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, svcErr.ErrAlreadySwiped)
	}
	assert.Equal(t, 2, ok, "one swipe per member")

	var swipes, matches int64
	env.DB.Model(&db.WishSwipe{}).Count(&swipes)
	env.DB.Model(&db.WishMatch{}).Count(&matches)
	assert.Equal(t, int64(2), swipes)
	assert.Equal(t, int64(1), matches)
}

func TestCompleteMatch_Idempotent(t *testing.T) {
	env, svc, pair := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordSwipe(ctx, 1, pair, 4, true)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, pair, 4, true)
	require.NoError(t, err)

	_, err = svc.CompleteMatch(ctx, res.Match.ID, "other-pair")
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err))

	done, err := svc.CompleteMatch(ctx, res.Match.ID, pair.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	first := done.CompletedAt.UTC()

	env.Clock.Advance(time.Hour)
	again, err := svc.CompleteMatch(ctx, res.Match.ID, pair.ID)
	require.NoError(t, err)
	assert.Equal(t, first, again.CompletedAt.UTC())

	st, err := svc.Stats(ctx, 1, pair.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalSwiped)
	assert.Equal(t, int64(1), st.Liked)
	assert.Equal(t, int64(1), st.Matches)
	assert.Equal(t, int64(1), st.Completed)
}

func TestAvailableItems(t *testing.T) {
	env, svc, pair := setupService(t)
	ctx := context.Background()

	cards, err := svc.AvailableItems(ctx, 1, "", 0)
	require.NoError(t, err)
	require.Len(t, cards, wishes.DefaultCardLimit)
	for i := 1; i < len(cards); i++ {
		assert.LessOrEqual(t, cards[i-1].SortOrder, cards[i].SortOrder)
	}
	for _, c := range cards {
		assert.False(t, c.IsPremium)
	}

	_, err = svc.RecordSwipe(ctx, 1, pair, cards[0].ID, false)
	require.NoError(t, err)
	after, err := svc.AvailableItems(ctx, 1, "", 0)
	require.NoError(t, err)
	assert.NotEqual(t, cards[0].ID, after[0].ID)

	romance, err := svc.AvailableItems(ctx, 2, db.CategoryRomance, wishes.MaxCardLimit+10)
	require.NoError(t, err)
	require.NotEmpty(t, romance)
	for _, c := range romance {
		assert.Equal(t, db.CategoryRomance, c.Category)
	}

	free, err := svc.AvailableItems(ctx, 2, "", wishes.MaxCardLimit)
	require.NoError(t, err)
	env.Premium(t, 2, env.App.Now().Add(time.Hour))
	all, err := svc.AvailableItems(ctx, 2, "", wishes.MaxCardLimit)
	require.NoError(t, err)
	assert.Greater(t, len(all), len(free), "premium cards unlocked")

	_, err = svc.AvailableItems(ctx, 2, "unknown", 5)
	assert.Equal(t, svcErr.KindInvalidArgument, svcErr.KindOf(err))
}
