package pairing_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/testutil"
)

// fixedCodes hands out codes in order and fails once they run out.
func fixedCodes(codes ...string) pairing.CodeGenerator {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return "", errors.New("out of codes")
		}
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
}

func setup(t *testing.T, opts ...pairing.Option) (*testutil.Env, *pairing.Registry, *notify.Recorder) {
	t.Helper()
	env := testutil.NewEnv(t)
	for id, name := range map[int64]string{1: "Anna", 2: "Bob", 3: "Carl"} {
		env.User(t, id, name)
	}
	rec := &notify.Recorder{}
	opts = append([]pairing.Option{pairing.WithNotifier(rec)}, opts...)
	return env, pairing.NewRegistry(env.App, opts...), rec
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := pairing.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, pairing.CodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(pairing.CodeAlphabet, ch), "unexpected symbol %q", ch)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestCreateInvite_Idempotent(t *testing.T) {
	_, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes("ABCD2345", "ZZZZ2222")))
	ctx := context.Background()

	first, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ABCD2345", first.Pair.InviteCode)
	assert.False(t, first.Joined())
	require.NotNil(t, first.Streak)
	assert.Equal(t, 1, first.Streak.TreeLevel)
	assert.Nil(t, first.Partner)

	again, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Pair.ID, again.Pair.ID)
	assert.Equal(t, "ABCD2345", again.Pair.InviteCode)
}

func TestCreateInvite_RedrawsOnCollision(t *testing.T) {
	env, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes("AAAA2222", "AAAA2222", "BBBB3333")))
	ctx := context.Background()

	_, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)

	v, err := reg.CreateInvite(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "BBBB3333", v.Pair.InviteCode)

	var streaks int64
	env.DB.Model(&db.TreeStreak{}).Count(&streaks)
	assert.Equal(t, int64(2), streaks)
}

func TestCreateInvite_GivesUpAfterMaxAttempts(t *testing.T) {
	codes := []string{"AAAA2222"}
	for i := 0; i < pairing.MaxCodeAttempts; i++ {
		codes = append(codes, "AAAA2222")
	}
	_, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes(codes...)))
	ctx := context.Background()

	_, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)

	_, err = reg.CreateInvite(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free invite code")
}

func TestJoinInvite(t *testing.T) {
	_, reg, rec := setup(t, pairing.WithCodeGenerator(fixedCodes("ABCD2345", "CCCC4444", "DDDD5555")))
	ctx := context.Background()

	created, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)

	_, err = reg.JoinInvite(ctx, 1, "ABCD2345")
	assert.ErrorIs(t, err, svcErr.ErrSelfJoin)

	_, err = reg.JoinInvite(ctx, 2, "NOPE2345")
	assert.ErrorIs(t, err, svcErr.ErrInviteNotFound)

	// Bob had his own pending invite; joining retires it.
	bobs, err := reg.CreateInvite(ctx, 2)
	require.NoError(t, err)

	joined, err := reg.JoinInvite(ctx, 2, "  abcd2345 ")
	require.NoError(t, err)
	assert.Equal(t, created.Pair.ID, joined.Pair.ID)
	assert.True(t, joined.Joined())
	require.NotNil(t, joined.Pair.PairedAt)
	assert.Equal(t, int64(1), joined.PartnerOf(2))
	require.NotNil(t, joined.Partner)
	assert.Equal(t, "Anna", joined.Partner.FirstName)

	_, err = reg.JoinInvite(ctx, 2, bobs.Pair.InviteCode)
	assert.ErrorIs(t, err, svcErr.ErrInviteNotFound, "bob's pending invite was deactivated")

	_, err = reg.JoinInvite(ctx, 3, "ABCD2345")
	assert.ErrorIs(t, err, svcErr.ErrAlreadyJoined)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "partner_joined", sent[0].Kind)
	assert.Equal(t, int64(1), sent[0].Receiver)
	assert.Equal(t, "Bob", sent[0].Name)

	// Carl invites, Anna tries to join while already paired with Bob.
	_, err = reg.CreateInvite(ctx, 3)
	require.NoError(t, err)
	_, err = reg.JoinInvite(ctx, 1, "DDDD5555")
	assert.ErrorIs(t, err, svcErr.ErrAlreadyPaired)
}

func TestJoinInvite_ConcurrentJoinersOneWins(t *testing.T) {
	env, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes("ABCD2345")))
	ctx := context.Background()
	for id := int64(10); id < 16; id++ {
		env.User(t, id, "joiner")
	}

	_, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for id := int64(10); id < 16; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := reg.JoinInvite(ctx, id, "ABCD2345")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, svcErr.ErrAlreadyJoined):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 5, conflict)
}

func TestJoinInvite_ConcurrentInvitesOneJoinerPairsOnce(t *testing.T) {
	env, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes("AAAA2345", "BBBB2345")))
	ctx := context.Background()

	_, err := reg.CreateInvite(ctx, 1)
	require.NoError(t, err)
	_, err = reg.CreateInvite(ctx, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, code := range []string{"AAAA2345", "BBBB2345"} {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, errs[i] = reg.JoinInvite(ctx, 3, code)
		}(i, code)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, svcErr.ErrAlreadyPaired)
	}
	assert.Equal(t, 1, ok)

	var joined int64
	env.DB.Model(&db.Pair{}).Where("partner_id = ? AND is_active = ?", 3, true).Count(&joined)
	assert.Equal(t, int64(1), joined)
}

func TestGetActivePairAndUnlink(t *testing.T) {
	_, reg, _ := setup(t, pairing.WithCodeGenerator(fixedCodes("ABCD2345")))
	ctx := context.Background()

	v, err := reg.GetActivePair(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = reg.RequireJoined(ctx, 1)
	assert.ErrorIs(t, err, svcErr.ErrNotPaired)

	_, err = reg.CreateInvite(ctx, 1)
	require.NoError(t, err)
	_, err = reg.RequireJoined(ctx, 1)
	assert.ErrorIs(t, err, svcErr.ErrPartnerMissing)

	_, err = reg.JoinInvite(ctx, 2, "ABCD2345")
	require.NoError(t, err)

	v, err = reg.RequireJoined(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Anna", v.Partner.FirstName)

	p, err := reg.UnlinkForUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	require.NoError(t, reg.Unlink(ctx, p.ID), "unlink is idempotent")

	v, err = reg.GetActivePair(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = reg.UnlinkForUser(ctx, 1)
	assert.ErrorIs(t, err, svcErr.ErrNotPaired)
}
