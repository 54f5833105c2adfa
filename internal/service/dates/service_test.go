package dates_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/service/dates"
	"github.com/oggyb/pulse/internal/testutil"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestCountdownFor(t *testing.T) {
	cases := []struct {
		name      string
		event     string
		recurring bool
		want      dates.Countdown
	}{
		{"future one-off", "2026-03-15", false, dates.Countdown{NextOccurrence: "2026-03-15", DaysUntil: 5}},
		{"today", "2026-03-10", false, dates.Countdown{NextOccurrence: "2026-03-10", IsToday: true}},
		{"past one-off", "2026-03-01", false, dates.Countdown{NextOccurrence: "2026-03-01", DaysUntil: -9, IsPast: true}},
		{"anniversary later this year", "2019-04-01", true, dates.Countdown{NextOccurrence: "2026-04-01", DaysUntil: 22}},
		{"anniversary already passed this year", "2019-02-14", true, dates.Countdown{NextOccurrence: "2027-02-14", DaysUntil: 341}},
		{"anniversary today", "2020-03-10", true, dates.Countdown{NextOccurrence: "2026-03-10", IsToday: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dates.CountdownFor(tc.event, "2026-03-10", tc.recurring)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := dates.CountdownFor("14.02.2026", "2026-03-10", false)
	assert.Error(t, err)
}

func setup(t *testing.T) (*testutil.Env, *dates.Service, *db.Pair, *notify.Recorder) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.User(t, 1, "Anna")
	env.User(t, 2, "Bob")
	pair := env.JoinedPair(t, "pair-1", 1, 2)
	rec := &notify.Recorder{}
	return env, dates.NewService(env.App, rec), pair, rec
}

func TestCreateAndVisibility(t *testing.T) {
	_, svc, pair, rec := setup(t)
	ctx := context.Background()

	shared, err := svc.Create(ctx, pair, 1, dates.Input{Title: " Anniversary ", EventDate: "2024-03-20", Category: db.DateAnniversary})
	require.NoError(t, err)
	assert.Equal(t, "Anniversary", shared.Title)
	assert.Equal(t, db.VisibilityBoth, shared.Visibility)
	assert.True(t, shared.IsRecurring)
	assert.Equal(t, 1, shared.ReminderDays)
	assert.Equal(t, 10, shared.DaysUntil)

	_, err = svc.Create(ctx, pair, 1, dates.Input{Title: "Surprise", EventDate: "2026-03-12", Visibility: db.VisibilityPrivate, IsRecurring: boolp(false)})
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 1, "private dates are not announced")
	assert.Equal(t, "date_created", sent[0].Kind)
	assert.Equal(t, int64(2), sent[0].Receiver)
	assert.Equal(t, "Anna", sent[0].Name)

	mine, err := svc.List(ctx, pair.ID, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := svc.List(ctx, pair.ID, 2)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, shared.ID, theirs[0].ID)

	upcoming, err := svc.Upcoming(ctx, pair.ID, 1)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Surprise", upcoming[0].Title)
}

func TestCreate_Validation(t *testing.T) {
	_, svc, pair, _ := setup(t)
	ctx := context.Background()

	bad := []dates.Input{
		{Title: "", EventDate: "2026-05-01"},
		{Title: "x", EventDate: "May 1"},
		{Title: "x", EventDate: "2026-05-01", Category: "party"},
		{Title: "x", EventDate: "2026-05-01", Visibility: "partner"},
		{Title: "x", EventDate: "2026-05-01", ReminderDays: intp(31)},
	}
	for _, in := range bad {
		_, err := svc.Create(ctx, pair, 1, in)
		assert.Equal(t, svcErr.KindInvalidArgument, svcErr.KindOf(err), "%+v", in)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	_, svc, pair, _ := setup(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, pair, 1, dates.Input{Title: "Trip", EventDate: "2026-06-01", Visibility: db.VisibilityPrivate})
	require.NoError(t, err)

	_, err = svc.Update(ctx, pair.ID, 2, d.ID, dates.Patch{})
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err), "private to Anna")

	title := "Road trip"
	vis := db.VisibilityBoth
	up, err := svc.Update(ctx, pair.ID, 1, d.ID, dates.Patch{Title: &title, Visibility: &vis, ReminderDays: intp(3)})
	require.NoError(t, err)
	assert.Equal(t, "Road trip", up.Title)
	assert.Equal(t, 3, up.ReminderDays)

	err = svc.Delete(ctx, "other-pair", 2, d.ID)
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err))

	require.NoError(t, svc.Delete(ctx, pair.ID, 2, d.ID))
	err = svc.Delete(ctx, pair.ID, 2, d.ID)
	assert.Equal(t, svcErr.KindNotFound, svcErr.KindOf(err))
}

func TestDueReminders(t *testing.T) {
	env, svc, pair, _ := setup(t)
	ctx := context.Background()
	env.Premium(t, 1, env.App.Now().Add(90*24*time.Hour))

	tomorrow, err := svc.Create(ctx, pair, 2, dates.Input{Title: "Birthday", EventDate: "1995-03-11", Category: db.DateBirthday})
	require.NoError(t, err)
	_, err = svc.Create(ctx, pair, 2, dates.Input{Title: "Bob's secret", EventDate: "2026-03-11", Visibility: db.VisibilityPrivate})
	require.NoError(t, err)
	week, err := svc.Create(ctx, pair, 1, dates.Input{Title: "Concert", EventDate: "2026-03-17", ReminderDays: intp(7), IsRecurring: boolp(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, pair, 1, dates.Input{Title: "Later", EventDate: "2026-04-20"})
	require.NoError(t, err)

	due, err := svc.DueReminders(ctx, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, due, 2, "bob's private date has no premium recipient")

	got := map[string][]int64{}
	for _, r := range due {
		got[r.Date.ID] = r.Recipients
	}
	assert.Equal(t, []int64{1}, got[tomorrow.ID])
	assert.Equal(t, []int64{1}, got[week.ID])

	require.NoError(t, svc.MarkReminded(ctx, tomorrow.ID, "2026-03-10"))
	due, err = svc.DueReminders(ctx, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, week.ID, due[0].Date.ID)

	// an unlinked pair gets nothing
	require.NoError(t, env.DB.Model(&db.Pair{}).Where("id = ?", pair.ID).Update("is_active", false).Error)
	due, err = svc.DueReminders(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Empty(t, due)
}
