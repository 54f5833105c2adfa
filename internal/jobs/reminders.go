// Package jobs runs the background loops of the server process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/service/dates"
)

// ReminderSource is the part of the dates service the worker needs.
type ReminderSource interface {
	DueReminders(ctx context.Context, today string) ([]dates.Reminder, error)
	MarkReminded(ctx context.Context, id, today string) error
}

// ReminderWorker sends date reminders once per local day at Hour.
// Interval is the catch-up period: a pass missed by a restart or failed
// by storage runs on the next catch-up tick.
type ReminderWorker struct {
	appCtx   *app.AppContext
	source   ReminderSource
	notifier notify.Notifier
	log      *slog.Logger

	Hour     int
	Interval time.Duration

	mu      sync.Mutex
	lastRun string
}

func NewReminderWorker(appCtx *app.AppContext, source ReminderSource, notifier notify.Notifier, hour int, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{
		appCtx:   appCtx,
		source:   source,
		notifier: notify.Safe(notifier, appCtx.Logger),
		log:      appCtx.Logger.With("worker", "reminders"),
		Hour:     hour,
		Interval: interval,
	}
}

// Spec is the daily cron expression, evaluated in the app location.
func (w *ReminderWorker) Spec() string {
	return fmt.Sprintf("0 %d * * *", w.Hour)
}

// Run schedules the daily pass and the catch-up ticks until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	c := cron.New(
		cron.WithLocation(w.appCtx.Location),
		cron.WithLogger(cronLogger{w.log}),
		cron.WithChain(cron.Recover(cronLogger{w.log})),
	)
	tick := func() { w.Tick(ctx) }
	if _, err := c.AddFunc(w.Spec(), tick); err != nil {
		w.log.Error("bad reminder schedule", "spec", w.Spec(), "err", err)
		return
	}
	c.Schedule(cron.Every(w.Interval), cron.FuncJob(tick))
	c.Start()

	w.log.Info("reminder worker started", "spec", w.Spec(), "catch_up", w.Interval)
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info("reminder worker stopped")
}

// Tick runs today's pass if the hour has come and it has not run yet.
// A failed pass is retried on the next tick.
func (w *ReminderWorker) Tick(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	local := w.appCtx.Clock().In(w.appCtx.Location)
	today := local.Format(time.DateOnly)
	if local.Hour() < w.Hour || w.lastRun == today {
		return
	}

	sent, err := w.RunOnce(ctx, today)
	if err != nil {
		w.log.Error("reminder pass failed", "day", today, "err", err)
		return
	}
	w.lastRun = today
	w.log.Info("reminder pass done", "day", today, "sent", sent)
}

// RunOnce notifies every recipient of every reminder due on today and
// marks each date as reminded. It returns the number of messages handed
// to the notifier.
func (w *ReminderWorker) RunOnce(ctx context.Context, today string) (int, error) {
	due, err := w.source.DueReminders(ctx, today)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		for _, id := range r.Recipients {
			_ = w.notifier.DateReminder(ctx, id, r.Date.Title, r.Date.EventDate, r.Date.Description)
			sent++
		}
		if err := w.source.MarkReminded(ctx, r.Date.ID, today); err != nil {
			w.log.Warn("mark reminded failed", "date_id", r.Date.ID, "err", err)
		}
	}
	return sent, nil
}

// cronLogger routes the scheduler's own logs to slog.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.log.Debug("cron: "+msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kv, "err", err)...)
}
