// Package notify delivers best-effort messages to pair members.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier sends human-readable notifications to a Telegram user.
type Notifier interface {
	Love(ctx context.Context, receiverID int64, senderName string, message *string) error
	DateCreated(ctx context.Context, receiverID int64, creatorName, title, eventDate, category string) error
	DateReminder(ctx context.Context, receiverID int64, title, eventDate, description string) error
	PartnerJoined(ctx context.Context, creatorID int64, partnerName string) error
	PremiumActivated(ctx context.Context, userID int64, until time.Time) error
}

// Log only records notifications. Used when no bot token is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Love(_ context.Context, receiverID int64, senderName string, message *string) error {
	l.log.Info("notify love", "receiver", receiverID, "sender_name", senderName, "has_message", message != nil)
	return nil
}

func (l *Log) DateCreated(_ context.Context, receiverID int64, creatorName, title, eventDate, category string) error {
	l.log.Info("notify date created", "receiver", receiverID, "creator_name", creatorName,
		"title", title, "event_date", eventDate, "category", category)
	return nil
}

func (l *Log) DateReminder(_ context.Context, receiverID int64, title, eventDate, _ string) error {
	l.log.Info("notify date reminder", "receiver", receiverID, "title", title, "event_date", eventDate)
	return nil
}

func (l *Log) PartnerJoined(_ context.Context, creatorID int64, partnerName string) error {
	l.log.Info("notify partner joined", "receiver", creatorID, "partner_name", partnerName)
	return nil
}

func (l *Log) PremiumActivated(_ context.Context, userID int64, until time.Time) error {
	l.log.Info("notify premium activated", "receiver", userID, "until", until)
	return nil
}

// safe logs and swallows every delivery failure.
type safe struct {
	next Notifier
	log  *slog.Logger
}

// Safe wraps n so callers never see a notification error.
// A nil n yields a notifier that only logs.
func Safe(n Notifier, log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	if n == nil {
		n = NewLog(log)
	}
	if s, ok := n.(*safe); ok {
		return s
	}
	return &safe{next: n, log: log}
}

func (s *safe) report(kind string, receiver int64, err error) error {
	if err != nil {
		s.log.Warn("notification failed", "kind", kind, "receiver", receiver, "err", err)
	}
	return nil
}

func (s *safe) Love(ctx context.Context, receiverID int64, senderName string, message *string) error {
	return s.report("love", receiverID, s.next.Love(ctx, receiverID, senderName, message))
}

func (s *safe) DateCreated(ctx context.Context, receiverID int64, creatorName, title, eventDate, category string) error {
	return s.report("date_created", receiverID, s.next.DateCreated(ctx, receiverID, creatorName, title, eventDate, category))
}

func (s *safe) DateReminder(ctx context.Context, receiverID int64, title, eventDate, description string) error {
	return s.report("date_reminder", receiverID, s.next.DateReminder(ctx, receiverID, title, eventDate, description))
}

func (s *safe) PartnerJoined(ctx context.Context, creatorID int64, partnerName string) error {
	return s.report("partner_joined", creatorID, s.next.PartnerJoined(ctx, creatorID, partnerName))
}

func (s *safe) PremiumActivated(ctx context.Context, userID int64, until time.Time) error {
	return s.report("premium_activated", userID, s.next.PremiumActivated(ctx, userID, until))
}
