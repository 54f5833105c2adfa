// Package dates keeps a pair's important dates and decides when to remind them.
package dates

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/repository"
)

const (
	UpcomingWindowDays = 30
	MaxReminderDays    = 30
	DefaultReminder    = 1
	reminderBatchSize  = 200
)

var (
	categories   = []string{db.DateAnniversary, db.DateBirthday, db.DateFirstDate, db.DateCustom}
	visibilities = []string{db.VisibilityBoth, db.VisibilityPrivate}
)

// ValidCategory reports whether c is a known date category.
func ValidCategory(c string) bool { return slices.Contains(categories, c) }

// ValidVisibility reports whether v is a known visibility.
func ValidVisibility(v string) bool { return slices.Contains(visibilities, v) }

// Input creates a date. Optional fields take their defaults when nil.
type Input struct {
	Title        string `json:"title" binding:"required,max=200"`
	Description  string `json:"description" binding:"max=2000"`
	EventDate    string `json:"eventDate" binding:"required,calendar_date"`
	Category     string `json:"category" binding:"omitempty,date_category"`
	Visibility   string `json:"visibility" binding:"omitempty,oneof=both private"`
	ReminderDays *int   `json:"reminderDays" binding:"omitempty,min=0,max=30"`
	IsRecurring  *bool  `json:"isRecurring"`
}

// Patch updates the non-nil fields of a date.
type Patch struct {
	Title        *string `json:"title" binding:"omitempty,max=200"`
	Description  *string `json:"description" binding:"omitempty,max=2000"`
	EventDate    *string `json:"eventDate" binding:"omitempty,calendar_date"`
	Category     *string `json:"category" binding:"omitempty,date_category"`
	Visibility   *string `json:"visibility" binding:"omitempty,oneof=both private"`
	ReminderDays *int    `json:"reminderDays" binding:"omitempty,min=0,max=30"`
	IsRecurring  *bool   `json:"isRecurring"`
}

// View is a stored date with its countdown.
type View struct {
	db.ImportantDate
	Countdown
}

// Service manages important dates.
type Service struct {
	appCtx   *app.AppContext
	repo     *repository.DateRepository
	pairs    *repository.PairRepository
	users    *repository.UserRepository
	notifier notify.Notifier
}

func NewService(appCtx *app.AppContext, notifier notify.Notifier) *Service {
	return &Service{
		appCtx:   appCtx,
		repo:     repository.NewDateRepository(appCtx.DB),
		pairs:    repository.NewPairRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		notifier: notify.Safe(notifier, appCtx.Logger),
	}
}

func validate(d *db.ImportantDate) error {
	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		return svcErr.Invalid("title is required")
	case utf8.RuneCountInString(title) > 200:
		return svcErr.Invalid("title is too long")
	case !ValidCategory(d.Category):
		return svcErr.Invalid("unknown category")
	case !ValidVisibility(d.Visibility):
		return svcErr.Invalid("unknown visibility")
	case d.ReminderDays < 0 || d.ReminderDays > MaxReminderDays:
		return svcErr.Invalid("reminderDays must be between 0 and 30")
	}
	if _, err := time.Parse(time.DateOnly, d.EventDate); err != nil {
		return svcErr.Invalid("eventDate must be YYYY-MM-DD")
	}
	d.Title = title
	return nil
}

// Create stores a date for the pair and tells the partner about it,
// unless the date is private.
func (s *Service) Create(ctx context.Context, pair *db.Pair, userID int64, in Input) (*View, error) {
	d := &db.ImportantDate{
		ID:           uuid.NewString(),
		PairID:       pair.ID,
		CreatedBy:    userID,
		Title:        in.Title,
		Description:  in.Description,
		EventDate:    in.EventDate,
		Category:     in.Category,
		Visibility:   in.Visibility,
		ReminderDays: DefaultReminder,
		IsRecurring:  true,
	}
	if d.Category == "" {
		d.Category = db.DateCustom
	}
	if d.Visibility == "" {
		d.Visibility = db.VisibilityBoth
	}
	if in.ReminderDays != nil {
		d.ReminderDays = *in.ReminderDays
	}
	if in.IsRecurring != nil {
		d.IsRecurring = *in.IsRecurring
	}
	if err := validate(d); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, svcErr.Storage("create date", err)
	}
	s.appCtx.Logger.Info("date created", "pair_id", pair.ID, "date_id", d.ID, "visibility", d.Visibility)

	if d.Visibility != db.VisibilityPrivate {
		if partner := pair.Other(userID); partner != 0 {
			creator, _ := s.users.FindOptional(ctx, userID)
			_ = s.notifier.DateCreated(ctx, partner, creator.DisplayName(), d.Title, d.EventDate, d.Category)
		}
	}
	return s.withCountdown(*d), nil
}

// List returns the dates the viewer may see, ordered by event date.
func (s *Service) List(ctx context.Context, pairID string, viewerID int64) ([]View, error) {
	stored, err := s.repo.Visible(ctx, pairID, viewerID)
	if err != nil {
		return nil, svcErr.Storage("list dates", err)
	}
	out := make([]View, 0, len(stored))
	for _, d := range stored {
		out = append(out, *s.withCountdown(d))
	}
	return out, nil
}

// Upcoming returns dates whose next occurrence is within the next 30 days, soonest first.
func (s *Service) Upcoming(ctx context.Context, pairID string, viewerID int64) ([]View, error) {
	all, err := s.List(ctx, pairID, viewerID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(all))
	for _, v := range all {
		if v.DaysUntil >= 0 && v.DaysUntil <= UpcomingWindowDays {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b View) int { return a.DaysUntil - b.DaysUntil })
	return out, nil
}

// Update applies a patch to a date the viewer can see.
func (s *Service) Update(ctx context.Context, pairID string, viewerID int64, id string, p Patch) (*View, error) {
	d, err := s.repo.FindVisible(ctx, id, pairID, viewerID)
	if err != nil {
		return nil, svcErr.Storage("load date", err)
	}
	if d == nil {
		return nil, svcErr.NotFound(svcErr.CodeNotFound, "date not found")
	}

	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.EventDate != nil && *p.EventDate != d.EventDate {
		d.EventDate = *p.EventDate
		d.LastReminderSent = nil
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Visibility != nil {
		d.Visibility = *p.Visibility
	}
	if p.ReminderDays != nil {
		d.ReminderDays = *p.ReminderDays
	}
	if p.IsRecurring != nil {
		d.IsRecurring = *p.IsRecurring
	}
	if err := validate(d); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, d); err != nil {
		return nil, svcErr.Storage("update date", err)
	}
	return s.withCountdown(*d), nil
}

// Delete removes a date the viewer can see.
func (s *Service) Delete(ctx context.Context, pairID string, viewerID int64, id string) error {
	d, err := s.repo.FindVisible(ctx, id, pairID, viewerID)
	if err != nil {
		return svcErr.Storage("load date", err)
	}
	if d == nil {
		return svcErr.NotFound(svcErr.CodeNotFound, "date not found")
	}
	if _, err := s.repo.Delete(ctx, id, pairID); err != nil {
		return svcErr.Storage("delete date", err)
	}
	return nil
}

func (s *Service) withCountdown(d db.ImportantDate) *View {
	cd, err := CountdownFor(d.EventDate, s.appCtx.Today(), d.IsRecurring)
	if err != nil {
		s.appCtx.Logger.Warn("bad stored event date", "date_id", d.ID, "event_date", d.EventDate)
	}
	return &View{ImportantDate: d, Countdown: cd}
}

// Reminder is one date due today and who should hear about it.
type Reminder struct {
	Date       db.ImportantDate
	Recipients []int64
}

// DueReminders selects dates whose next occurrence minus reminderDays is
// today and that were not reminded today yet.
//
// Recipients are the premium members of the still-active pair; a private
// date only goes to its creator. Dates with nobody to tell are skipped.
func (s *Service) DueReminders(ctx context.Context, today string) ([]Reminder, error) {
	now, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return nil, svcErr.Invalid("day must be YYYY-MM-DD")
	}

	var due []db.ImportantDate
	err = s.repo.EachBatch(ctx, today, reminderBatchSize, func(batch []db.ImportantDate) error {
		for _, d := range batch {
			ev, err := time.Parse(time.DateOnly, d.EventDate)
			if err != nil {
				continue
			}
			next := NextOccurrence(ev, now, d.IsRecurring)
			if next.AddDate(0, 0, -d.ReminderDays).Equal(now) {
				due = append(due, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Storage("scan dates", err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	pairIDs := make([]string, 0, len(due))
	for _, d := range due {
		pairIDs = append(pairIDs, d.PairID)
	}
	pairs, err := s.pairs.ActiveJoined(ctx, slices.Compact(slices.Sorted(slices.Values(pairIDs))))
	if err != nil {
		return nil, svcErr.Storage("load pairs", err)
	}
	byID := make(map[string]db.Pair, len(pairs))
	var members []int64
	for _, p := range pairs {
		byID[p.ID] = p
		members = append(members, p.CreatorID, *p.PartnerID)
	}
	users, err := s.users.FindMany(ctx, members...)
	if err != nil {
		return nil, svcErr.Storage("load members", err)
	}

	instant := s.appCtx.Now()
	var out []Reminder
	for _, d := range due {
		p, ok := byID[d.PairID]
		if !ok {
			continue
		}
		candidates := []int64{p.CreatorID, *p.PartnerID}
		if d.Visibility == db.VisibilityPrivate {
			candidates = []int64{d.CreatedBy}
		}
		var recipients []int64
		for _, id := range candidates {
			if users[id].HasPremium(instant) && p.HasMember(id) {
				recipients = append(recipients, id)
			}
		}
		if len(recipients) > 0 {
			out = append(out, Reminder{Date: d, Recipients: recipients})
		}
	}
	return out, nil
}

// MarkReminded records that the date's reminder went out today.
func (s *Service) MarkReminded(ctx context.Context, id, today string) error {
	if err := s.repo.MarkReminded(ctx, id, today); err != nil {
		return svcErr.Storage("mark reminded", err)
	}
	return nil
}

// Count is the number of stored dates.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
