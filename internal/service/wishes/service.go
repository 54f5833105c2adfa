// Package wishes implements the swipe game: both members like a card, the pair gets a match.
package wishes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/app"
	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/repository"
	"github.com/oggyb/pulse/internal/service/pairing"
)

const (
	DefaultCardLimit = 10
	MaxCardLimit     = 50
)

var categories = map[string]bool{
	db.CategoryRomance:   true,
	db.CategoryAdventure: true,
	db.CategoryLeisure:   true,
}

// ValidCategory reports whether c is empty (all) or a known category.
func ValidCategory(c string) bool { return c == "" || categories[c] }

// Service records swipes and detects mutual likes.
type Service struct {
	appCtx   *app.AppContext
	registry *pairing.Registry
	users    *repository.UserRepository
	repo     *repository.WishRepository
}

func NewService(appCtx *app.AppContext, registry *pairing.Registry) *Service {
	return &Service{
		appCtx:   appCtx,
		registry: registry,
		users:    repository.NewUserRepository(appCtx.DB),
		repo:     repository.NewWishRepository(appCtx.DB),
	}
}

// SwipeResult tells the client whether the swipe completed a match.
type SwipeResult struct {
	Swipe *db.WishSwipe `json:"swipe"`
	Match *db.WishMatch `json:"match,omitempty"`
	IsNew bool          `json:"isMatch"`
}

// RecordSwipe stores userID's judgment on cardID within the pair.
//
// Behavior:
//   - NotFound when the card does not exist.
//   - ErrAlreadySwiped when the user judged the card before, including a
//     concurrent duplicate rejected by the unique index.
//   - A like followed by the partner's like on the same card yields a match;
//     IsNew is true only for the call that inserted it.
func (s *Service) RecordSwipe(ctx context.Context, userID int64, pair *db.Pair, cardID uint, liked bool) (*SwipeResult, error) {
	if !pair.HasMember(userID) {
		return nil, svcErr.ErrNotPaired
	}

	card, err := s.repo.Card(ctx, cardID)
	if err != nil {
		return nil, svcErr.Storage("load card", err)
	}
	if card == nil {
		return nil, svcErr.NotFound(svcErr.CodeNotFound, "card not found")
	}

	swiped, err := s.repo.HasSwiped(ctx, userID, cardID)
	if err != nil {
		return nil, svcErr.Storage("check swipe", err)
	}
	if swiped {
		return nil, svcErr.ErrAlreadySwiped
	}

	swipe := &db.WishSwipe{
		ID:        uuid.NewString(),
		UserID:    userID,
		CardID:    cardID,
		PairID:    pair.ID,
		Liked:     liked,
		CreatedAt: s.appCtx.Now(),
	}
	if err := s.repo.CreateSwipe(ctx, swipe); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.ErrAlreadySwiped
		}
		return nil, svcErr.Storage("store swipe", err)
	}

	res := &SwipeResult{Swipe: swipe}
	partner := pair.Other(userID)
	if !liked || partner == 0 {
		return res, nil
	}

	mutual, err := s.repo.HasLiked(ctx, pair.ID, partner, cardID)
	if err != nil {
		return nil, svcErr.Storage("check partner swipe", err)
	}
	if !mutual {
		return res, nil
	}

	m, created, err := s.repo.CreateMatchIfAbsent(ctx, pair.ID, cardID, s.appCtx.Now())
	if err != nil {
		return nil, svcErr.Storage("store match", err)
	}
	if created {
		s.appCtx.Logger.Info("wish matched", "pair_id", pair.ID, "card_id", cardID)
	}
	res.Match = m
	res.IsNew = created
	return res, nil
}

// CompleteMatch marks the pair's match done. Completing it again returns it
// unchanged, keeping the original completion time.
func (s *Service) CompleteMatch(ctx context.Context, matchID, pairID string) (*db.WishMatch, error) {
	m, err := s.repo.FindMatch(ctx, matchID, pairID)
	if err != nil {
		return nil, svcErr.Storage("load match", err)
	}
	if m == nil {
		return nil, svcErr.NotFound(svcErr.CodeNotFound, "match not found")
	}
	if m.IsCompleted {
		return m, nil
	}

	if err := s.repo.MarkCompleted(ctx, matchID, pairID, s.appCtx.Now()); err != nil {
		return nil, svcErr.Storage("complete match", err)
	}
	m, err = s.repo.FindMatch(ctx, matchID, pairID)
	if err != nil {
		return nil, svcErr.Storage("load match", err)
	}
	return m, nil
}

// AvailableItems lists cards userID has not swiped, in display order.
// Premium cards are only offered to entitled users.
func (s *Service) AvailableItems(ctx context.Context, userID int64, category string, limit int) ([]db.WishCard, error) {
	if !ValidCategory(category) {
		return nil, svcErr.Invalid("unknown category")
	}
	switch {
	case limit <= 0:
		limit = DefaultCardLimit
	case limit > MaxCardLimit:
		limit = MaxCardLimit
	}

	u, err := s.users.FindOptional(ctx, userID)
	if err != nil {
		return nil, svcErr.Storage("load user", err)
	}

	cards, err := s.repo.AvailableCards(ctx, userID, category, u.HasPremium(s.appCtx.Now()), limit)
	if err != nil {
		return nil, svcErr.Storage("available cards", err)
	}
	if cards == nil {
		cards = []db.WishCard{}
	}
	return cards, nil
}

// Matches lists the pair's matches newest first.
func (s *Service) Matches(ctx context.Context, pairID string) ([]db.WishMatch, error) {
	m, err := s.repo.Matches(ctx, pairID)
	if err != nil {
		return nil, svcErr.Storage("list matches", err)
	}
	if m == nil {
		m = []db.WishMatch{}
	}
	return m, nil
}

// Stats returns the user's swipe counts and the pair's match counts.
func (s *Service) Stats(ctx context.Context, userID int64, pairID string) (repository.SwipeStats, error) {
	st, err := s.repo.Stats(ctx, userID, pairID)
	if err != nil {
		return st, svcErr.Storage("wish stats", err)
	}
	return st, nil
}

// PairFor resolves the user's joined pair for the handlers.
func (s *Service) PairFor(ctx context.Context, userID int64) (*db.Pair, error) {
	v, err := s.registry.RequireJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	return v.Pair, nil
}

// SwipesBetween counts swipes in [from, to); used by the admin dashboard.
func (s *Service) SwipesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.repo.CountSwipesBetween(ctx, from, to)
}
