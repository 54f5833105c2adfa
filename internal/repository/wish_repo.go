package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pulse/internal/db"
)

// WishRepository provides data access for the wish catalog, swipes and matches.
// Uniqueness of (user, card) swipes and (pair, card) matches lives in the schema;
// this layer only reports the outcome.
type WishRepository struct {
	db *gorm.DB
}

// NewWishRepository creates a new repository bound to the given DB connection.
func NewWishRepository(database *gorm.DB) *WishRepository {
	return &WishRepository{db: database}
}

// Card loads a catalog item, or (nil, nil) if it does not exist.
func (r *WishRepository) Card(ctx context.Context, id uint) (*db.WishCard, error) {
	var c db.WishCard
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AvailableCards returns cards the user has not swiped yet.
//
// Behavior:
//   - Excludes every card with a swipe by userID (liked or not).
//   - category == "" means all categories.
//   - Premium cards are only included when includePremium is set.
//   - Ordered by sort_order, then id.
//
// Example:
//
//	repo.AvailableCards(ctx, 42, "romance", false, 10)
func (r *WishRepository) AvailableCards(
	ctx context.Context,
	userID int64,
	category string,
	includePremium bool,
	limit int,
) ([]db.WishCard, error) {
	q := r.db.WithContext(ctx).
		Table("wish_cards c").
		Select("c.*").
		Where(`
			NOT EXISTS (
				SELECT 1 FROM wish_swipes s
				WHERE s.card_id = c.id AND s.user_id = ?
			)`, userID)
	if category != "" {
		q = q.Where("c.category = ?", category)
	}
	if !includePremium {
		q = q.Where("c.is_premium = ?", false)
	}

	var cards []db.WishCard
	err := q.Order("c.sort_order ASC").Order("c.id ASC").Limit(limit).Find(&cards).Error
	return cards, err
}

// HasSwiped reports whether userID already judged the card.
func (r *WishRepository) HasSwiped(ctx context.Context, userID int64, cardID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.WishSwipe{}).
		Where("user_id = ? AND card_id = ?", userID, cardID).
		Count(&n).Error
	return n > 0, err
}

// CreateSwipe appends a swipe. A concurrent duplicate fails with gorm.ErrDuplicatedKey.
func (r *WishRepository) CreateSwipe(ctx context.Context, s *db.WishSwipe) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// HasLiked checks whether userID liked the card while in pairID.
// Used to detect the reciprocal like of the partner; likes from earlier
// pairs never count.
func (r *WishRepository) HasLiked(ctx context.Context, pairID string, userID int64, cardID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.WishSwipe{}).
		Where("pair_id = ? AND user_id = ? AND card_id = ? AND liked = ?", pairID, userID, cardID, true).
		Count(&n).Error
	return n > 0, err
}

// CreateMatchIfAbsent inserts the (pair, card) match unless it exists.
//
// Behavior:
//   - INSERT ... ON CONFLICT DO NOTHING on the (pair_id, card_id) unique index.
//   - Reads the row back, so both racing callers see the same match.
//   - created reports whether this call inserted it.
func (r *WishRepository) CreateMatchIfAbsent(
	ctx context.Context,
	pairID string,
	cardID uint,
	at time.Time,
) (*db.WishMatch, bool, error) {
	m := db.WishMatch{
		ID:        uuid.NewString(),
		PairID:    pairID,
		CardID:    cardID,
		MatchedAt: at,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_id"}, {Name: "card_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var stored db.WishMatch
	err := r.db.WithContext(ctx).Preload("Card").
		Where("pair_id = ? AND card_id = ?", pairID, cardID).
		First(&stored).Error
	if err != nil {
		return nil, false, err
	}
	return &stored, res.RowsAffected == 1, nil
}

// Matches lists the pair's matches newest first with their cards.
func (r *WishRepository) Matches(ctx context.Context, pairID string) ([]db.WishMatch, error) {
	var matches []db.WishMatch
	err := r.db.WithContext(ctx).Preload("Card").
		Where("pair_id = ?", pairID).
		Order("matched_at DESC").Order("id DESC").
		Find(&matches).Error
	return matches, err
}

// FindMatch loads a match owned by the pair, or (nil, nil).
func (r *WishRepository) FindMatch(ctx context.Context, matchID, pairID string) (*db.WishMatch, error) {
	var m db.WishMatch
	err := r.db.WithContext(ctx).Preload("Card").
		Where("id = ? AND pair_id = ?", matchID, pairID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkCompleted flips is_completed once; later calls leave completed_at untouched.
func (r *WishRepository) MarkCompleted(ctx context.Context, matchID, pairID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&db.WishMatch{}).
		Where("id = ? AND pair_id = ? AND is_completed = ?", matchID, pairID, false).
		Updates(map[string]any{"is_completed": true, "completed_at": at}).Error
}

// SwipeStats are a user's totals in the wish game.
type SwipeStats struct {
	TotalSwiped int64 `json:"totalSwiped"`
	Liked       int64 `json:"liked"`
	Matches     int64 `json:"matches"`
	Completed   int64 `json:"completed"`
}

// Stats computes the user's swipe totals and the pair's match totals.
func (r *WishRepository) Stats(ctx context.Context, userID int64, pairID string) (SwipeStats, error) {
	var s SwipeStats
	q := r.db.WithContext(ctx)

	if err := q.Model(&db.WishSwipe{}).Where("user_id = ?", userID).Count(&s.TotalSwiped).Error; err != nil {
		return s, err
	}
	if err := q.Model(&db.WishSwipe{}).Where("user_id = ? AND liked = ?", userID, true).Count(&s.Liked).Error; err != nil {
		return s, err
	}
	if err := q.Model(&db.WishMatch{}).Where("pair_id = ?", pairID).Count(&s.Matches).Error; err != nil {
		return s, err
	}
	if err := q.Model(&db.WishMatch{}).Where("pair_id = ? AND is_completed = ?", pairID, true).Count(&s.Completed).Error; err != nil {
		return s, err
	}
	return s, nil
}

// CountSwipesBetween counts swipes in [from, to).
func (r *WishRepository) CountSwipesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.WishSwipe{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).Count(&n).Error
	return n, err
}
