package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// PairRepository persists pairs and their invite codes.
type PairRepository struct {
	db *gorm.DB
}

func NewPairRepository(db *gorm.DB) *PairRepository {
	return &PairRepository{db: db}
}

func (r *PairRepository) WithTx(tx *gorm.DB) *PairRepository {
	return &PairRepository{db: tx}
}

// CreateWithStreak inserts the pair and its zero streak atomically.
// A colliding invite code surfaces as gorm.ErrDuplicatedKey.
func (r *PairRepository) CreateWithStreak(ctx context.Context, p *db.Pair) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(&db.TreeStreak{PairID: p.ID, TreeLevel: 1}).Error
	})
}

// FindActiveForUser returns the active pair where userID is either member.
//
// Ordering:
//   - joined pairs before unjoined ones
//   - then the most recent paired_at, then the most recent created_at
//
// Returns (nil, nil) when the user has no active pair.
func (r *PairRepository) FindActiveForUser(ctx context.Context, userID int64) (*db.Pair, error) {
	var p db.Pair
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND (creator_id = ? OR partner_id = ?)", true, userID, userID).
		Order("CASE WHEN partner_id IS NULL THEN 1 ELSE 0 END").
		Order("CASE WHEN paired_at IS NULL THEN 1 ELSE 0 END").
		Order("paired_at DESC").
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActiveByCode looks up an active pair by its (already normalized) invite code.
func (r *PairRepository) FindActiveByCode(ctx context.Context, code string) (*db.Pair, error) {
	var p db.Pair
	err := r.db.WithContext(ctx).Where("invite_code = ? AND is_active = ?", code, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasActiveJoined reports whether userID is a member of an active joined pair.
func (r *PairRepository) HasActiveJoined(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Pair{}).
		Where("is_active = ? AND partner_id IS NOT NULL AND (creator_id = ? OR partner_id = ?)", true, userID, userID).
		Count(&n).Error
	return n > 0, err
}

// DeactivateIncomplete soft-deletes the user's unjoined invites, except keepID.
func (r *PairRepository) DeactivateIncomplete(ctx context.Context, creatorID int64, keepID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.Pair{}).
		Where("creator_id = ? AND partner_id IS NULL AND is_active = ? AND id <> ?", creatorID, true, keepID).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// SetPartner is the conditional join write: it only succeeds while the pair
// is active and still has no partner. Returns false if another joiner won.
func (r *PairRepository) SetPartner(ctx context.Context, pairID string, partnerID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.Pair{}).
		Where("id = ? AND partner_id IS NULL AND is_active = ? AND creator_id <> ?", pairID, true, partnerID).
		Updates(map[string]any{"partner_id": partnerID, "paired_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Deactivate soft-deletes the pair. Deactivating twice is a no-op.
func (r *PairRepository) Deactivate(ctx context.Context, pairID string) error {
	return r.db.WithContext(ctx).Model(&db.Pair{}).
		Where("id = ? AND is_active = ?", pairID, true).
		Update("is_active", false).Error
}

// ActiveJoined loads the pairs among ids that are still active and joined.
func (r *PairRepository) ActiveJoined(ctx context.Context, ids []string) ([]db.Pair, error) {
	var pairs []db.Pair
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ? AND partner_id IS NOT NULL", ids, true).
		Find(&pairs).Error
	return pairs, err
}
