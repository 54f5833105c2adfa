package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// PromoRepository persists promo codes.
type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) WithTx(tx *gorm.DB) *PromoRepository {
	return &PromoRepository{db: tx}
}

// Create inserts a code; a duplicate code fails with gorm.ErrDuplicatedKey.
func (r *PromoRepository) Create(ctx context.Context, p *db.PromoCode) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByCode returns the promo for an upper-cased code, or (nil, nil).
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*db.PromoCode, error) {
	var p db.PromoCode
	err := r.db.WithContext(ctx).First(&p, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Consume bumps times_used unless the usage limit is exhausted.
// Returns false when the last slot was taken by someone else.
func (r *PromoRepository) Consume(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.PromoCode{}).
		Where("id = ? AND is_active = ? AND (usage_limit IS NULL OR times_used < usage_limit)", id, true).
		Update("times_used", gorm.Expr("times_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns every code, newest first.
func (r *PromoRepository) List(ctx context.Context) ([]db.PromoCode, error) {
	var codes []db.PromoCode
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&codes).Error
	return codes, err
}
