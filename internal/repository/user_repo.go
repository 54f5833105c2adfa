package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pulse/internal/db"
)

// UserRepository persists identities.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Upsert creates the user or refreshes its profile fields in one statement.
// Avatar is only written on insert; premium and billing columns are never touched.
func (r *UserRepository) Upsert(ctx context.Context, u *db.User) (*db.User, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "language_code", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, u.ID)
}

// Find returns the user or gorm.ErrRecordNotFound.
func (r *UserRepository) Find(ctx context.Context, id int64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindOptional returns nil when the user does not exist.
func (r *UserRepository) FindOptional(ctx context.Context, id int64) (*db.User, error) {
	u, err := r.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return u, err
}

// FindMany loads users by id.
func (r *UserRepository) FindMany(ctx context.Context, ids ...int64) (map[int64]*db.User, error) {
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]*db.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// LockForUpdate reads the user row inside a transaction. Dialects without
// row locks (sqlite) fall back to a plain read; sqlite serializes writers anyway.
func (r *UserRepository) LockForUpdate(ctx context.Context, id int64) (*db.User, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u db.User
	if err := q.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPremium writes the entitlement window and optionally resets billing extras.
func (r *UserRepository) SetPremium(ctx context.Context, id int64, until time.Time, resetDiscount bool) error {
	updates := map[string]any{
		"is_premium":    true,
		"premium_until": until,
	}
	if resetDiscount {
		updates["discount"] = 0
		updates["applied_promo_code"] = nil
	}
	return r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Updates(updates).Error
}

// SetDiscount stores a discount percent and the promo that granted it.
func (r *UserRepository) SetDiscount(ctx context.Context, id int64, percent int, promo string) error {
	return r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).
		Updates(map[string]any{"discount": percent, "applied_promo_code": promo}).Error
}

// SetAppliedPromo records the last applied promo code.
func (r *UserRepository) SetAppliedPromo(ctx context.Context, id int64, promo string) error {
	return r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).
		Update("applied_promo_code", promo).Error
}

// Page lists users newest first.
func (r *UserRepository) Page(ctx context.Context, offset, limit int) ([]db.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []db.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}
