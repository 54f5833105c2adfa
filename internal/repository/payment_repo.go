package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// PaymentRepository persists Stars invoices.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, p *db.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByPayload returns the payment for an invoice payload, or (nil, nil).
func (r *PaymentRepository) FindByPayload(ctx context.Context, payload string) (*db.Payment, error) {
	var p db.Payment
	err := r.db.WithContext(ctx).First(&p, "payload = ?", payload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkCompleted moves a pending payment to completed. Only one caller per
// payload can win; the rest see false.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, payload, chargeID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&db.Payment{}).
		Where("payload = ? AND status = ?", payload, db.PaymentPending).
		Updates(map[string]any{
			"status":             db.PaymentCompleted,
			"telegram_charge_id": chargeID,
			"completed_at":       at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LatestCompleted returns the user's most recent completed payment, or (nil, nil).
func (r *PaymentRepository) LatestCompleted(ctx context.Context, userID int64) (*db.Payment, error) {
	var p db.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, db.PaymentCompleted).
		Order("completed_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
