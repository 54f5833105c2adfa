package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// DateRepository persists important dates.
type DateRepository struct {
	db *gorm.DB
}

func NewDateRepository(db *gorm.DB) *DateRepository {
	return &DateRepository{db: db}
}

func (r *DateRepository) Create(ctx context.Context, d *db.ImportantDate) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// Visible lists the pair's dates the viewer may see, ordered by event date.
// Private dates are only visible to their creator.
func (r *DateRepository) Visible(ctx context.Context, pairID string, viewerID int64) ([]db.ImportantDate, error) {
	var dates []db.ImportantDate
	err := r.db.WithContext(ctx).
		Where("pair_id = ? AND (visibility <> ? OR created_by = ?)", pairID, db.VisibilityPrivate, viewerID).
		Order("event_date ASC").Order("created_at ASC").
		Find(&dates).Error
	return dates, err
}

// FindVisible loads one date under the same visibility rule, or (nil, nil).
func (r *DateRepository) FindVisible(ctx context.Context, id, pairID string, viewerID int64) (*db.ImportantDate, error) {
	var d db.ImportantDate
	err := r.db.WithContext(ctx).
		Where("id = ? AND pair_id = ? AND (visibility <> ? OR created_by = ?)", id, pairID, db.VisibilityPrivate, viewerID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes every column of an existing date.
func (r *DateRepository) Save(ctx context.Context, d *db.ImportantDate) error {
	return r.db.WithContext(ctx).Save(d).Error
}

// Delete removes the date if it belongs to the pair. Returns false when nothing matched.
func (r *DateRepository) Delete(ctx context.Context, id, pairID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND pair_id = ?", id, pairID).Delete(&db.ImportantDate{})
	return res.RowsAffected > 0, res.Error
}

// EachBatch walks dates not yet reminded on day, in id order.
func (r *DateRepository) EachBatch(ctx context.Context, day string, size int, fn func([]db.ImportantDate) error) error {
	var batch []db.ImportantDate
	res := r.db.WithContext(ctx).
		Where("last_reminder_sent IS NULL OR last_reminder_sent <> ?", day).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	return res.Error
}

// MarkReminded records that reminders for day went out.
func (r *DateRepository) MarkReminded(ctx context.Context, id, day string) error {
	return r.db.WithContext(ctx).Model(&db.ImportantDate{}).
		Where("id = ?", id).
		Update("last_reminder_sent", day).Error
}

// Count is the total number of stored dates.
func (r *DateRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.ImportantDate{}).Count(&n).Error
	return n, err
}
