package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/db"
)

// ChatRepository persists the assistant conversation of a pair.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, m *db.AiChat) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Recent returns the last limit messages of the pair, oldest first.
func (r *ChatRepository) Recent(ctx context.Context, pairID string, limit int) ([]db.AiChat, error) {
	var msgs []db.AiChat
	err := r.db.WithContext(ctx).
		Where("pair_id = ?", pairID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}
