package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// CreateBatch inserts messages in slice order so that auto-increment ids
// preserve the conversational ordering of a forked thread.
func (r *MessageRepository) CreateBatch(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return fmt.Errorf("create messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &msg, nil
}

// ListByThreadID returns every message of a thread, oldest first.
func (r *MessageRepository) ListByThreadID(ctx context.Context, threadID uint) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list thread messages failed: %w", err)
	}
	return msgs, nil
}

// ListRecent returns the newest messages of a thread first, for the paginated
// history endpoint.
func (r *MessageRepository) ListRecent(ctx context.Context, threadID uint, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) SetFeedbackID(ctx context.Context, messageID, feedbackID uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).Update("feedback_id", feedbackID).Error; err != nil {
		return fmt.Errorf("set message feedback failed: %w", err)
	}
	return nil
}
