package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *model.Feedback) error {
	if err := r.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("create feedback failed: %w", err)
	}
	return nil
}

func (r *FeedbackRepository) ListByMessageIDs(ctx context.Context, messageIDs []uint) ([]model.Feedback, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var fbs []model.Feedback
	if err := r.db.WithContext(ctx).Where("message_id IN ?", messageIDs).
		Find(&fbs).Error; err != nil {
		return nil, fmt.Errorf("list feedback failed: %w", err)
	}
	return fbs, nil
}
