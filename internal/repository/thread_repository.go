package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type ThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

func (r *ThreadRepository) Create(thread *model.Thread) error {
	if err := r.db.Create(thread).Error; err != nil {
		return fmt.Errorf("create thread failed: %w", err)
	}
	return nil
}

func (r *ThreadRepository) GetByID(id uint) (*model.Thread, error) {
	var thread model.Thread
	if err := r.db.First(&thread, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread failed: %w", err)
	}
	return &thread, nil
}

func (r *ThreadRepository) ListByCreator(toolID, userID uint) ([]model.Thread, error) {
	var threads []model.Thread
	if err := r.db.Where("tool_id = ? AND created_by = ?", toolID, userID).
		Order("created_at DESC").Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("list threads failed: %w", err)
	}
	return threads, nil
}

// DeleteByIDAndCreator removes a thread and all of its messages.
func (r *ThreadRepository) DeleteByIDAndCreator(id, userID uint) error {
	if err := r.db.Where("id = ? AND created_by = ?", id, userID).
		Delete(&model.Thread{}).Error; err != nil {
		return fmt.Errorf("delete thread failed: %w", err)
	}
	if err := r.db.Where("thread_id = ?", id).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete thread messages failed: %w", err)
	}
	return nil
}
