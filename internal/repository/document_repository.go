package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByStoragePath(storagePath string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("storage_path = ?", storagePath).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by storage path failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByIDs(ids []uint) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := r.db.Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents by ids failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) ListByUploaderID(uploaderID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("uploader_id = ?", uploaderID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) SetProcessed(id uint) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("processed", true).Error; err != nil {
		return fmt.Errorf("mark document processed failed: %w", err)
	}
	return nil
}

// DeleteByIDAndUploaderID removes the document record and unlinks it from any
// tools. Sections are left for the caller to purge explicitly.
func (r *DocumentRepository) DeleteByIDAndUploaderID(id, uploaderID uint) error {
	if err := r.db.Where("id = ? AND uploader_id = ?", id, uploaderID).
		Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	if err := r.db.Where("document_id = ?", id).Delete(&model.ToolDocument{}).Error; err != nil {
		return fmt.Errorf("unlink document from tools failed: %w", err)
	}
	return nil
}
