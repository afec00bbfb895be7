package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type ToolRepository struct {
	db *gorm.DB
}

func NewToolRepository(db *gorm.DB) *ToolRepository {
	return &ToolRepository{db: db}
}

func (r *ToolRepository) Create(tool *model.Tool) error {
	if err := r.db.Create(tool).Error; err != nil {
		return fmt.Errorf("create tool failed: %w", err)
	}
	return nil
}

func (r *ToolRepository) GetByID(id uint) (*model.Tool, error) {
	var tool model.Tool
	if err := r.db.First(&tool, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tool failed: %w", err)
	}
	return &tool, nil
}

func (r *ToolRepository) ListByAuthorID(authorID uint) ([]model.Tool, error) {
	var tools []model.Tool
	if err := r.db.Where("author_id = ?", authorID).Order("created_at DESC").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("list tools failed: %w", err)
	}
	return tools, nil
}

func (r *ToolRepository) Update(tool *model.Tool) error {
	if err := r.db.Save(tool).Error; err != nil {
		return fmt.Errorf("update tool failed: %w", err)
	}
	return nil
}

func (r *ToolRepository) DeleteByIDAndAuthorID(id, authorID uint) error {
	if err := r.db.Where("id = ? AND author_id = ?", id, authorID).Delete(&model.Tool{}).Error; err != nil {
		return fmt.Errorf("delete tool failed: %w", err)
	}
	return nil
}

func (r *ToolRepository) AttachDocument(toolID, documentID uint) error {
	link := model.ToolDocument{ToolID: toolID, DocumentID: documentID}
	if err := r.db.Create(&link).Error; err != nil {
		return fmt.Errorf("attach document to tool failed: %w", err)
	}
	return nil
}

// DetachDocument unlinks a document from a tool. Sections are not purged.
func (r *ToolRepository) DetachDocument(toolID, documentID uint) error {
	if err := r.db.Where("tool_id = ? AND document_id = ?", toolID, documentID).
		Delete(&model.ToolDocument{}).Error; err != nil {
		return fmt.Errorf("detach document from tool failed: %w", err)
	}
	return nil
}

// ListDocumentIDs returns the ids of all documents attached to a tool.
func (r *ToolRepository) ListDocumentIDs(toolID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&model.ToolDocument{}).Where("tool_id = ?", toolID).
		Pluck("document_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list tool document ids failed: %w", err)
	}
	return ids, nil
}
