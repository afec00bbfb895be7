package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"toolsmith/internal/model"
)

type SectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) CreateBatch(sections []model.DocumentSection) error {
	if len(sections) == 0 {
		return nil
	}
	if err := r.db.Create(&sections).Error; err != nil {
		return fmt.Errorf("create document sections failed: %w", err)
	}
	return nil
}

// ListByDocumentID returns all sections of a document, position ascending.
func (r *SectionRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.DocumentSection, error) {
	var sections []model.DocumentSection
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("position ASC").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list sections failed: %w", err)
	}
	return sections, nil
}

// ListRange returns a document's sections with position in [start, end],
// ordered ascending.
func (r *SectionRepository) ListRange(ctx context.Context, documentID uint, startPosition, endPosition int) ([]model.DocumentSection, error) {
	var sections []model.DocumentSection
	if err := r.db.WithContext(ctx).
		Where("document_id = ? AND position >= ? AND position <= ?", documentID, startPosition, endPosition).
		Order("position ASC").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list section range failed: %w", err)
	}
	return sections, nil
}

// ListEmbeddedByDocumentIDs returns only sections whose embedding has been
// generated; sections still pending are silently excluded from search.
func (r *SectionRepository) ListEmbeddedByDocumentIDs(ctx context.Context, documentIDs []uint) ([]model.DocumentSection, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var sections []model.DocumentSection
	if err := r.db.WithContext(ctx).
		Where("document_id IN ? AND embedding <> ''", documentIDs).
		Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list embedded sections failed: %w", err)
	}
	return sections, nil
}

// ListPendingByIDs returns the subset of the given sections that still have
// no embedding.
func (r *SectionRepository) ListPendingByIDs(ctx context.Context, ids []uint) ([]model.DocumentSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sections []model.DocumentSection
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND (embedding IS NULL OR embedding = '')", ids).
		Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("list pending sections failed: %w", err)
	}
	return sections, nil
}

func (r *SectionRepository) UpdateEmbedding(ctx context.Context, id uint, embedding string) error {
	if err := r.db.WithContext(ctx).Model(&model.DocumentSection{}).
		Where("id = ?", id).Update("embedding", embedding).Error; err != nil {
		return fmt.Errorf("update section embedding failed: %w", err)
	}
	return nil
}

func (r *SectionRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).
		Delete(&model.DocumentSection{}).Error; err != nil {
		return fmt.Errorf("delete sections by document failed: %w", err)
	}
	return nil
}
