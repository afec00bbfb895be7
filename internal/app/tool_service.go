package app

import (
	"errors"
	"strings"

	"toolsmith/internal/model"
	"toolsmith/internal/repository"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrNotToolAuthor    = errors.New("user is not the tool author")
)

type ToolService struct {
	toolRepo *repository.ToolRepository
	docRepo  *repository.DocumentRepository
}

func NewToolService(toolRepo *repository.ToolRepository, docRepo *repository.DocumentRepository) *ToolService {
	return &ToolService{toolRepo: toolRepo, docRepo: docRepo}
}

type CreateToolInput struct {
	AuthorID            uint
	Title               string
	SystemPrompt        string
	ConversationStarter string
	AllowFileUpload     bool
}

func (s *ToolService) CreateTool(input CreateToolInput) (*model.Tool, error) {
	title := strings.TrimSpace(input.Title)
	systemPrompt := strings.TrimSpace(input.SystemPrompt)
	if input.AuthorID == 0 || title == "" || systemPrompt == "" {
		return nil, ErrInvalidInput
	}

	tool := &model.Tool{
		AuthorID:            input.AuthorID,
		Title:               title,
		SystemPrompt:        systemPrompt,
		ConversationStarter: strings.TrimSpace(input.ConversationStarter),
		AllowFileUpload:     input.AllowFileUpload,
		Status:              model.ToolStatusDraft,
	}
	if err := s.toolRepo.Create(tool); err != nil {
		return nil, err
	}
	return tool, nil
}

func (s *ToolService) GetTool(id uint) (*model.Tool, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	tool, err := s.toolRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrToolNotFound
	}
	return tool, nil
}

func (s *ToolService) ListTools(authorID uint) ([]model.Tool, error) {
	if authorID == 0 {
		return nil, ErrInvalidInput
	}
	return s.toolRepo.ListByAuthorID(authorID)
}

type UpdateToolInput struct {
	AuthorID            uint
	ToolID              uint
	Title               string
	SystemPrompt        string
	ConversationStarter string
	AllowFileUpload     *bool
	Status              string
}

func (s *ToolService) UpdateTool(input UpdateToolInput) (*model.Tool, error) {
	tool, err := s.requireAuthor(input.ToolID, input.AuthorID)
	if err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		tool.Title = title
	}
	if prompt := strings.TrimSpace(input.SystemPrompt); prompt != "" {
		tool.SystemPrompt = prompt
	}
	if starter := strings.TrimSpace(input.ConversationStarter); starter != "" {
		tool.ConversationStarter = starter
	}
	if input.AllowFileUpload != nil {
		tool.AllowFileUpload = *input.AllowFileUpload
	}
	if input.Status != "" {
		switch input.Status {
		case model.ToolStatusDraft, model.ToolStatusPublished, model.ToolStatusArchived:
			tool.Status = input.Status
		default:
			return nil, ErrInvalidInput
		}
	}

	if err := s.toolRepo.Update(tool); err != nil {
		return nil, err
	}
	return tool, nil
}

func (s *ToolService) DeleteTool(authorID, toolID uint) error {
	if _, err := s.requireAuthor(toolID, authorID); err != nil {
		return err
	}
	return s.toolRepo.DeleteByIDAndAuthorID(toolID, authorID)
}

// AttachDocument links an already-uploaded document to a tool as pre-uploaded
// reference material.
func (s *ToolService) AttachDocument(authorID, toolID, documentID uint) error {
	if _, err := s.requireAuthor(toolID, authorID); err != nil {
		return err
	}
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.toolRepo.AttachDocument(toolID, documentID)
}

func (s *ToolService) DetachDocument(authorID, toolID, documentID uint) error {
	if _, err := s.requireAuthor(toolID, authorID); err != nil {
		return err
	}
	return s.toolRepo.DetachDocument(toolID, documentID)
}

func (s *ToolService) ListToolDocuments(toolID uint) ([]model.Document, error) {
	if toolID == 0 {
		return nil, ErrInvalidInput
	}
	ids, err := s.toolRepo.ListDocumentIDs(toolID)
	if err != nil {
		return nil, err
	}
	return s.docRepo.ListByIDs(ids)
}

func (s *ToolService) requireAuthor(toolID, authorID uint) (*model.Tool, error) {
	if toolID == 0 || authorID == 0 {
		return nil, ErrInvalidInput
	}
	tool, err := s.toolRepo.GetByID(toolID)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrToolNotFound
	}
	if tool.AuthorID != authorID {
		return nil, ErrNotToolAuthor
	}
	return tool, nil
}
