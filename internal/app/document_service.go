package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"toolsmith/internal/ai"
	"toolsmith/internal/model"
	"toolsmith/internal/pkg/pdfextract"
	"toolsmith/internal/platform/rabbitmq"
	"toolsmith/internal/rag"
)

// processedPollDelay is how long an in-flight turn waits for an attached
// document that is still being processed before giving up on its contents.
const processedPollDelay = 3 * time.Second

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document has no extractable text")
	ErrDocumentProcessing  = errors.New("document is still being processed")
)

// EmbedJobDispatcher enqueues embedding work for freshly chunked sections.
type EmbedJobDispatcher interface {
	Publish(ctx context.Context, job rabbitmq.EmbedJob) error
}

// DocumentStore is the document persistence surface the upload pipeline uses.
type DocumentStore interface {
	Create(doc *model.Document) error
	GetByID(id uint) (*model.Document, error)
	ListByUploaderID(uploaderID uint) ([]model.Document, error)
	SetProcessed(id uint) error
	DeleteByIDAndUploaderID(id, uploaderID uint) error
}

// SectionStore holds the chunked sections of a document.
type SectionStore interface {
	CreateBatch(sections []model.DocumentSection) error
	ListByDocumentID(ctx context.Context, documentID uint) ([]model.DocumentSection, error)
	DeleteByDocumentID(documentID uint) error
}

// Completer runs a single non-streaming chat completion.
type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type DocumentService struct {
	docs       DocumentStore
	sections   SectionStore
	dispatcher EmbedJobDispatcher
	summarizer Completer
	uploadDir  string
	minWords   int
	maxWords   int
}

func NewDocumentService(
	docs DocumentStore,
	sections SectionStore,
	dispatcher EmbedJobDispatcher,
	summarizer Completer,
	uploadDir string,
	minWords, maxWords int,
) *DocumentService {
	return &DocumentService{
		docs:       docs,
		sections:   sections,
		dispatcher: dispatcher,
		summarizer: summarizer,
		uploadDir:  uploadDir,
		minWords:   minWords,
		maxWords:   maxWords,
	}
}

type UploadInput struct {
	UploaderID uint
	FileName   string
	Reader     io.Reader
}

// Upload stores the file, extracts and sanitizes its text, chunks it into
// sections, and dispatches an async embedding job. The document row is marked
// processed once its sections exist; embeddings trail behind and sections
// without one are simply invisible to search until the worker catches up.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	name := filepath.Base(strings.TrimSpace(input.FileName))
	if input.UploaderID == 0 || name == "" || name == "." {
		return nil, ErrInvalidInput
	}

	text, storagePath, err := s.storeAndExtract(name, input.Reader)
	if err != nil {
		return nil, err
	}

	text = sanitizeText(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	doc := &model.Document{
		UploaderID:  input.UploaderID,
		Name:        name,
		StoragePath: storagePath,
	}
	if err := s.docs.Create(doc); err != nil {
		return nil, err
	}

	chunks := rag.Chunk(text, s.minWords, s.maxWords)
	sections := make([]model.DocumentSection, len(chunks))
	for i, chunk := range chunks {
		sections[i] = model.DocumentSection{
			DocumentID: doc.ID,
			Position:   chunk.Position,
			Content:    chunk.Content,
		}
	}
	if err := s.sections.CreateBatch(sections); err != nil {
		return nil, err
	}
	if err := s.docs.SetProcessed(doc.ID); err != nil {
		return nil, err
	}
	doc.Processed = true

	sectionIDs := make([]uint, len(sections))
	for i := range sections {
		sectionIDs[i] = sections[i].ID
	}
	if s.dispatcher != nil {
		job := rabbitmq.EmbedJob{DocumentID: doc.ID, SectionIDs: sectionIDs}
		if err := s.dispatcher.Publish(ctx, job); err != nil {
			log.Printf("dispatch embed job for document %d failed: %v", doc.ID, err)
		}
	}

	return doc, nil
}

func (s *DocumentService) GetDocument(id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByID(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments(uploaderID uint) ([]model.Document, error) {
	if uploaderID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByUploaderID(uploaderID)
}

func (s *DocumentService) DeleteDocument(uploaderID, documentID uint) error {
	if uploaderID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.UploaderID != uploaderID {
		return ErrPermissionDenied
	}
	if err := s.sections.DeleteByDocumentID(documentID); err != nil {
		return err
	}
	if err := s.docs.DeleteByIDAndUploaderID(documentID, uploaderID); err != nil {
		return err
	}
	_ = os.Remove(doc.StoragePath)
	return nil
}

// FullText returns the document's sections joined in position order.
func (s *DocumentService) FullText(ctx context.Context, documentID uint) (string, error) {
	sections, err := s.sections.ListByDocumentID(ctx, documentID)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(sections))
	for i := range sections {
		parts[i] = sections[i].Content
	}
	return strings.Join(parts, "\n"), nil
}

// AwaitProcessed waits for an attached document to finish processing. It
// checks once, sleeps a fixed delay, and checks one more time; a document
// still unprocessed after that is reported as-is rather than blocking the
// turn any longer.
func (s *DocumentService) AwaitProcessed(ctx context.Context, documentID uint) (*model.Document, error) {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.Processed {
		return doc, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(processedPollDelay):
	}

	return s.docs.GetByID(documentID)
}

// Summarize sends the whole document to the model and returns a plain-text
// summary. The summary is not persisted. A document whose sections are not in
// place yet (even after the processed wait) reports ErrDocumentProcessing.
func (s *DocumentService) Summarize(ctx context.Context, documentID uint) (string, error) {
	if documentID == 0 {
		return "", ErrInvalidInput
	}
	doc, err := s.AwaitProcessed(ctx, documentID)
	if err != nil {
		return "", err
	}
	if !doc.Processed {
		return "", ErrDocumentProcessing
	}

	text, err := s.FullText(ctx, documentID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	return s.summarizer.Complete(ctx, summaryMessages(doc.Name, text))
}

func summaryMessages(name, text string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{
			Role: model.RoleSystem,
			Content: "You summarize documents. Produce a concise summary of the " +
				"document provided by the user, in plain prose, covering its main " +
				"points in order. Do not add commentary about the summarization itself.",
		},
		{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("Document %q:\n\n%s", name, text),
		},
	}
}

func (s *DocumentService) storeAndExtract(name string, r io.Reader) (text, storagePath string, err error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf", ".md", ".txt":
	default:
		return "", "", ErrUnsupportedFileType
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir failed: %w", err)
	}
	storagePath = filepath.Join(s.uploadDir, uuid.NewString()+ext)

	f, err := os.Create(storagePath)
	if err != nil {
		return "", "", fmt.Errorf("create upload file failed: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", "", fmt.Errorf("write upload file failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close upload file failed: %w", err)
	}

	stored, err := os.Open(storagePath)
	if err != nil {
		return "", "", fmt.Errorf("reopen upload file failed: %w", err)
	}
	defer stored.Close()

	switch ext {
	case ".pdf":
		text, err = pdfextract.ExtractText(stored)
		if err != nil {
			return "", "", fmt.Errorf("extract pdf text failed: %w", err)
		}
	default:
		raw, readErr := io.ReadAll(stored)
		if readErr != nil {
			return "", "", fmt.Errorf("read upload file failed: %w", readErr)
		}
		text = string(raw)
	}
	return text, storagePath, nil
}

// sanitizeText strips control characters that break chunking and JSON
// encoding, keeping newlines and tabs.
func sanitizeText(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || r == 0xfffd {
			return -1
		}
		return r
	}, text)
}
