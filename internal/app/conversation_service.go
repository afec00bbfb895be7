package app

import (
	"context"
	"errors"

	"toolsmith/internal/ai"
	"toolsmith/internal/model"
	"toolsmith/internal/repository"
)

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrMessageNotFound = errors.New("message not found")
	// ErrPermissionDenied means the acting user does not own the target
	// resource. For threads, the generation flow reacts by forking instead of
	// failing the turn.
	ErrPermissionDenied = errors.New("permission denied")
)

// ThreadHistoryCache holds a short-lived copy of a thread's messages.
type ThreadHistoryCache interface {
	GetHistory(ctx context.Context, threadID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, threadID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, threadID uint) error
}

// ThreadStore is the slice of thread persistence the conversation flow needs.
type ThreadStore interface {
	Create(thread *model.Thread) error
	GetByID(id uint) (*model.Thread, error)
	ListByCreator(toolID, userID uint) ([]model.Thread, error)
	DeleteByIDAndCreator(id, userID uint) error
}

// MessageStore is the slice of message persistence the conversation flow
// needs.
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	CreateBatch(ctx context.Context, msgs []model.Message) error
	ListByThreadID(ctx context.Context, threadID uint) ([]model.Message, error)
}

type ConversationService struct {
	threads      ThreadStore
	messages     MessageStore
	feedbackRepo *repository.FeedbackRepository
	messageRepo  *repository.MessageRepository
	historyCache ThreadHistoryCache
}

func NewConversationService(
	threads ThreadStore,
	messages MessageStore,
	feedbackRepo *repository.FeedbackRepository,
	messageRepo *repository.MessageRepository,
	historyCache ThreadHistoryCache,
) *ConversationService {
	return &ConversationService{
		threads:      threads,
		messages:     messages,
		feedbackRepo: feedbackRepo,
		messageRepo:  messageRepo,
		historyCache: historyCache,
	}
}

// CreateThread opens a fresh thread for a tool and seeds it with the tool's
// system prompt, plus the conversation starter as a first assistant message
// when the tool has one.
func (s *ConversationService) CreateThread(ctx context.Context, tool *model.Tool, userID uint) (*model.Thread, error) {
	if tool == nil || userID == 0 {
		return nil, ErrInvalidInput
	}

	thread := &model.Thread{
		ToolID:    tool.ID,
		CreatedBy: userID,
	}
	if err := s.threads.Create(thread); err != nil {
		return nil, err
	}

	seed := []model.Message{
		{
			ThreadID: thread.ID,
			Role:     model.RoleSystem,
			Content:  tool.SystemPrompt,
		},
	}
	if tool.ConversationStarter != "" {
		seed = append(seed, model.Message{
			ThreadID: thread.ID,
			Role:     model.RoleAssistant,
			Content:  tool.ConversationStarter,
		})
	}
	if err := s.messages.CreateBatch(ctx, seed); err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *ConversationService) GetThread(id uint) (*model.Thread, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	thread, err := s.threads.GetByID(id)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

// ModelHistory returns the thread's user and assistant messages, oldest
// first, in the wire shape the model backend expects. Seeded system prompts
// and internal bookkeeping messages are excluded; the system prompt is
// re-assembled fresh on every turn.
func (s *ConversationService) ModelHistory(ctx context.Context, threadID uint) ([]ai.ChatMessage, error) {
	messages, err := s.loadHistory(ctx, threadID)
	if err != nil {
		return nil, err
	}

	history := make([]ai.ChatMessage, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if msg.Role != model.RoleUser && msg.Role != model.RoleAssistant {
			continue
		}
		if internal, ok := msg.MetadataMap()[model.MetaIsInternal].(bool); ok && internal {
			continue
		}
		history = append(history, ai.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}

// Append persists a message to a thread owned by userID. A thread owned by
// someone else yields ErrPermissionDenied without writing anything.
func (s *ConversationService) Append(ctx context.Context, thread *model.Thread, userID uint, msg *model.Message) error {
	if thread == nil || userID == 0 || msg == nil {
		return ErrInvalidInput
	}
	if thread.CreatedBy != userID {
		return ErrPermissionDenied
	}

	msg.ThreadID = thread.ID
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, thread.ID)
	}
	return nil
}

// Fork copies a thread's entire message history into a brand-new thread owned
// by userID. Copies get fresh ids and carry no feedback links; the source
// thread is untouched.
func (s *ConversationService) Fork(ctx context.Context, source *model.Thread, userID uint) (*model.Thread, error) {
	if source == nil || userID == 0 {
		return nil, ErrInvalidInput
	}

	originals, err := s.messages.ListByThreadID(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	fork := &model.Thread{
		ToolID:    source.ToolID,
		CreatedBy: userID,
	}
	if err := s.threads.Create(fork); err != nil {
		return nil, err
	}

	if len(originals) > 0 {
		copies := make([]model.Message, len(originals))
		for i := range originals {
			copies[i] = model.Message{
				ThreadID:         fork.ID,
				Role:             originals[i].Role,
				Content:          originals[i].Content,
				AttachedFilePath: originals[i].AttachedFilePath,
				Metadata:         originals[i].Metadata,
			}
		}
		if err := s.messages.CreateBatch(ctx, copies); err != nil {
			return nil, err
		}
	}
	return fork, nil
}

// ListMessages returns a page of a thread's messages, newest first. Only the
// thread owner may read it.
func (s *ConversationService) ListMessages(ctx context.Context, userID, threadID uint, limit, offset int) ([]model.Message, error) {
	thread, err := s.GetThread(threadID)
	if err != nil {
		return nil, err
	}
	if thread.CreatedBy != userID {
		return nil, ErrPermissionDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messageRepo.ListRecent(ctx, threadID, limit, offset)
}

func (s *ConversationService) ListThreads(toolID, userID uint) ([]model.Thread, error) {
	if toolID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.threads.ListByCreator(toolID, userID)
}

func (s *ConversationService) DeleteThread(ctx context.Context, threadID, userID uint) error {
	thread, err := s.GetThread(threadID)
	if err != nil {
		return err
	}
	if thread.CreatedBy != userID {
		return ErrPermissionDenied
	}
	if err := s.threads.DeleteByIDAndCreator(threadID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, threadID)
	}
	return nil
}

type SubmitFeedbackInput struct {
	UserID    uint
	MessageID uint
	Rating    int
	Comment   string
}

// SubmitFeedback records a rating against an assistant message and links the
// message back to it.
func (s *ConversationService) SubmitFeedback(ctx context.Context, input SubmitFeedbackInput) (*model.Feedback, error) {
	if input.UserID == 0 || input.MessageID == 0 {
		return nil, ErrInvalidInput
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, ErrInvalidInput
	}

	msg, err := s.messageRepo.GetByID(ctx, input.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Role != model.RoleAssistant {
		return nil, ErrInvalidInput
	}

	thread, err := s.GetThread(msg.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.CreatedBy != input.UserID {
		return nil, ErrPermissionDenied
	}

	fb := &model.Feedback{
		MessageID: input.MessageID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}
	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		return nil, err
	}
	if err := s.messageRepo.SetFeedbackID(ctx, input.MessageID, fb.ID); err != nil {
		return nil, err
	}
	return fb, nil
}

func (s *ConversationService) loadHistory(ctx context.Context, threadID uint) ([]model.Message, error) {
	if s.historyCache != nil {
		if cached, hit, err := s.historyCache.GetHistory(ctx, threadID); err == nil && hit {
			return cached, nil
		}
	}

	messages, err := s.messages.ListByThreadID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		_ = s.historyCache.SetHistory(ctx, threadID, messages)
	}
	return messages, nil
}
