package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"toolsmith/internal/ai"
	"toolsmith/internal/model"
	"toolsmith/internal/rag"
)

// ChatStreamer streams a chat completion, invoking onChunk per token batch.
type ChatStreamer interface {
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}

// QueryEmbedder turns a search term into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SectionMatcher finds relevant sections across a tool's documents.
type SectionMatcher interface {
	Search(ctx context.Context, documentIDs []uint, queryVector []float32, threshold float32, limit int) ([]rag.Match, error)
}

// ToolReader is the slice of tool metadata the generation flow needs.
type ToolReader interface {
	GetTool(id uint) (*model.Tool, error)
	ListToolDocuments(toolID uint) ([]model.Document, error)
}

// DocumentContentReader resolves documents to their text: per-turn attached
// files, and pre-uploaded documents read whole under the full-document
// strategy.
type DocumentContentReader interface {
	AwaitProcessed(ctx context.Context, documentID uint) (*model.Document, error)
	FullText(ctx context.Context, documentID uint) (string, error)
}

// GenerateService runs one conversational turn: resolve the thread, pick a
// document strategy, gather context, persist the user message, stream the
// assistant reply, and persist it.
type GenerateService struct {
	tools      ToolReader
	convo      *ConversationService
	documents  DocumentContentReader
	sections   rag.SectionRangeLister
	classifier rag.Classifier
	embedder   QueryEmbedder
	searcher   SectionMatcher
	streamer   ChatStreamer

	matchThreshold float32
	matchLimit     int
	windowRadius   int
}

type GenerateDeps struct {
	Tools      ToolReader
	Convo      *ConversationService
	Documents  DocumentContentReader
	Sections   rag.SectionRangeLister
	Classifier rag.Classifier
	Embedder   QueryEmbedder
	Searcher   SectionMatcher
	Streamer   ChatStreamer

	MatchThreshold float64
	MatchLimit     int
	WindowRadius   int
}

func NewGenerateService(deps GenerateDeps) *GenerateService {
	return &GenerateService{
		tools:          deps.Tools,
		convo:          deps.Convo,
		documents:      deps.Documents,
		sections:       deps.Sections,
		classifier:     deps.Classifier,
		embedder:       deps.Embedder,
		searcher:       deps.Searcher,
		streamer:       deps.Streamer,
		matchThreshold: float32(deps.MatchThreshold),
		matchLimit:     deps.MatchLimit,
		windowRadius:   deps.WindowRadius,
	}
}

type TurnInput struct {
	UserID   uint
	ToolID   uint
	ThreadID uint // 0 opens a new thread
	Content  string

	// AttachedDocumentID is a document the user attached to this turn, already
	// uploaded through the document pipeline.
	AttachedDocumentID uint
}

// TurnEvents receives the turn's streaming lifecycle. OnThreadResolved fires
// exactly once, before any token, with the thread the reply belongs to (a
// fork of the requested thread when the user doesn't own it). OnToken fires
// per streamed chunk. OnCompleted fires once with the stored assistant
// message.
type TurnEvents struct {
	OnThreadResolved func(threadID uint) error
	OnToken          func(chunk string) error
	OnCompleted      func(messageID uint) error
}

// Generate executes a full turn. A cancelled context aborts the stream and the
// partial assistant reply is not persisted; the user message already is.
func (s *GenerateService) Generate(ctx context.Context, input TurnInput, events TurnEvents) error {
	content := strings.TrimSpace(input.Content)
	if input.UserID == 0 || input.ToolID == 0 || content == "" {
		return ErrInvalidInput
	}

	tool, err := s.tools.GetTool(input.ToolID)
	if err != nil {
		return err
	}

	thread, err := s.resolveThread(ctx, tool, input)
	if err != nil {
		return err
	}

	history, err := s.convo.ModelHistory(ctx, thread.ID)
	if err != nil {
		return err
	}

	retrieved, decision := s.gatherDocumentContext(ctx, tool, history, content)
	attachedCtx, attachedPath := s.gatherAttachedContext(ctx, tool, input)

	userMsg := &model.Message{
		Role:             model.RoleUser,
		Content:          content,
		AttachedFilePath: attachedPath,
	}
	setTurnMetadata(userMsg, retrieved, decision, attachedCtx)

	if err := s.convo.Append(ctx, thread, input.UserID, userMsg); err != nil {
		if !errors.Is(err, ErrPermissionDenied) {
			return err
		}
		// The thread belongs to someone else: fork it for this user and land
		// the turn on the copy.
		fork, forkErr := s.convo.Fork(ctx, thread, input.UserID)
		if forkErr != nil {
			return forkErr
		}
		log.Printf("thread %d forked to %d for user %d", thread.ID, fork.ID, input.UserID)
		thread = fork
		if err := s.convo.Append(ctx, thread, input.UserID, userMsg); err != nil {
			return err
		}
	}

	if events.OnThreadResolved != nil {
		if err := events.OnThreadResolved(thread.ID); err != nil {
			return err
		}
	}

	messages := rag.AssembleMessages(tool.SystemPrompt, history, retrieved, attachedCtx, content)

	full, err := s.streamer.StreamComplete(ctx, messages, func(chunk string) error {
		if events.OnToken != nil {
			return events.OnToken(chunk)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	requestID := uuid.NewString()
	assistantMsg := &model.Message{
		Role:      model.RoleAssistant,
		Content:   full,
		RequestID: &requestID,
	}
	if err := s.convo.Append(ctx, thread, input.UserID, assistantMsg); err != nil {
		return err
	}

	if events.OnCompleted != nil {
		return events.OnCompleted(assistantMsg.ID)
	}
	return nil
}

func (s *GenerateService) resolveThread(ctx context.Context, tool *model.Tool, input TurnInput) (*model.Thread, error) {
	if input.ThreadID == 0 {
		return s.convo.CreateThread(ctx, tool, input.UserID)
	}
	thread, err := s.convo.GetThread(input.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.ToolID != tool.ID {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}

// gatherDocumentContext classifies the turn against the tool's pre-uploaded
// documents and retrieves whatever the strategy calls for. Every failure here
// is soft: the turn proceeds with less context rather than dying.
func (s *GenerateService) gatherDocumentContext(
	ctx context.Context,
	tool *model.Tool,
	history []ai.ChatMessage,
	content string,
) (rag.RetrievedContext, rag.Decision) {
	decision := rag.Decision{Strategy: rag.StrategyNoReference}

	docs, err := s.tools.ListToolDocuments(tool.ID)
	if err != nil {
		log.Printf("tool %d: list documents failed: %v", tool.ID, err)
		return rag.RetrievedContext{}, decision
	}
	if len(docs) == 0 {
		return rag.RetrievedContext{}, decision
	}

	docIDs := make([]uint, len(docs))
	docNames := make([]string, len(docs))
	for i := range docs {
		docIDs[i] = docs[i].ID
		docNames[i] = docs[i].Name
	}

	classifierHistory := make([]ai.ChatMessage, 0, len(history)+1)
	classifierHistory = append(classifierHistory, ai.ChatMessage{Role: "system", Content: tool.SystemPrompt})
	classifierHistory = append(classifierHistory, history...)

	decision, err = s.classifier.Classify(ctx, classifierHistory, content, docNames)
	if err != nil {
		log.Printf("tool %d: strategy classification failed, skipping documents: %v", tool.ID, err)
		return rag.RetrievedContext{}, rag.Decision{Strategy: rag.StrategyNoReference}
	}
	if decision.Strategy == rag.StrategyNoReference {
		return rag.RetrievedContext{}, decision
	}

	// Full-document inclusion is a plain read, not a search: the first
	// pre-uploaded document goes in whole, sections joined in position order,
	// even while its embeddings are still pending.
	if decision.Strategy == rag.StrategyFullDocument {
		body, err := s.documents.FullText(ctx, docIDs[0])
		if err != nil {
			log.Printf("tool %d: read full document %d failed, skipping documents: %v", tool.ID, docIDs[0], err)
			return rag.RetrievedContext{}, decision
		}
		if strings.TrimSpace(body) == "" {
			return rag.RetrievedContext{}, decision
		}
		return rag.RetrievedContext{Content: body, DocumentNames: docNames[:1]}, decision
	}

	searchTerm := decision.SearchTerm
	if searchTerm == "" {
		searchTerm = content
	}
	queryVector, err := s.embedder.Embed(ctx, searchTerm)
	if err != nil {
		log.Printf("tool %d: embed search term failed, skipping documents: %v", tool.ID, err)
		return rag.RetrievedContext{}, decision
	}

	matches, err := s.searcher.Search(ctx, docIDs, queryVector, s.matchThreshold, s.matchLimit)
	if err != nil {
		log.Printf("tool %d: section search failed, skipping documents: %v", tool.ID, err)
		return rag.RetrievedContext{}, decision
	}
	if len(matches) == 0 {
		return rag.RetrievedContext{}, decision
	}

	body, err := rag.ExpandMatches(ctx, s.sections, matches, s.windowRadius)
	if err != nil {
		log.Printf("tool %d: expand matches failed, skipping documents: %v", tool.ID, err)
		return rag.RetrievedContext{}, decision
	}

	matchedNames := matchedDocumentNames(matches, docs)
	return rag.RetrievedContext{Content: body, DocumentNames: matchedNames}, decision
}

// gatherAttachedContext resolves a per-turn attached document to its full
// text. A document still unprocessed after the wait, or any lookup failure,
// soft-fails to an empty context.
func (s *GenerateService) gatherAttachedContext(ctx context.Context, tool *model.Tool, input TurnInput) (rag.AttachedContext, *string) {
	if input.AttachedDocumentID == 0 {
		return rag.AttachedContext{}, nil
	}
	if !tool.AllowFileUpload {
		log.Printf("tool %d: file upload not allowed, ignoring attached document %d", tool.ID, input.AttachedDocumentID)
		return rag.AttachedContext{}, nil
	}

	doc, err := s.documents.AwaitProcessed(ctx, input.AttachedDocumentID)
	if err != nil {
		log.Printf("tool %d: attached document %d lookup failed: %v", tool.ID, input.AttachedDocumentID, err)
		return rag.AttachedContext{}, nil
	}
	if !doc.Processed {
		log.Printf("tool %d: attached document %d still processing, continuing without it", tool.ID, doc.ID)
		return rag.AttachedContext{}, &doc.StoragePath
	}

	text, err := s.documents.FullText(ctx, doc.ID)
	if err != nil {
		log.Printf("tool %d: attached document %d read failed: %v", tool.ID, doc.ID, err)
		return rag.AttachedContext{}, &doc.StoragePath
	}
	return rag.AttachedContext{Content: text, FileName: doc.Name}, &doc.StoragePath
}

// setTurnMetadata records the context that was injected into this turn, body
// included, so retrieval quality can be audited later without ever re-sending
// any of it to the model.
func setTurnMetadata(msg *model.Message, retrieved rag.RetrievedContext, decision rag.Decision, attached rag.AttachedContext) {
	meta := map[string]any{}
	if retrieved.Content != "" {
		meta[model.MetaInjectedDocs] = retrieved.Content
		names, _ := json.Marshal(retrieved.DocumentNames)
		meta[model.MetaInjectedDocNames] = string(names)
	}
	if decision.Strategy != "" {
		meta[model.MetaDocumentStrategy] = string(decision.Strategy)
	}
	if attached.Content != "" {
		meta[model.MetaAttachedFileContext] = attached.Content
	}
	if len(meta) > 0 {
		msg.SetMetadata(meta)
	}
}

func matchedDocumentNames(matches []rag.Match, docs []model.Document) []string {
	seen := map[uint]bool{}
	var names []string
	for _, m := range matches {
		if seen[m.DocumentID] {
			continue
		}
		seen[m.DocumentID] = true
		for i := range docs {
			if docs[i].ID == m.DocumentID {
				names = append(names, docs[i].Name)
				break
			}
		}
	}
	return names
}
