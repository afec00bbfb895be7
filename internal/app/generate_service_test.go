package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"toolsmith/internal/ai"
	"toolsmith/internal/model"
	"toolsmith/internal/rag"
)

type fakeToolReader struct {
	tool *model.Tool
	docs []model.Document
}

func (f *fakeToolReader) GetTool(id uint) (*model.Tool, error) {
	if f.tool == nil || f.tool.ID != id {
		return nil, ErrToolNotFound
	}
	return f.tool, nil
}

func (f *fakeToolReader) ListToolDocuments(uint) ([]model.Document, error) {
	return f.docs, nil
}

type fakeClassifier struct {
	decision rag.Decision
	err      error
	captured []ai.ChatMessage
}

func (f *fakeClassifier) Classify(_ context.Context, history []ai.ChatMessage, _ string, _ []string) (rag.Decision, error) {
	f.captured = history
	return f.decision, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeMatcher struct {
	matches []rag.Match
}

func (f *fakeMatcher) Search(context.Context, []uint, []float32, float32, int) ([]rag.Match, error) {
	return f.matches, nil
}

type fakeRangeLister struct{}

func (fakeRangeLister) ListRange(_ context.Context, docID uint, start, end int) ([]model.DocumentSection, error) {
	var out []model.DocumentSection
	for pos := start; pos <= end; pos++ {
		out = append(out, model.DocumentSection{
			DocumentID: docID,
			Position:   pos,
			Content:    fmt.Sprintf("section-%d", pos),
		})
	}
	return out, nil
}

type fakeDocumentReader struct {
	docs     map[uint]*model.Document
	fullText map[uint]string
}

func (f *fakeDocumentReader) AwaitProcessed(_ context.Context, documentID uint) (*model.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocumentReader) FullText(_ context.Context, documentID uint) (string, error) {
	return f.fullText[documentID], nil
}

type fakeStreamer struct {
	chunks   []string
	err      error
	captured []ai.ChatMessage
}

func (f *fakeStreamer) StreamComplete(_ context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	f.captured = messages
	if f.err != nil {
		return "", f.err
	}
	var full strings.Builder
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return "", err
		}
		full.WriteString(c)
	}
	return full.String(), nil
}

type generateFixture struct {
	svc       *GenerateService
	tools     *fakeToolReader
	documents *fakeDocumentReader
	streamer  *fakeStreamer
	threads   *fakeThreadStore
	messages  *fakeMessageStore
}

func newGenerateFixture(tool *model.Tool, docs []model.Document, classifier rag.Classifier) *generateFixture {
	convo, threads, messages := newTestConversationService()
	tools := &fakeToolReader{tool: tool, docs: docs}
	documents := &fakeDocumentReader{docs: map[uint]*model.Document{}, fullText: map[uint]string{}}
	streamer := &fakeStreamer{chunks: []string{"hel", "lo"}}
	svc := NewGenerateService(GenerateDeps{
		Tools:          tools,
		Convo:          convo,
		Documents:      documents,
		Sections:       fakeRangeLister{},
		Classifier:     classifier,
		Embedder:       &fakeEmbedder{vec: []float32{1, 0}},
		Searcher:       &fakeMatcher{},
		Streamer:       streamer,
		MatchThreshold: 0.7,
		MatchLimit:     10,
		WindowRadius:   2,
	})
	return &generateFixture{svc: svc, tools: tools, documents: documents, streamer: streamer, threads: threads, messages: messages}
}

func collectEvents(threadID *uint, tokens *[]string, completedID *uint) TurnEvents {
	return TurnEvents{
		OnThreadResolved: func(id uint) error {
			*threadID = id
			return nil
		},
		OnToken: func(chunk string) error {
			*tokens = append(*tokens, chunk)
			return nil
		},
		OnCompleted: func(id uint) error {
			*completedID = id
			return nil
		},
	}
}

func TestGenerateNewThreadStreamsAndPersists(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "You are terse."}
	fx := newGenerateFixture(tool, nil, &fakeClassifier{decision: rag.Decision{Strategy: rag.StrategyNoReference}})

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "hello",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if threadID == 0 {
		t.Fatal("thread was never resolved")
	}
	if strings.Join(tokens, "") != "hello" {
		t.Errorf("streamed %q, want %q", strings.Join(tokens, ""), "hello")
	}
	if completedID == 0 {
		t.Fatal("completion event never fired")
	}

	stored, _ := fx.messages.ListByThreadID(context.Background(), threadID)
	// system seed, user turn, assistant reply
	if len(stored) != 3 {
		t.Fatalf("thread has %d messages, want 3", len(stored))
	}
	last := stored[len(stored)-1]
	if last.Role != model.RoleAssistant || last.Content != "hello" {
		t.Errorf("assistant message = %s/%q, want assistant/hello", last.Role, last.Content)
	}
	if last.RequestID == nil || *last.RequestID == "" {
		t.Error("assistant message has no request id")
	}
	if last.ID != completedID {
		t.Errorf("completion event carried id %d, want %d", completedID, last.ID)
	}
}

func TestGenerateForksWhenThreadNotOwned(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "prompt"}
	fx := newGenerateFixture(tool, nil, &fakeClassifier{decision: rag.Decision{Strategy: rag.StrategyNoReference}})

	owner := &model.Thread{ToolID: 1, CreatedBy: 1}
	if err := fx.threads.Create(owner); err != nil {
		t.Fatal(err)
	}
	seed := []model.Message{
		{ThreadID: owner.ID, Role: model.RoleSystem, Content: "prompt"},
		{ThreadID: owner.ID, Role: model.RoleUser, Content: "original question"},
		{ThreadID: owner.ID, Role: model.RoleAssistant, Content: "original answer"},
	}
	if err := fx.messages.CreateBatch(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:   2,
		ToolID:   1,
		ThreadID: owner.ID,
		Content:  "my follow-up",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if threadID == owner.ID {
		t.Fatal("turn landed on a thread the user does not own")
	}

	forked, _ := fx.messages.ListByThreadID(context.Background(), threadID)
	// 3 copied + user turn + assistant reply
	if len(forked) != 5 {
		t.Fatalf("fork has %d messages, want 5", len(forked))
	}
	if forked[1].Content != "original question" {
		t.Errorf("fork lost the copied history: %q", forked[1].Content)
	}
	if forked[3].Role != model.RoleUser || forked[3].Content != "my follow-up" {
		t.Errorf("fork user turn = %s/%q", forked[3].Role, forked[3].Content)
	}

	original, _ := fx.messages.ListByThreadID(context.Background(), owner.ID)
	if len(original) != 3 {
		t.Errorf("source thread grew to %d messages, want 3", len(original))
	}
}

func TestGenerateRetrievalInjectsContext(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "prompt"}
	docs := []model.Document{{ID: 11, Name: "handbook.pdf", Processed: true}}
	fx := newGenerateFixture(tool, docs, &fakeClassifier{decision: rag.Decision{
		Strategy:   rag.StrategyRetrieval,
		SearchTerm: "vacation policy",
	}})
	fx.svc.searcher = &fakeMatcher{matches: []rag.Match{{DocumentID: 11, Position: 5, Similarity: 0.9}}}

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "how much vacation do I get?",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var injected string
	for _, m := range fx.streamer.captured {
		if m.Role == "user" && strings.Contains(m.Content, "pre-uploaded file(s)") {
			injected = m.Content
		}
	}
	if injected == "" {
		t.Fatal("no retrieved-context message was sent to the model")
	}
	if !strings.Contains(injected, "handbook.pdf") {
		t.Error("injected context does not name the matched document")
	}
	if !strings.Contains(injected, "// Retrieved Section #1") {
		t.Error("injected context is missing the retrieval marker")
	}
	if !strings.Contains(injected, "section-5") {
		t.Error("injected context is missing the matched section")
	}

	stored, _ := fx.messages.ListByThreadID(context.Background(), threadID)
	userMsg := stored[1]
	meta := userMsg.MetadataMap()
	if meta[model.MetaDocumentStrategy] != string(rag.StrategyRetrieval) {
		t.Errorf("user message strategy metadata = %v, want retrieval", meta[model.MetaDocumentStrategy])
	}
	// The audit trail stores the injected text itself, not just the names.
	if body, _ := meta[model.MetaInjectedDocs].(string); !strings.Contains(body, "section-5") {
		t.Errorf("user message injected-docs metadata = %v, want the retrieved text", meta[model.MetaInjectedDocs])
	}
	if names, _ := meta[model.MetaInjectedDocNames].(string); !strings.Contains(names, "handbook.pdf") {
		t.Errorf("user message injected-doc-names metadata = %v", meta[model.MetaInjectedDocNames])
	}
}

func TestGenerateFullDocumentStrategyReadsWholeDocument(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "prompt"}
	docs := []model.Document{
		{ID: 11, Name: "handbook.pdf", Processed: true},
		{ID: 12, Name: "appendix.pdf", Processed: true},
	}
	fx := newGenerateFixture(tool, docs, &fakeClassifier{decision: rag.Decision{
		Strategy: rag.StrategyFullDocument,
	}})
	fx.documents.fullText[11] = "first section\nsecond section\nthird section"
	// Any similarity search here would be a bug; make it loud if it happens.
	fx.svc.embedder = &fakeEmbedder{err: errors.New("embedding must not run for full-document reads")}

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "summarize the handbook",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var injected string
	for _, m := range fx.streamer.captured {
		if m.Role == "user" && strings.Contains(m.Content, "pre-uploaded file(s)") {
			injected = m.Content
		}
	}
	if injected == "" {
		t.Fatal("no document context was sent to the model")
	}
	for _, want := range []string{"first section", "second section", "third section"} {
		if !strings.Contains(injected, want) {
			t.Errorf("injected context is missing %q", want)
		}
	}
	if !strings.Contains(injected, "handbook.pdf") {
		t.Error("injected context does not name the document")
	}
	if strings.Contains(injected, "appendix.pdf") {
		t.Error("only the first pre-uploaded document should be read whole")
	}

	stored, _ := fx.messages.ListByThreadID(context.Background(), threadID)
	meta := stored[1].MetadataMap()
	if meta[model.MetaDocumentStrategy] != string(rag.StrategyFullDocument) {
		t.Errorf("user message strategy metadata = %v, want full_document", meta[model.MetaDocumentStrategy])
	}
	if body, _ := meta[model.MetaInjectedDocs].(string); !strings.Contains(body, "second section") {
		t.Errorf("user message injected-docs metadata = %v, want the document text", meta[model.MetaInjectedDocs])
	}
}

func TestGenerateClassifierSeesToolSystemPrompt(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "You are the handbook expert."}
	docs := []model.Document{{ID: 11, Name: "handbook.pdf", Processed: true}}
	classifier := &fakeClassifier{decision: rag.Decision{Strategy: rag.StrategyNoReference}}
	fx := newGenerateFixture(tool, docs, classifier)

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "hello",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(classifier.captured) == 0 {
		t.Fatal("classifier received no history")
	}
	first := classifier.captured[0]
	if first.Role != model.RoleSystem || first.Content != tool.SystemPrompt {
		t.Errorf("classifier history starts with %s/%q, want the tool system prompt first", first.Role, first.Content)
	}
}

func TestGenerateClassifierErrorSoftFails(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "prompt"}
	docs := []model.Document{{ID: 11, Name: "handbook.pdf", Processed: true}}
	fx := newGenerateFixture(tool, docs, &fakeClassifier{err: errors.New("backend down")})

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "hello",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err != nil {
		t.Fatalf("Generate should soft-fail classification, got: %v", err)
	}
	if completedID == 0 {
		t.Fatal("turn did not complete")
	}
	for _, m := range fx.streamer.captured {
		if strings.Contains(m.Content, "pre-uploaded file(s)") {
			t.Error("context was injected despite classification failure")
		}
	}
}

func TestGenerateStreamErrorDoesNotPersistAssistant(t *testing.T) {
	tool := &model.Tool{ID: 1, AuthorID: 1, SystemPrompt: "prompt"}
	fx := newGenerateFixture(tool, nil, &fakeClassifier{decision: rag.Decision{Strategy: rag.StrategyNoReference}})
	fx.streamer.err = errors.New("backend exploded")

	var threadID, completedID uint
	var tokens []string
	err := fx.svc.Generate(context.Background(), TurnInput{
		UserID:  1,
		ToolID:  1,
		Content: "hello",
	}, collectEvents(&threadID, &tokens, &completedID))
	if err == nil {
		t.Fatal("Generate should propagate the stream error")
	}

	stored, _ := fx.messages.ListByThreadID(context.Background(), threadID)
	// system seed + user turn only; the failed reply must not be stored
	if len(stored) != 2 {
		t.Fatalf("thread has %d messages, want 2", len(stored))
	}
	for _, m := range stored {
		if m.Role == model.RoleAssistant {
			t.Error("a partial assistant reply was persisted")
		}
	}
	if completedID != 0 {
		t.Error("completion event fired for a failed turn")
	}
}
