package app

import (
	"context"
	"errors"
	"testing"

	"toolsmith/internal/model"
)

type fakeThreadStore struct {
	nextID  uint
	threads map[uint]*model.Thread
}

func newFakeThreadStore() *fakeThreadStore {
	return &fakeThreadStore{nextID: 1, threads: map[uint]*model.Thread{}}
}

func (f *fakeThreadStore) Create(thread *model.Thread) error {
	thread.ID = f.nextID
	f.nextID++
	copied := *thread
	f.threads[thread.ID] = &copied
	return nil
}

func (f *fakeThreadStore) GetByID(id uint) (*model.Thread, error) {
	thread, ok := f.threads[id]
	if !ok {
		return nil, nil
	}
	copied := *thread
	return &copied, nil
}

func (f *fakeThreadStore) ListByCreator(toolID, userID uint) ([]model.Thread, error) {
	var out []model.Thread
	for _, t := range f.threads {
		if t.ToolID == toolID && t.CreatedBy == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeThreadStore) DeleteByIDAndCreator(id, userID uint) error {
	if t, ok := f.threads[id]; ok && t.CreatedBy == userID {
		delete(f.threads, id)
	}
	return nil
}

type fakeMessageStore struct {
	nextID   uint
	messages []model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{nextID: 1}
}

func (f *fakeMessageStore) Create(_ context.Context, msg *model.Message) error {
	msg.ID = f.nextID
	f.nextID++
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageStore) CreateBatch(ctx context.Context, msgs []model.Message) error {
	for i := range msgs {
		if err := f.Create(ctx, &msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMessageStore) ListByThreadID(_ context.Context, threadID uint) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestConversationService() (*ConversationService, *fakeThreadStore, *fakeMessageStore) {
	threads := newFakeThreadStore()
	messages := newFakeMessageStore()
	svc := NewConversationService(threads, messages, nil, nil, nil)
	return svc, threads, messages
}

func TestCreateThreadSeedsSystemAndStarter(t *testing.T) {
	tests := []struct {
		name      string
		starter   string
		wantRoles []string
	}{
		{"with starter", "Hi, how can I help?", []string{model.RoleSystem, model.RoleAssistant}},
		{"without starter", "", []string{model.RoleSystem}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, messages := newTestConversationService()
			tool := &model.Tool{ID: 7, SystemPrompt: "You are a poet.", ConversationStarter: tt.starter}

			thread, err := svc.CreateThread(context.Background(), tool, 3)
			if err != nil {
				t.Fatalf("CreateThread: %v", err)
			}

			seeded, _ := messages.ListByThreadID(context.Background(), thread.ID)
			if len(seeded) != len(tt.wantRoles) {
				t.Fatalf("seeded %d messages, want %d", len(seeded), len(tt.wantRoles))
			}
			for i, role := range tt.wantRoles {
				if seeded[i].Role != role {
					t.Errorf("seed[%d].Role = %q, want %q", i, seeded[i].Role, role)
				}
			}
			if seeded[0].Content != tool.SystemPrompt {
				t.Errorf("system seed content = %q, want system prompt", seeded[0].Content)
			}
		})
	}
}

func TestAppendPermissionDenied(t *testing.T) {
	svc, threads, messages := newTestConversationService()
	thread := &model.Thread{ToolID: 1, CreatedBy: 1}
	if err := threads.Create(thread); err != nil {
		t.Fatal(err)
	}

	err := svc.Append(context.Background(), thread, 2, &model.Message{Role: model.RoleUser, Content: "hi"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Append by non-owner: err = %v, want ErrPermissionDenied", err)
	}
	if len(messages.messages) != 0 {
		t.Errorf("denied append wrote %d messages, want 0", len(messages.messages))
	}
}

func TestForkCopiesMessagesToNewThread(t *testing.T) {
	svc, threads, messages := newTestConversationService()

	source := &model.Thread{ToolID: 4, CreatedBy: 1}
	if err := threads.Create(source); err != nil {
		t.Fatal(err)
	}

	requestID := "req-abc"
	feedbackID := uint(9)
	originals := []model.Message{
		{ThreadID: source.ID, Role: model.RoleSystem, Content: "prompt"},
		{ThreadID: source.ID, Role: model.RoleUser, Content: "question"},
		{ThreadID: source.ID, Role: model.RoleAssistant, Content: "answer", RequestID: &requestID, FeedbackID: &feedbackID},
	}
	if err := messages.CreateBatch(context.Background(), originals); err != nil {
		t.Fatal(err)
	}

	fork, err := svc.Fork(context.Background(), source, 2)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if fork.ID == source.ID {
		t.Fatal("fork reused the source thread id")
	}
	if fork.CreatedBy != 2 {
		t.Errorf("fork.CreatedBy = %d, want 2", fork.CreatedBy)
	}
	if fork.ToolID != source.ToolID {
		t.Errorf("fork.ToolID = %d, want %d", fork.ToolID, source.ToolID)
	}

	copies, _ := messages.ListByThreadID(context.Background(), fork.ID)
	if len(copies) != 3 {
		t.Fatalf("fork has %d messages, want 3", len(copies))
	}
	for i := range copies {
		if copies[i].Role != originals[i].Role || copies[i].Content != originals[i].Content {
			t.Errorf("copy[%d] = %s/%q, want %s/%q", i, copies[i].Role, copies[i].Content, originals[i].Role, originals[i].Content)
		}
		if copies[i].ID == originals[i].ID {
			t.Errorf("copy[%d] reused original message id %d", i, originals[i].ID)
		}
		if copies[i].FeedbackID != nil {
			t.Errorf("copy[%d] carried over a feedback link", i)
		}
		if copies[i].RequestID != nil {
			t.Errorf("copy[%d] carried over a request id", i)
		}
	}

	remaining, _ := messages.ListByThreadID(context.Background(), source.ID)
	if len(remaining) != 3 {
		t.Errorf("source thread has %d messages after fork, want 3", len(remaining))
	}
}

func TestModelHistorySkipsSystemMessages(t *testing.T) {
	svc, threads, messages := newTestConversationService()
	thread := &model.Thread{ToolID: 1, CreatedBy: 1}
	if err := threads.Create(thread); err != nil {
		t.Fatal(err)
	}

	seed := []model.Message{
		{ThreadID: thread.ID, Role: model.RoleSystem, Content: "prompt"},
		{ThreadID: thread.ID, Role: model.RoleUser, Content: "hello"},
		{ThreadID: thread.ID, Role: model.RoleAssistant, Content: "hi there"},
	}
	if err := messages.CreateBatch(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	history, err := svc.ModelHistory(context.Background(), thread.ID)
	if err != nil {
		t.Fatalf("ModelHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Role != model.RoleUser || history[1].Role != model.RoleAssistant {
		t.Errorf("history roles = %s,%s, want user,assistant", history[0].Role, history[1].Role)
	}
}
