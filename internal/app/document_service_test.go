package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"toolsmith/internal/ai"
	"toolsmith/internal/model"
	"toolsmith/internal/platform/rabbitmq"
)

type fakeDocumentStore struct {
	docs   map[uint]*model.Document
	nextID uint
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[uint]*model.Document{}, nextID: 1}
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	doc.ID = f.nextID
	f.nextID++
	stored := *doc
	f.docs[doc.ID] = &stored
	return nil
}

func (f *fakeDocumentStore) GetByID(id uint) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocumentStore) ListByUploaderID(uploaderID uint) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range f.docs {
		if doc.UploaderID == uploaderID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) SetProcessed(id uint) error {
	if doc, ok := f.docs[id]; ok {
		doc.Processed = true
	}
	return nil
}

func (f *fakeDocumentStore) DeleteByIDAndUploaderID(id, uploaderID uint) error {
	if doc, ok := f.docs[id]; ok && doc.UploaderID == uploaderID {
		delete(f.docs, id)
	}
	return nil
}

type fakeSectionStore struct {
	sections []model.DocumentSection
	nextID   uint
}

func (f *fakeSectionStore) CreateBatch(sections []model.DocumentSection) error {
	for i := range sections {
		f.nextID++
		sections[i].ID = f.nextID
	}
	f.sections = append(f.sections, sections...)
	return nil
}

func (f *fakeSectionStore) ListByDocumentID(_ context.Context, documentID uint) ([]model.DocumentSection, error) {
	var out []model.DocumentSection
	for _, s := range f.sections {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSectionStore) DeleteByDocumentID(documentID uint) error {
	kept := f.sections[:0]
	for _, s := range f.sections {
		if s.DocumentID != documentID {
			kept = append(kept, s)
		}
	}
	f.sections = kept
	return nil
}

type fakeDispatcher struct {
	jobs []rabbitmq.EmbedJob
}

func (f *fakeDispatcher) Publish(_ context.Context, job rabbitmq.EmbedJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeCompleter struct {
	reply    string
	err      error
	captured []ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.captured = messages
	return f.reply, f.err
}

type documentFixture struct {
	svc        *DocumentService
	docs       *fakeDocumentStore
	sections   *fakeSectionStore
	dispatcher *fakeDispatcher
	summarizer *fakeCompleter
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	docs := newFakeDocumentStore()
	sections := &fakeSectionStore{}
	dispatcher := &fakeDispatcher{}
	summarizer := &fakeCompleter{reply: "a summary"}
	svc := NewDocumentService(docs, sections, dispatcher, summarizer, t.TempDir(), 5, 40)
	return &documentFixture{svc: svc, docs: docs, sections: sections, dispatcher: dispatcher, summarizer: summarizer}
}

func TestUploadChunksAndDispatchesEmbedJob(t *testing.T) {
	fx := newDocumentFixture(t)

	text := "The first paragraph talks about onboarding and who to ask for help.\n\n" +
		"The second paragraph covers vacation policy and how days accrue over time."
	doc, err := fx.svc.Upload(context.Background(), UploadInput{
		UploaderID: 1,
		FileName:   "handbook.txt",
		Reader:     strings.NewReader(text),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !doc.Processed {
		t.Error("document not marked processed after chunking")
	}

	stored, _ := fx.sections.ListByDocumentID(context.Background(), doc.ID)
	if len(stored) == 0 {
		t.Fatal("no sections were persisted")
	}
	for i, s := range stored {
		if s.Position != i {
			t.Errorf("section %d has position %d, want dense ascending positions", i, s.Position)
		}
	}

	if len(fx.dispatcher.jobs) != 1 {
		t.Fatalf("dispatched %d embed jobs, want 1", len(fx.dispatcher.jobs))
	}
	job := fx.dispatcher.jobs[0]
	if job.DocumentID != doc.ID || len(job.SectionIDs) != len(stored) {
		t.Errorf("embed job = %+v, want all %d sections of document %d", job, len(stored), doc.ID)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	fx := newDocumentFixture(t)

	_, err := fx.svc.Upload(context.Background(), UploadInput{
		UploaderID: 1,
		FileName:   "payload.exe",
		Reader:     strings.NewReader("not text"),
	})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("Upload error = %v, want ErrUnsupportedFileType", err)
	}
	if len(fx.dispatcher.jobs) != 0 {
		t.Error("an embed job was dispatched for a rejected upload")
	}
}

func TestSummarizeSendsWholeDocument(t *testing.T) {
	fx := newDocumentFixture(t)

	doc := &model.Document{UploaderID: 1, Name: "notes.md", Processed: true}
	if err := fx.docs.Create(doc); err != nil {
		t.Fatal(err)
	}
	sections := []model.DocumentSection{
		{DocumentID: doc.ID, Position: 0, Content: "intro part"},
		{DocumentID: doc.ID, Position: 1, Content: "middle part"},
		{DocumentID: doc.ID, Position: 2, Content: "closing part"},
	}
	if err := fx.sections.CreateBatch(sections); err != nil {
		t.Fatal(err)
	}

	summary, err := fx.svc.Summarize(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "a summary" {
		t.Errorf("summary = %q, want the model reply", summary)
	}

	if len(fx.summarizer.captured) != 2 {
		t.Fatalf("summarizer got %d messages, want system + document", len(fx.summarizer.captured))
	}
	body := fx.summarizer.captured[1].Content
	for _, want := range []string{"intro part", "middle part", "closing part", "notes.md"} {
		if !strings.Contains(body, want) {
			t.Errorf("summarize request is missing %q", want)
		}
	}
}

func TestSummarizeUnknownDocument(t *testing.T) {
	fx := newDocumentFixture(t)

	_, err := fx.svc.Summarize(context.Background(), 99)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("Summarize error = %v, want ErrDocumentNotFound", err)
	}
}
