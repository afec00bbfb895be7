package model

import (
	"encoding/json"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Metadata keys stored on messages for auditability. Injected context is
// recorded here once and never re-sent to the model on later turns.
const (
	MetaIsInternal          = "is_internal"
	MetaInjectedDocs        = "injected_docs"
	MetaInjectedDocNames    = "injected_doc_names"
	MetaDocumentStrategy    = "document_strategy"
	MetaAttachedFileContext = "attached_file_context"
)

// Message is append-only; FeedbackID is the single field that may be set after
// creation.
type Message struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ThreadID         uint      `gorm:"not null;index" json:"thread_id"`
	Role             string    `gorm:"size:16;not null;index" json:"role"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	RequestID        *string   `gorm:"size:64" json:"request_id,omitempty"`
	AttachedFilePath *string   `gorm:"size:512" json:"attached_file_path,omitempty"`
	FeedbackID       *uint     `json:"feedback_id,omitempty"`
	Metadata         string    `gorm:"type:text" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// MetadataMap returns the parsed metadata; empty map when unset or on parse
// error.
func (m *Message) MetadataMap() map[string]any {
	out := map[string]any{}
	if m.Metadata == "" {
		return out
	}
	_ = json.Unmarshal([]byte(m.Metadata), &out)
	return out
}

// SetMetadata stores the metadata as JSON.
func (m *Message) SetMetadata(meta map[string]any) {
	if len(meta) == 0 {
		m.Metadata = ""
		return
	}
	b, _ := json.Marshal(meta)
	m.Metadata = string(b)
}
