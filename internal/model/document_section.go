package model

import (
	"encoding/json"
	"time"
)

// DocumentSection is one position-ordered chunk of a document's text.
// Embedding is stored as a JSON array of float32 for portability; an empty
// string means the async embedding step has not run yet, and such sections
// are excluded from vector search.
type DocumentSection struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	Position   int       `gorm:"not null" json:"position"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; nil when pending or on
// parse error.
func (s *DocumentSection) EmbeddingVector() []float32 {
	if s.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(s.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (s *DocumentSection) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		s.Embedding = ""
		return
	}
	b, _ := json.Marshal(vec)
	s.Embedding = string(b)
}
