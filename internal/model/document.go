package model

import "time"

// Document is a pre-uploaded or per-turn attached file. Processed stays false
// until all sections have been created; embeddings may still be pending after
// that (they are generated asynchronously, see worker.EmbedWorker).
type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UploaderID  uint      `gorm:"not null;index" json:"uploader_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	StoragePath string    `gorm:"size:512;not null;uniqueIndex" json:"storage_path"`
	Processed   bool      `gorm:"not null;default:false" json:"processed"`
	CreatedAt   time.Time `json:"created_at"`
}
