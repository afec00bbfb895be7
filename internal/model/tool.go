package model

import "time"

const (
	ToolStatusDraft     = "draft"
	ToolStatusPublished = "published"
	ToolStatusArchived  = "archived"
)

type Tool struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	AuthorID            uint      `gorm:"not null;index" json:"author_id"`
	Title               string    `gorm:"size:256;not null" json:"title"`
	SystemPrompt        string    `gorm:"type:text;not null" json:"system_prompt"`
	ConversationStarter string    `gorm:"type:text" json:"conversation_starter"`
	AllowFileUpload     bool      `gorm:"not null;default:false" json:"allow_file_upload"`
	Status              string    `gorm:"size:16;not null;default:draft" json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ToolDocument links a pre-uploaded document to a tool.
type ToolDocument struct {
	ToolID     uint `gorm:"primaryKey;autoIncrement:false" json:"tool_id"`
	DocumentID uint `gorm:"primaryKey;autoIncrement:false" json:"document_id"`
}
