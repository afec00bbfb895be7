package model

import "time"

// Thread is one conversation against a tool. Messages may only be appended by
// CreatedBy; other writers trigger a fork (see app.ConversationService).
type Thread struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ToolID    uint      `gorm:"not null;index" json:"tool_id"`
	CreatedBy uint      `gorm:"not null;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
