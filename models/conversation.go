package models

import (
	"time"
)

// ConversationTurn ist ein einzelner Gesprächsbeitrag einer Session.
type ConversationTurn struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SessionID string `json:"session_id" gorm:"index;not null"`
	Role      string `json:"role" gorm:"not null"` // "user" oder "assistant"
	Content   string `json:"content" gorm:"type:text;not null"`

	AttachmentsJSON []byte `json:"attachments_json,omitempty" gorm:"type:jsonb"`
}

func (ConversationTurn) TableName() string { return "conversations" }

// SessionSummary fasst eine Session für die Übersicht zusammen.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	MessageCount int64     `json:"message_count"`
	FirstMessage string    `json:"first_message"`
}
