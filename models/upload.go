package models

import (
	"time"
)

// Upload speichert Metadaten zu einer hochgeladenen Anhang-Datei;
// der Inhalt selbst liegt in S3.
type Upload struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"created_at"`

	SessionID        string `json:"session_id,omitempty" gorm:"index"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	SizeBytes        int64  `json:"size_bytes"`
	S3Link           string `json:"s3_link,omitempty"`
}

func (Upload) TableName() string { return "uploads" }
