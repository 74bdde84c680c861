package models

import (
	"time"
)

// Gültige Status-Werte eines Records.
const (
	StatusDraft     = "draft"
	StatusValidated = "validated"
	StatusConfirmed = "confirmed"
	StatusError     = "error"
)

// Kategorien: shared Records sind session-übergreifend wiederverwendbar,
// asset Records gehören zu genau einem Daten-Asset.
const (
	CategoryShared = "shared"
	CategoryAsset  = "asset"
)

// CategoryMap bildet jeden Record-Typ auf seine feste Kategorie ab.
// Die Kategorie ist abgeleitet und niemals unabhängig setzbar.
var CategoryMap = map[string]string{
	"subject":          CategoryShared,
	"procedures":       CategoryShared,
	"instrument":       CategoryShared,
	"rig":              CategoryShared,
	"data_description": CategoryAsset,
	"acquisition":      CategoryAsset,
	"session":          CategoryAsset,
	"processing":       CategoryAsset,
	"quality_control":  CategoryAsset,
}

// ValidRecordType prüft, ob ein Record-Typ bekannt ist.
func ValidRecordType(recordType string) bool {
	_, ok := CategoryMap[recordType]
	return ok
}

// Record repräsentiert einen einzelnen typisierten Metadaten-Datensatz.
type Record struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionID  string `json:"session_id" gorm:"index;not null"`
	RecordType string `json:"record_type" gorm:"index;not null"`
	Category   string `json:"category" gorm:"index;not null"`
	Name       string `json:"name,omitempty"`

	// Schemaloses Daten-Dokument; Form wird von der Validierung geprüft, nicht hier.
	DataJSON []byte `json:"data_json,omitempty" gorm:"type:jsonb"`

	Status         string `json:"status" gorm:"index;not null;default:'draft'"`
	ValidationJSON []byte `json:"validation_json,omitempty" gorm:"type:jsonb"`
}

func (Record) TableName() string { return "metadata_records" }
