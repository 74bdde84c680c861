package models

import (
	"time"
)

// RecordLink modelliert eine ungerichtete Kante zwischen zwei Records.
// AID/BID werden vor dem Insert lexikographisch normalisiert, damit
// (a,b) und (b,a) dieselbe Kante ergeben.
type RecordLink struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AID string `json:"a_id" gorm:"index:idx_record_links_unique_edge,unique;size:64;not null"`
	BID string `json:"b_id" gorm:"index:idx_record_links_unique_edge,unique;size:64;not null"`
}

func (RecordLink) TableName() string { return "record_links" }

// NormalizeEdge ordnet ein Record-Paar kanonisch (kleinere ID zuerst).
func NormalizeEdge(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
