package models

import "time"

// ShareMetadata is the free-form context stored with a share.
type ShareMetadata struct {
	InterpretedNeeds []string `json:"interpretedNeeds,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Strategy         string   `json:"strategy,omitempty"`
}

// SharedRecommendationSet is a persisted snapshot reachable by a public link.
// ViewCount only ever increases.
type SharedRecommendationSet struct {
	ShareID         string           `json:"shareId" gorm:"primaryKey;size:16"`
	Title           *string          `json:"title,omitempty"`
	Prompt          string           `json:"prompt" gorm:"type:text;not null"`
	Recommendations []Recommendation `json:"recommendations" gorm:"type:jsonb;serializer:json"`
	Metadata        ShareMetadata    `json:"metadata" gorm:"type:jsonb;serializer:json"`
	ViewCount       int64            `json:"viewCount" gorm:"default:0"`
	CreatedAt       time.Time        `json:"createdAt" gorm:"index"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
}
