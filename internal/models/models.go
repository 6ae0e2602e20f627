package models

import (
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// TopTier is the only plan that includes the AI assistant.
const TopTier = TierPro

type Satisfaction string

const (
	Satisfied    Satisfaction = "satisfied"
	Neutral      Satisfaction = "neutral"
	Dissatisfied Satisfaction = "dissatisfied"
)

type Business struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Tier      Tier      `json:"plan"`
	OwnerID   uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasAIAccess reports whether the business plan includes the AI assistant.
func (b *Business) HasAIAccess() bool {
	return b.Tier == TopTier
}

type Comment struct {
	ID           uuid.UUID    `json:"id"`
	BusinessID   uuid.UUID    `json:"business_id"`
	Text         string       `json:"text"`
	Satisfaction Satisfaction `json:"satisfaction"`
	IsDeleted    bool         `json:"is_deleted"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ChatMarkerHash is the fingerprint stored on quota-only rows written by chat
// calls. No SHA-256 hex digest can equal it.
const ChatMarkerHash = "chat-marker"

type AnalysisCacheEntry struct {
	ID           uuid.UUID `json:"id"`
	BusinessID   uuid.UUID `json:"business_id"`
	CommentsHash string    `json:"comments_hash"`
	Summary      string    `json:"summary"`
	TopIssues    []string  `json:"top_issues"`
	TopStrengths []string  `json:"top_strengths"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (e *AnalysisCacheEntry) IsMarker() bool {
	return e.CommentsHash == ChatMarkerHash
}

type CacheStats struct {
	TotalEntries int `json:"total_entries"`
	ChatMarkers  int `json:"chat_markers"`
	FreshEntries int `json:"fresh_entries"`
}
