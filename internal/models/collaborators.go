package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord counts finalized uploads per user per calendar month.
type UsageRecord struct {
	UserID string `json:"userId"`
	Month  string `json:"month"` // formatted as 2006-01
	Count  int    `json:"count"`
}

// MonthOf formats t in the usage-record month key format.
func MonthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Notification is a user-facing message, e.g. "Analysis Complete".
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

func NewNotification(userID, ntype, title, message string, metadata map[string]string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      ntype,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// ActivityEvent is an append-only audit entry for an upload confirmation
// or another actor-visible action on an analysis.
type ActivityEvent struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId"`
	AnalysisID string    `json:"analysisId"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewActivityEvent(actorID, analysisID, action, detail string) *ActivityEvent {
	return &ActivityEvent{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		AnalysisID: analysisID,
		Action:     action,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
}
