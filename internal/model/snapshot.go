package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the minimal attempt-identity record cached in durable
// client storage so a session survives restarts without a round-trip.
// Answers are deliberately excluded: they are recoverable from the
// server.
type Snapshot struct {
	ID        uuid.UUID  `json:"id"`
	ExamID    uuid.UUID  `json:"exam_id"`
	StartedAt time.Time  `json:"started_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FromAttempt builds the snapshot for an adopted attempt.
func FromAttempt(a *Attempt) *Snapshot {
	return &Snapshot{
		ID:        a.ID,
		ExamID:    a.ExamID,
		StartedAt: a.StartedAt,
		ExpiresAt: a.ExpiresAt,
	}
}

// ToAttempt rebuilds an in-progress attempt from a stored snapshot.
func (s *Snapshot) ToAttempt() *Attempt {
	return &Attempt{
		ID:        s.ID,
		ExamID:    s.ExamID,
		Status:    AttemptInProgress,
		StartedAt: s.StartedAt,
		ExpiresAt: s.ExpiresAt,
	}
}
