package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus enumerates the states of a user's exam assignment.
// An assignment is the relationship between a user and an exam, distinct
// from any individual attempt.
type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentStarted    AssignmentStatus = "started"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentExpired    AssignmentStatus = "expired"
)

// Assignment carries the caller's standing on an exam, returned embedded
// in the exam view.
type Assignment struct {
	Status           AssignmentStatus `json:"status"`
	AttemptsCount    int              `json:"attempts_count"`
	HasActiveAttempt bool             `json:"has_active_attempt,omitempty"`
}

// Exam is the per-session exam descriptor. Immutable once fetched.
type Exam struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	// TimeLimitMinutes is nil for untimed exams.
	TimeLimitMinutes *int `json:"time_limit_minutes,omitempty"`
	// PassingScore is on the 0-20 grading scale. Nil means no minimum.
	PassingScore *float64 `json:"passing_score,omitempty"`
	// MaxAttempts <= 0 means unlimited.
	MaxAttempts int         `json:"max_attempts,omitempty"`
	Questions   []Question  `json:"questions"`
	Assignment  *Assignment `json:"assignment,omitempty"`
}

// TimeLimit returns the exam's time limit as a duration, or false for
// untimed exams.
func (e *Exam) TimeLimit() (time.Duration, bool) {
	if e.TimeLimitMinutes == nil || *e.TimeLimitMinutes <= 0 {
		return 0, false
	}
	return time.Duration(*e.TimeLimitMinutes) * time.Minute, true
}

// AttemptsRemaining reports how many attempts the caller has left.
// Unlimited exams always report true.
func (e *Exam) AttemptsRemaining() (int, bool) {
	if e.MaxAttempts <= 0 {
		return 0, true
	}
	used := 0
	if e.Assignment != nil {
		used = e.Assignment.AttemptsCount
	}
	remaining := e.MaxAttempts - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, remaining > 0
}
