package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

// Attempt is one timed session of a user working through an exam.
type Attempt struct {
	ID        uuid.UUID     `json:"id"`
	ExamID    uuid.UUID     `json:"exam_id"`
	Status    AttemptStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	// ExpiresAt is started_at + time limit; nil for untimed exams.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Answer is the recorded response to a single question. Choice questions
// carry a selected option id; short-answer questions carry text.
type Answer struct {
	QuestionID       uuid.UUID `json:"question_id"`
	SelectedOptionID *string   `json:"selected_option_id,omitempty"`
	TextAnswer       string    `json:"text_answer,omitempty"`
}

// Answered reports whether the answer holds an actual response.
func (a *Answer) Answered() bool {
	return (a.SelectedOptionID != nil && *a.SelectedOptionID != "") || a.TextAnswer != ""
}

// ActiveAttempt is the gateway's resume payload: the in-progress attempt
// together with the answers recorded so far.
type ActiveAttempt struct {
	Attempt *Attempt `json:"active_attempt"`
	Answers []Answer `json:"answers,omitempty"`
}

// Result is produced at grading and attached 1:1 to a completed attempt.
// Score is on the 0-20 scale.
type Result struct {
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}
