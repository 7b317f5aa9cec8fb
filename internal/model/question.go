package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// TrueFalseTrue and TrueFalseFalse are the literal option identifiers
// used for true/false questions on the wire.
const (
	TrueFalseTrue  = "true"
	TrueFalseFalse = "false"
)

// Option is a selectable choice of a multiple-choice question.
type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// Question is a single exam question. Immutable.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	Text         string       `json:"text"`
	QuestionType QuestionType `json:"question_type"`
	Points       float64      `json:"points"`
	Order        int          `json:"order"`
	Options      []Option     `json:"options,omitempty"`
}

// IsChoice reports whether the question is answered by selecting an
// option (as opposed to free text).
func (q *Question) IsChoice() bool {
	return q.QuestionType == QuestionTypeMultipleChoice || q.QuestionType == QuestionTypeTrueFalse
}
