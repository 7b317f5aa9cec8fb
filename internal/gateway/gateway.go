package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/response"
)

// Gateway is the remote exam service contract consumed by the session
// controller. Authentication, transport and persistence are the remote
// side's concern.
type Gateway interface {
	// GetExamView fetches the exam descriptor including the caller's
	// assignment status and attempts-used count.
	GetExamView(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	// GetActiveAttempt returns the caller's in-progress attempt and its
	// recorded answers, or a not-found error when none exists.
	GetActiveAttempt(ctx context.Context, examID uuid.UUID) (*model.ActiveAttempt, error)
	// StartAttempt creates a fresh attempt. The remote side enforces
	// at most one in-progress attempt per (user, exam).
	StartAttempt(ctx context.Context, examID uuid.UUID) (*model.Attempt, error)
	// SaveAnswer records a single answer on an attempt.
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, answer model.Answer) error
	// SaveAnswersBatch records a set of answers on an attempt.
	SaveAnswersBatch(ctx context.Context, attemptID uuid.UUID, answers []model.Answer) error
	// GradeAttempt finalizes the attempt and returns its result.
	GradeAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
}

// Error is a domain or transport failure surfaced by a gateway call.
type Error struct {
	// Status is the HTTP status code, or 0 for transport failures.
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("gateway: %s", e.Message)
}

// IsNotFound reports whether err means the requested resource (exam or
// active attempt) does not exist for the caller.
func IsNotFound(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Status == http.StatusNotFound ||
		ge.Code == response.ErrNotFound ||
		ge.Code == response.ErrNoActiveAttempt
}

// IsConflict reports whether err means the remote side refused to start
// a new attempt because one is already in progress.
func IsConflict(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Status == http.StatusConflict || ge.Code == response.ErrAttemptActive
}

// UserMessage extracts the human-readable message of a gateway error,
// or a fallback for non-gateway errors.
func UserMessage(err error, fallback string) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return fallback
}
