package session

import (
	"time"

	"github.com/rpsoft/examflow/internal/model"
)

// EventKind enumerates the notifications the controller pushes to the
// presentation layer.
type EventKind string

const (
	// EventTick carries the remaining time, once per second while a
	// timed attempt is active.
	EventTick EventKind = "tick"
	// EventStarted fires when a brand-new attempt is adopted.
	EventStarted EventKind = "started"
	// EventResumed fires when an existing attempt is adopted.
	EventResumed EventKind = "resumed"
	// EventAutoSubmit fires once when the time limit elapses, right
	// before the automatic submission.
	EventAutoSubmit EventKind = "auto_submit"
	// EventGraded fires when a result is attached and the attempt
	// reaches its terminal state.
	EventGraded EventKind = "graded"
)

// ResumeSource tells where a resumed attempt came from.
type ResumeSource string

const (
	ResumeServer ResumeSource = "server"
	ResumeLocal  ResumeSource = "local"
)

// Event is a single controller notification.
type Event struct {
	Kind      EventKind
	Remaining time.Duration // EventTick
	Source    ResumeSource  // EventResumed
	Result    *model.Result // EventGraded
}
