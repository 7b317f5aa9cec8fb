package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/gateway"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/response"
	"github.com/rpsoft/examflow/internal/snapshot"
	"github.com/rs/zerolog"
)

// State enumerates the controller lifecycle states.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateResuming   State = "resuming"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateGraded     State = "graded"
	StateBlocked    State = "blocked"
)

var (
	// ErrNothingToSave is returned by SaveAll when the working copy is
	// empty.
	ErrNothingToSave = errors.New("no hay respuestas para guardar")
	// ErrNotActive is returned by operations that require an active
	// attempt.
	ErrNotActive = errors.New("el intento no está activo")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("la sesión está cerrada")
)

// BlockedError is terminal: access denied, assignment expired or
// attempts exhausted. Message is user-facing.
type BlockedError struct {
	Message string
}

func (e *BlockedError) Error() string { return e.Message }

// Controller owns the lifecycle of exactly one attempt for the exam
// being taken: resume precedence, countdown, answer persistence and
// grading. All methods are safe for concurrent use; load/start/submit
// sequences are single-flight.
type Controller struct {
	examID        uuid.UUID
	gw            gateway.Gateway
	store         snapshot.Store
	clock         Clock
	autosaveEvery time.Duration
	log           zerolog.Logger

	mu            sync.Mutex
	state         State
	busy          bool
	closed        bool
	exam          *model.Exam
	attempt       *model.Attempt
	answers       map[uuid.UUID]model.Answer
	result        *model.Result
	attemptsUsed  int
	blockedReason string
	stopActive    chan struct{}

	events chan Event
}

// NewController wires a controller for one exam. A nil clock means the
// system clock; autosaveEvery <= 0 disables periodic batch autosave.
func NewController(
	examID uuid.UUID,
	gw gateway.Gateway,
	store snapshot.Store,
	clock Clock,
	autosaveEvery time.Duration,
	log zerolog.Logger,
) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	return &Controller{
		examID:        examID,
		gw:            gw,
		store:         store,
		clock:         clock,
		autosaveEvery: autosaveEvery,
		log:           log.With().Str("component", "session").Str("exam_id", examID.String()).Logger(),
		state:         StateIdle,
		answers:       make(map[uuid.UUID]model.Answer),
		events:        make(chan Event, 32),
	}
}

// Events returns the notification channel the presentation layer
// drains. Events are dropped, never blocked on, when the consumer lags.
func (c *Controller) Events() <-chan Event { return c.events }

// Start runs the session entry sequence: fetch the exam view, gate on
// assignment status, then resume from server, resume from local
// snapshot, or start a new attempt, in that order. Calls after the
// first are no-ops.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy || c.state != StateIdle {
		// Duplicate entry (double mount, repeated click). Ignore.
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.state = StateLoading
	c.mu.Unlock()
	defer c.clearBusy()

	exam, err := c.gw.GetExamView(ctx, c.examID)
	if err != nil {
		msg := gateway.UserMessage(err, "No se pudo cargar el examen asignado")
		c.block(ctx, msg, false)
		return &BlockedError{Message: msg}
	}

	c.mu.Lock()
	c.exam = exam
	if exam.Assignment != nil {
		c.attemptsUsed = exam.Assignment.AttemptsCount
	}
	c.mu.Unlock()

	if exam.Assignment != nil {
		_, hasRemaining := exam.AttemptsRemaining()
		if exam.Assignment.Status == model.AssignmentCompleted && !hasRemaining {
			msg := response.GetMessage(response.ErrNoAttemptsLeft)
			c.block(ctx, msg, true)
			return &BlockedError{Message: msg}
		}
		if exam.Assignment.Status == model.AssignmentExpired {
			msg := response.GetMessage(response.ErrExamExpired)
			c.block(ctx, msg, true)
			return &BlockedError{Message: msg}
		}
	}

	if c.resumeFromServer(ctx) {
		return nil
	}
	if c.resumeFromStorage(ctx) {
		return nil
	}
	return c.startNew(ctx)
}

// StartNewAttempt begins a fresh attempt after grading, when attempts
// remain. The previous result stays visible until the new attempt is
// adopted.
func (c *Controller) StartNewAttempt(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy || c.state != StateGraded {
		c.mu.Unlock()
		return ErrNotActive
	}
	exam := c.exam
	used := c.attemptsUsed
	c.busy = true
	c.mu.Unlock()
	defer c.clearBusy()

	if exam.MaxAttempts > 0 && used >= exam.MaxAttempts {
		msg := response.GetMessage(response.ErrNoAttemptsLeft)
		c.block(ctx, msg, true)
		return &BlockedError{Message: msg}
	}

	return c.startNew(ctx)
}

// SetAnswer updates the working copy optimistically and fires an
// independent single-answer save. Save failures are logged, never
// surfaced, and never revert the working copy.
func (c *Controller) SetAnswer(questionID uuid.UUID, selectedOptionID *string, textAnswer string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateActive || c.attempt == nil {
		c.mu.Unlock()
		return ErrNotActive
	}
	answer := model.Answer{
		QuestionID:       questionID,
		SelectedOptionID: selectedOptionID,
		TextAnswer:       textAnswer,
	}
	c.answers[questionID] = answer
	attemptID := c.attempt.ID
	c.mu.Unlock()

	if answer.Answered() {
		// Fire-and-forget: the caller's context may end with the edit,
		// so the save rides on the gateway client's own timeout.
		go func() {
			if err := c.gw.SaveAnswer(context.Background(), attemptID, answer); err != nil {
				c.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("Single-answer save failed")
			}
		}()
	}
	return nil
}

// SaveAll batch-saves the full working copy on demand. Returns
// ErrNothingToSave when no question has been answered yet.
func (c *Controller) SaveAll(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateActive || c.attempt == nil {
		c.mu.Unlock()
		return ErrNotActive
	}
	answers := make([]model.Answer, 0, len(c.answers))
	for _, a := range c.answers {
		answers = append(answers, a)
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	if len(answers) == 0 {
		return ErrNothingToSave
	}
	return c.gw.SaveAnswersBatch(ctx, attemptID, answers)
}

// Submit finalizes the attempt: batch-saves the answered questions and
// requests grading. It runs at most once concurrently; calls while
// submitting or after grading are no-ops. On failure the attempt stays
// active so the caller may retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateGraded || c.state == StateSubmitting || c.busy {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateActive || c.attempt == nil {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.busy = true
	c.state = StateSubmitting
	c.stopActiveLocked()
	answers := c.answeredLocked()
	attemptID := c.attempt.ID
	c.mu.Unlock()
	defer c.clearBusy()

	if err := c.gw.SaveAnswersBatch(ctx, attemptID, answers); err != nil {
		c.log.Error().Err(err).Msg("Batch save at submit failed")
		c.reactivate()
		return err
	}

	result, err := c.gw.GradeAttempt(ctx, attemptID)
	if err != nil {
		c.log.Error().Err(err).Msg("Grading failed")
		c.reactivate()
		return err
	}

	c.mu.Lock()
	if c.closed {
		// The session was closed while the grade call was in flight;
		// do not apply the late response.
		c.mu.Unlock()
		return ErrClosed
	}
	c.result = result
	c.state = StateGraded
	c.attemptsUsed++
	if c.attempt != nil {
		c.attempt.Status = model.AttemptCompleted
	}
	if c.exam != nil {
		if c.exam.Assignment == nil {
			c.exam.Assignment = &model.Assignment{}
		}
		c.exam.Assignment.Status = model.AssignmentCompleted
		c.exam.Assignment.AttemptsCount = c.attemptsUsed
	}
	c.mu.Unlock()

	if err := c.store.Clear(ctx, c.examID); err != nil {
		c.log.Warn().Err(err).Msg("Snapshot clear failed")
	}
	c.emit(Event{Kind: EventGraded, Result: result})
	c.log.Info().
		Float64("score", result.Score).
		Bool("passed", result.Passed).
		Msg("Attempt graded")
	return nil
}

// Remaining reports the time left on the attempt, recomputed from the
// wall clock. The second return is false for untimed attempts.
func (c *Controller) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil || c.attempt.ExpiresAt == nil {
		return 0, false
	}
	remaining := c.attempt.ExpiresAt.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Close stops the countdown and autosave and suppresses any further
// state changes. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopActiveLocked()
}

// ─── Accessors ──────────────────────────────────────────────────────

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Exam() *model.Exam {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

func (c *Controller) Attempt() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return nil
	}
	cp := *c.attempt
	return &cp
}

func (c *Controller) Result() *model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Answers returns a copy of the working copy.
func (c *Controller) Answers() map[uuid.UUID]model.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]model.Answer, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

func (c *Controller) AttemptsUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptsUsed
}

// BlockedReason returns the user-facing message for the Blocked state.
func (c *Controller) BlockedReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockedReason
}

// ─── Resume / start internals ───────────────────────────────────────

// resumeFromServer adopts the remote in-progress attempt, answers
// included, when one exists.
func (c *Controller) resumeFromServer(ctx context.Context) bool {
	c.setState(StateResuming)

	active, err := c.gw.GetActiveAttempt(ctx, c.examID)
	if err != nil {
		if !gateway.IsNotFound(err) {
			c.log.Warn().Err(err).Msg("Active-attempt lookup failed")
		}
		return false
	}
	if active == nil || active.Attempt == nil || active.Attempt.Status != model.AttemptInProgress {
		return false
	}

	c.adopt(ctx, active.Attempt, active.Answers, EventResumed, ResumeServer)
	return true
}

// resumeFromStorage adopts the local snapshot when it belongs to this
// exam and the assignment is still open. Only identity and timing are
// restored; answers start empty because the snapshot does not hold
// them.
func (c *Controller) resumeFromStorage(ctx context.Context) bool {
	snap, err := c.store.Load(ctx, c.examID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Snapshot load failed, treating as miss")
		return false
	}
	if snap == nil {
		return false
	}

	c.mu.Lock()
	assignment := (*model.Assignment)(nil)
	if c.exam != nil {
		assignment = c.exam.Assignment
	}
	c.mu.Unlock()

	if assignment != nil &&
		(assignment.Status == model.AssignmentCompleted || assignment.Status == model.AssignmentExpired) {
		if err := c.store.Clear(ctx, c.examID); err != nil {
			c.log.Warn().Err(err).Msg("Snapshot clear failed")
		}
		return false
	}

	c.adopt(ctx, snap.ToAttempt(), nil, EventResumed, ResumeLocal)
	return true
}

// startNew creates a fresh attempt. When the remote side refuses (a
// concurrent session already started one), a final server-resume pass
// adopts it instead.
func (c *Controller) startNew(ctx context.Context) error {
	c.setState(StateStarting)

	attempt, err := c.gw.StartAttempt(ctx, c.examID)
	if err != nil {
		// The race with another session surfaces as assorted 4xx codes
		// depending on the backend, so any failure gets one more
		// server-resume pass before giving up.
		if c.resumeFromServer(ctx) {
			return nil
		}
		msg := gateway.UserMessage(err, "Error al iniciar el examen")
		c.block(ctx, msg, false)
		return &BlockedError{Message: msg}
	}

	c.adopt(ctx, attempt, nil, EventStarted, "")
	return nil
}

// adopt installs an attempt as the active one: normalizes its expiry,
// seeds the working copy, persists the snapshot and starts the
// countdown and autosave loops.
func (c *Controller) adopt(ctx context.Context, attempt *model.Attempt, answers []model.Answer, kind EventKind, source ResumeSource) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if attempt.ExpiresAt == nil && c.exam != nil {
		if limit, ok := c.exam.TimeLimit(); ok {
			expires := attempt.StartedAt.Add(limit)
			attempt.ExpiresAt = &expires
		}
	}

	c.attempt = attempt
	c.result = nil
	c.answers = make(map[uuid.UUID]model.Answer, len(answers))
	for _, a := range answers {
		if a.QuestionID == uuid.Nil {
			continue
		}
		c.answers[a.QuestionID] = a
	}
	c.state = StateActive
	c.stopActiveLocked()
	stop := make(chan struct{})
	c.stopActive = stop
	expiresAt := attempt.ExpiresAt
	c.mu.Unlock()

	if err := c.store.Save(ctx, c.examID, model.FromAttempt(attempt)); err != nil {
		c.log.Warn().Err(err).Msg("Snapshot save failed")
	}

	if expiresAt != nil {
		go c.runCountdown(*expiresAt, stop)
	}
	if c.autosaveEvery > 0 {
		go c.runAutosave(stop)
	}

	c.emit(Event{Kind: kind, Source: source})
	c.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("kind", string(kind)).
		Str("source", string(source)).
		Msg("Attempt active")
}

// block reaches the terminal Blocked state, optionally discarding the
// local snapshot.
func (c *Controller) block(ctx context.Context, msg string, clearSnapshot bool) {
	c.mu.Lock()
	c.state = StateBlocked
	c.blockedReason = msg
	c.stopActiveLocked()
	c.mu.Unlock()

	if clearSnapshot {
		if err := c.store.Clear(ctx, c.examID); err != nil {
			c.log.Warn().Err(err).Msg("Snapshot clear failed")
		}
	}
	c.log.Warn().Str("reason", msg).Msg("Session blocked")
}

// reactivate returns to Active after a failed submission and restarts
// the countdown, so a still-ticking time limit keeps its authority.
// An already-expired attempt gets no new countdown: retrying the
// submission is then up to the caller, not a once-per-second loop.
func (c *Controller) reactivate() {
	c.mu.Lock()
	if c.closed || c.attempt == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	c.stopActiveLocked()
	stop := make(chan struct{})
	c.stopActive = stop
	expiresAt := c.attempt.ExpiresAt
	c.mu.Unlock()

	if expiresAt != nil && expiresAt.After(c.clock.Now()) {
		go c.runCountdown(*expiresAt, stop)
	}
	if c.autosaveEvery > 0 {
		go c.runAutosave(stop)
	}
}

// ─── Timers ─────────────────────────────────────────────────────────

// runCountdown ticks once per second, recomputing the remaining time
// from the wall clock (not decrementing), so it stays correct across
// suspensions. At zero it fires auto-submit exactly once and exits.
func (c *Controller) runCountdown(expiresAt time.Time, stop chan struct{}) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			remaining := expiresAt.Sub(now)
			if remaining > 0 {
				c.emit(Event{Kind: EventTick, Remaining: remaining})
				continue
			}
			c.emit(Event{Kind: EventAutoSubmit})
			c.log.Info().Msg("Time limit reached, auto-submitting")
			if err := c.Submit(context.Background()); err != nil {
				c.log.Error().Err(err).Msg("Auto-submit failed")
			}
			return
		}
	}
}

// runAutosave periodically pushes the answered subset of the working
// copy. Failures are logged and retried on the next interval.
func (c *Controller) runAutosave(stop chan struct{}) {
	ticker := c.clock.NewTicker(c.autosaveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.mu.Lock()
			if c.state != StateActive || c.attempt == nil {
				c.mu.Unlock()
				continue
			}
			answers := c.answeredLocked()
			attemptID := c.attempt.ID
			c.mu.Unlock()

			if len(answers) == 0 {
				continue
			}
			if err := c.gw.SaveAnswersBatch(context.Background(), attemptID, answers); err != nil {
				c.log.Warn().Err(err).Msg("Autosave failed")
			}
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────

// answeredLocked returns the questions with an actual response. Callers
// must hold c.mu.
func (c *Controller) answeredLocked() []model.Answer {
	answers := make([]model.Answer, 0, len(c.answers))
	for _, a := range c.answers {
		if a.Answered() {
			answers = append(answers, a)
		}
	}
	return answers
}

func (c *Controller) stopActiveLocked() {
	if c.stopActive != nil {
		close(c.stopActive)
		c.stopActive = nil
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) clearBusy() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Consumer is lagging. Ticks and notifications are advisory;
		// never block the state machine on them.
	}
}
