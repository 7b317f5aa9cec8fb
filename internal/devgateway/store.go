package devgateway

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rs/zerolog"
)

// Domain errors mapped to wire codes by the handlers.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrNoActiveAttempt   = errors.New("no active attempt")
	ErrAttemptActive     = errors.New("attempt already in progress")
	ErrAttemptCompleted  = errors.New("attempt already completed")
	ErrMaxAttempts       = errors.New("max attempts reached")
	ErrQuestionNotInExam = errors.New("question does not belong to the exam")
)

// Store holds all dev gateway state in memory. It enforces the same
// invariants a real backend would: at most one in-progress attempt per
// exam, immutable answers after grading, lazy expiry of overdue
// attempts, and the max-attempts limit.
type Store struct {
	mu           sync.Mutex
	log          zerolog.Logger
	now          func() time.Time
	exams        map[uuid.UUID]*seededExam
	attempts     map[uuid.UUID]*attemptState
	activeByExam map[uuid.UUID]uuid.UUID
	usedByExam   map[uuid.UUID]int
}

type seededExam struct {
	exam      model.Exam
	answerKey map[uuid.UUID]string
}

type attemptState struct {
	attempt model.Attempt
	answers map[uuid.UUID]model.Answer
	result  *model.Result
}

// NewStore creates an empty store. A nil now means time.Now.
func NewStore(now func() time.Time, log zerolog.Logger) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		log:          log.With().Str("component", "devgateway").Logger(),
		now:          now,
		exams:        make(map[uuid.UUID]*seededExam),
		attempts:     make(map[uuid.UUID]*attemptState),
		activeByExam: make(map[uuid.UUID]uuid.UUID),
		usedByExam:   make(map[uuid.UUID]int),
	}
}

// AddExam registers a seeded exam. Missing ids are generated.
func (s *Store) AddExam(seed ExamSeed) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	exam := seed.Exam
	if exam.ID == uuid.Nil {
		exam.ID = uuid.New()
	}
	key := make(map[uuid.UUID]string, len(seed.AnswerKey))
	for i := range exam.Questions {
		if exam.Questions[i].ID == uuid.Nil {
			exam.Questions[i].ID = uuid.New()
		}
		if correct, ok := seed.AnswerKey[exam.Questions[i].Text]; ok {
			key[exam.Questions[i].ID] = correct
		}
	}
	// Seeds may key the answer map by question id instead of text.
	for raw, correct := range seed.AnswerKey {
		if qid, err := uuid.Parse(raw); err == nil {
			key[qid] = correct
		}
	}

	s.exams[exam.ID] = &seededExam{exam: exam, answerKey: key}
	s.log.Info().Str("exam_id", exam.ID.String()).Str("title", exam.Title).Msg("Exam seeded")
	return exam.ID
}

// ExamView returns the exam with the caller's assignment overlay.
func (s *Store) ExamView(examID uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	se, ok := s.exams[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	s.expireOverdueLocked(examID)

	view := se.exam
	view.Questions = append([]model.Question(nil), se.exam.Questions...)

	_, hasActive := s.activeByExam[examID]
	status := model.AssignmentNotStarted
	switch {
	case hasActive:
		status = model.AssignmentStarted
	case s.usedByExam[examID] > 0:
		status = model.AssignmentCompleted
	}
	view.Assignment = &model.Assignment{
		Status:           status,
		AttemptsCount:    s.usedByExam[examID],
		HasActiveAttempt: hasActive,
	}
	return &view, nil
}

// ActiveAttempt returns the in-progress attempt and its recorded
// answers, expiring it first when overdue.
func (s *Store) ActiveAttempt(examID uuid.UUID) (*model.ActiveAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exams[examID]; !ok {
		return nil, ErrExamNotFound
	}
	s.expireOverdueLocked(examID)

	attemptID, ok := s.activeByExam[examID]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	st := s.attempts[attemptID]

	attempt := st.attempt
	answers := make([]model.Answer, 0, len(st.answers))
	for _, a := range st.answers {
		answers = append(answers, a)
	}
	return &model.ActiveAttempt{Attempt: &attempt, Answers: answers}, nil
}

// StartAttempt creates a fresh in-progress attempt. It refuses when one
// is already active or when the max-attempts limit is spent.
func (s *Store) StartAttempt(examID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	se, ok := s.exams[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	s.expireOverdueLocked(examID)

	if _, active := s.activeByExam[examID]; active {
		return nil, ErrAttemptActive
	}
	if se.exam.MaxAttempts > 0 && s.usedByExam[examID] >= se.exam.MaxAttempts {
		return nil, ErrMaxAttempts
	}

	now := s.now().UTC()
	attempt := model.Attempt{
		ID:        uuid.New(),
		ExamID:    examID,
		Status:    model.AttemptInProgress,
		StartedAt: now,
	}
	if limit, ok := se.exam.TimeLimit(); ok {
		expires := now.Add(limit)
		attempt.ExpiresAt = &expires
	}

	s.attempts[attempt.ID] = &attemptState{
		attempt: attempt,
		answers: make(map[uuid.UUID]model.Answer),
	}
	s.activeByExam[examID] = attempt.ID
	s.log.Info().Str("attempt_id", attempt.ID.String()).Str("exam_id", examID.String()).Msg("Attempt started")

	cp := attempt
	return &cp, nil
}

// SaveAnswers upserts answers on an in-progress attempt. The batch may
// be empty; that is a valid no-op save.
func (s *Store) SaveAnswers(attemptID uuid.UUID, answers []model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.attempts[attemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	s.expireOverdueLocked(st.attempt.ExamID)

	switch st.attempt.Status {
	case model.AttemptCompleted:
		return ErrAttemptCompleted
	case model.AttemptExpired:
		// Accept writes on an expired-but-ungraded attempt so the
		// client's auto-submit still lands its final batch.
	}

	se := s.exams[st.attempt.ExamID]
	known := make(map[uuid.UUID]bool, len(se.exam.Questions))
	for _, q := range se.exam.Questions {
		known[q.ID] = true
	}
	for _, a := range answers {
		if !known[a.QuestionID] {
			return ErrQuestionNotInExam
		}
	}
	for _, a := range answers {
		st.answers[a.QuestionID] = a
	}
	return nil
}

// Grade finalizes an attempt: scores the recorded answers on the 0-20
// scale, marks the attempt completed and frees the active slot.
func (s *Store) Grade(attemptID uuid.UUID) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if st.attempt.Status == model.AttemptCompleted {
		return nil, ErrAttemptCompleted
	}

	se := s.exams[st.attempt.ExamID]
	result := scoreAttempt(se, st.answers)
	st.result = &result
	st.attempt.Status = model.AttemptCompleted

	if s.activeByExam[st.attempt.ExamID] == attemptID {
		delete(s.activeByExam, st.attempt.ExamID)
	}
	s.usedByExam[st.attempt.ExamID]++

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Float64("score", result.Score).
		Bool("passed", result.Passed).
		Msg("Attempt graded")
	cp := result
	return &cp, nil
}

// expireOverdueLocked flips an overdue in-progress attempt to expired
// and frees the active slot. Expired attempts do not count against the
// max-attempts limit.
func (s *Store) expireOverdueLocked(examID uuid.UUID) {
	attemptID, ok := s.activeByExam[examID]
	if !ok {
		return
	}
	st := s.attempts[attemptID]
	if st.attempt.ExpiresAt == nil || s.now().Before(*st.attempt.ExpiresAt) {
		return
	}
	st.attempt.Status = model.AttemptExpired
	delete(s.activeByExam, examID)
	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Attempt expired")
}

// scoreAttempt grades choice questions against the answer key.
// Short-answer questions count toward the total but earn nothing; the
// dev gateway does not pretend to grade free text.
func scoreAttempt(se *seededExam, answers map[uuid.UUID]model.Answer) model.Result {
	var total, earned float64
	for _, q := range se.exam.Questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		total += points

		a, ok := answers[q.ID]
		if !ok || !q.IsChoice() || a.SelectedOptionID == nil {
			continue
		}
		if correct, has := se.answerKey[q.ID]; has && *a.SelectedOptionID == correct {
			earned += points
		}
	}

	result := model.Result{}
	if total > 0 {
		result.Percentage = math.Round(earned/total*10000) / 100
		result.Score = math.Round(earned/total*2000) / 100
	}
	if se.exam.PassingScore != nil {
		result.Passed = result.Score >= *se.exam.PassingScore
	} else {
		result.Passed = true
	}
	return result
}
