package devgateway

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rs/zerolog"
)

type testEnv struct {
	store  *Store
	examID uuid.UUID
	now    time.Time
}

func newTestEnv(t *testing.T, seed ExamSeed) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	env.store = NewStore(func() time.Time { return env.now }, zerolog.Nop())
	env.examID = env.store.AddExam(seed)
	return env
}

func (e *testEnv) mustStart(t *testing.T) *model.Attempt {
	t.Helper()
	attempt, err := e.store.StartAttempt(e.examID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	return attempt
}

func (e *testEnv) question(t *testing.T, i int) model.Question {
	t.Helper()
	view, err := e.store.ExamView(e.examID)
	if err != nil {
		t.Fatalf("ExamView: %v", err)
	}
	return view.Questions[i]
}

func TestStartAttemptConflicts(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	env.mustStart(t)

	if _, err := env.store.StartAttempt(env.examID); !errors.Is(err, ErrAttemptActive) {
		t.Fatalf("err = %v, want ErrAttemptActive", err)
	}
}

func TestMaxAttemptsEnforced(t *testing.T) {
	seed := SampleSeed() // MaxAttempts: 2
	env := newTestEnv(t, seed)

	for i := 0; i < 2; i++ {
		attempt := env.mustStart(t)
		if _, err := env.store.Grade(attempt.ID); err != nil {
			t.Fatalf("Grade %d: %v", i, err)
		}
	}
	if _, err := env.store.StartAttempt(env.examID); !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("err = %v, want ErrMaxAttempts", err)
	}
}

func TestLazyExpiryFreesActiveSlot(t *testing.T) {
	env := newTestEnv(t, SampleSeed()) // 30-minute limit
	first := env.mustStart(t)

	env.now = env.now.Add(31 * time.Minute)

	if _, err := env.store.ActiveAttempt(env.examID); !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("err = %v, want ErrNoActiveAttempt after expiry", err)
	}

	// The slot is free again, and the expired attempt did not consume one.
	second := env.mustStart(t)
	if second.ID == first.ID {
		t.Fatal("expired slot must yield a fresh attempt")
	}
	view, err := env.store.ExamView(env.examID)
	if err != nil {
		t.Fatalf("ExamView: %v", err)
	}
	if view.Assignment.AttemptsCount != 0 {
		t.Fatalf("attempts_count = %d, want 0 (expiry is not completion)", view.Assignment.AttemptsCount)
	}
}

func TestSaveAnswersOnExpiredAttemptStillLands(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)
	q := env.question(t, 0)

	env.now = env.now.Add(31 * time.Minute)

	// The client's auto-submit batch arrives just after expiry; it must
	// not be rejected, so the grade reflects the final working copy.
	opt := "a"
	err := env.store.SaveAnswers(attempt.ID, []model.Answer{{QuestionID: q.ID, SelectedOptionID: &opt}})
	if err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	result, err := env.store.Grade(attempt.ID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score == 0 {
		t.Fatalf("score = %v, want credit for the late batch", result.Score)
	}
}

func TestSaveAnswersRejectsForeignQuestion(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)

	opt := "a"
	err := env.store.SaveAnswers(attempt.ID, []model.Answer{{QuestionID: uuid.New(), SelectedOptionID: &opt}})
	if !errors.Is(err, ErrQuestionNotInExam) {
		t.Fatalf("err = %v, want ErrQuestionNotInExam", err)
	}
}

func TestEmptyBatchIsValid(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)

	if err := env.store.SaveAnswers(attempt.ID, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestGradeScoresOnTwentyScale(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)

	// Sample seed: q1 (2 pts, correct "a"), q2 (1 pt, correct "true"),
	// q3 (2 pts, short answer, never auto-credited). Answering q1 and q2
	// correctly earns 3 of 5 points: 60% and 12/20.
	q1, q2 := env.question(t, 0), env.question(t, 1)
	optA, optTrue := "a", model.TrueFalseTrue
	err := env.store.SaveAnswers(attempt.ID, []model.Answer{
		{QuestionID: q1.ID, SelectedOptionID: &optA},
		{QuestionID: q2.ID, SelectedOptionID: &optTrue},
	})
	if err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	result, err := env.store.Grade(attempt.ID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 12 || result.Percentage != 60 {
		t.Fatalf("result = %+v, want score 12, percentage 60", result)
	}
	if !result.Passed { // passing score is 11
		t.Fatal("12/20 should pass an 11/20 threshold")
	}
}

func TestGradeIsFinal(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)
	q := env.question(t, 0)

	if _, err := env.store.Grade(attempt.ID); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if _, err := env.store.Grade(attempt.ID); !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("second grade = %v, want ErrAttemptCompleted", err)
	}
	opt := "a"
	err := env.store.SaveAnswers(attempt.ID, []model.Answer{{QuestionID: q.ID, SelectedOptionID: &opt}})
	if !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("save after grade = %v, want ErrAttemptCompleted", err)
	}
}

func TestExamViewAssignmentOverlay(t *testing.T) {
	env := newTestEnv(t, SampleSeed())

	view, _ := env.store.ExamView(env.examID)
	if view.Assignment.Status != model.AssignmentNotStarted {
		t.Fatalf("status = %s, want not_started", view.Assignment.Status)
	}

	attempt := env.mustStart(t)
	view, _ = env.store.ExamView(env.examID)
	if view.Assignment.Status != model.AssignmentStarted || !view.Assignment.HasActiveAttempt {
		t.Fatalf("assignment = %+v, want started with active attempt", view.Assignment)
	}

	if _, err := env.store.Grade(attempt.ID); err != nil {
		t.Fatalf("Grade: %v", err)
	}
	view, _ = env.store.ExamView(env.examID)
	if view.Assignment.Status != model.AssignmentCompleted || view.Assignment.AttemptsCount != 1 {
		t.Fatalf("assignment = %+v, want completed with one attempt", view.Assignment)
	}
}

func TestActiveAttemptReturnsRecordedAnswers(t *testing.T) {
	env := newTestEnv(t, SampleSeed())
	attempt := env.mustStart(t)
	q := env.question(t, 0)

	opt := "b"
	if err := env.store.SaveAnswers(attempt.ID, []model.Answer{{QuestionID: q.ID, SelectedOptionID: &opt}}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	active, err := env.store.ActiveAttempt(env.examID)
	if err != nil {
		t.Fatalf("ActiveAttempt: %v", err)
	}
	if active.Attempt.ID != attempt.ID {
		t.Fatalf("attempt = %s, want %s", active.Attempt.ID, attempt.ID)
	}
	if len(active.Answers) != 1 || *active.Answers[0].SelectedOptionID != "b" {
		t.Fatalf("answers = %+v", active.Answers)
	}
}

func TestAddExamKeysAnswerKeyByQuestionID(t *testing.T) {
	qid := uuid.New()
	seed := ExamSeed{
		Exam: model.Exam{
			Title: "Por id",
			Questions: []model.Question{{
				ID: qid, Text: "pregunta", QuestionType: model.QuestionTypeMultipleChoice, Points: 1, Order: 1,
				Options: []model.Option{{ID: "x", Text: "X", Order: 1}},
			}},
		},
		AnswerKey: map[string]string{qid.String(): "x"},
	}
	env := newTestEnv(t, seed)
	attempt := env.mustStart(t)

	opt := "x"
	if err := env.store.SaveAnswers(attempt.ID, []model.Answer{{QuestionID: qid, SelectedOptionID: &opt}}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	result, err := env.store.Grade(attempt.ID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 20 {
		t.Fatalf("score = %v, want 20", result.Score)
	}
}
