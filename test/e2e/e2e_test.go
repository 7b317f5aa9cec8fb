//go:build e2e

package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/devgateway"
	"github.com/rpsoft/examflow/internal/gateway"
	"github.com/rpsoft/examflow/internal/middleware"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/session"
	"github.com/rpsoft/examflow/internal/snapshot"
	"github.com/rpsoft/examflow/internal/validator"
	"github.com/rs/zerolog"
)

const jwtSecret = "e2e-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type env struct {
	srv    *httptest.Server
	gw     *gateway.Client
	store  snapshot.Store
	examID uuid.UUID
}

func setup(t *testing.T, seed devgateway.ExamSeed) *env {
	t.Helper()

	cfg := &config.Config{
		GinMode:   gin.TestMode,
		JWTSecret: jwtSecret,
		JWTExpiry: time.Hour,
	}
	store := devgateway.NewStore(nil, zerolog.Nop())
	examID := store.AddExam(seed)

	router := devgateway.SetupRouter(devgateway.NewHandler(store, zerolog.Nop()), cfg)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, err := middleware.IssueToken(jwtSecret, "e2e-user", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	fileStore, err := snapshot.NewFileStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	return &env{
		srv:    srv,
		gw:     gateway.NewClient(srv.URL+"/api", token, 5*time.Second, zerolog.Nop()),
		store:  fileStore,
		examID: examID,
	}
}

func (e *env) controller(t *testing.T) *session.Controller {
	t.Helper()
	ctrl := session.NewController(e.examID, e.gw, e.store, nil, 0, zerolog.Nop())
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestLifecycleAgainstGateway(t *testing.T) {
	e := setup(t, devgateway.SampleSeed())
	ctx := context.Background()

	ctrl := e.controller(t)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := ctrl.State(); got != session.StateActive {
		t.Fatalf("state = %s, want active", got)
	}

	exam := ctrl.Exam()
	remaining, ok := ctrl.Remaining()
	if !ok || remaining <= 29*time.Minute || remaining > 30*time.Minute {
		t.Fatalf("remaining = %v, want just under 30m", remaining)
	}

	// Answer the two choice questions correctly.
	optA := "a"
	if err := ctrl.SetAnswer(exam.Questions[0].ID, &optA, ""); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	optTrue := model.TrueFalseTrue
	if err := ctrl.SetAnswer(exam.Questions[1].ID, &optTrue, ""); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := ctrl.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	result := ctrl.Result()
	if result == nil || result.Score != 12 || !result.Passed {
		t.Fatalf("result = %+v, want 12/20 passed", result)
	}

	// The local snapshot is gone once the attempt is graded.
	if snap, _ := e.store.Load(ctx, e.examID); snap != nil {
		t.Fatalf("snapshot = %+v, want cleared", snap)
	}
}

func TestResumeAcrossControllers(t *testing.T) {
	e := setup(t, devgateway.SampleSeed())
	ctx := context.Background()

	// First session starts the attempt and records an answer.
	first := e.controller(t)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	attemptID := first.Attempt().ID
	exam := first.Exam()
	optA := "a"
	if err := first.SetAnswer(exam.Questions[0].ID, &optA, ""); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := first.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	first.Close()

	// A second session (same user, new process) resumes the same
	// attempt from the server, answers included.
	second := e.controller(t)
	resumed := make(chan session.Event, 1)
	go func() {
		for ev := range second.Events() {
			if ev.Kind == session.EventResumed {
				resumed <- ev
				return
			}
		}
	}()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := second.Attempt().ID; got != attemptID {
		t.Fatalf("resumed attempt = %s, want %s", got, attemptID)
	}
	select {
	case ev := <-resumed:
		if ev.Source != session.ResumeServer {
			t.Fatalf("resume source = %s, want server", ev.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no resume event")
	}
	answers := second.Answers()
	if a, ok := answers[exam.Questions[0].ID]; !ok || a.SelectedOptionID == nil || *a.SelectedOptionID != "a" {
		t.Fatalf("answers = %+v, want the saved answer back", answers)
	}

	if err := second.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if second.Result() == nil {
		t.Fatal("no result after submit")
	}
}

func TestSecondStartIsRefusedUntilGraded(t *testing.T) {
	e := setup(t, devgateway.SampleSeed())
	ctx := context.Background()

	ctrl := e.controller(t)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	attemptID := ctrl.Attempt().ID

	// A direct start against the gateway conflicts, and the start-path
	// fallback adopts the existing attempt instead.
	if _, err := e.gw.StartAttempt(ctx, e.examID); !gateway.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}

	other := e.controller(t)
	if err := other.Start(ctx); err != nil {
		t.Fatalf("other Start: %v", err)
	}
	if got := other.Attempt().ID; got != attemptID {
		t.Fatalf("other session attempt = %s, want shared %s", got, attemptID)
	}
}

func TestAttemptsExhaustedBlocksEntry(t *testing.T) {
	seed := devgateway.SampleSeed()
	seed.MaxAttempts = 1
	e := setup(t, seed)
	ctx := context.Background()

	ctrl := e.controller(t)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// A fresh session on the spent assignment never gets in.
	blocked := e.controller(t)
	if err := blocked.Start(ctx); err == nil {
		t.Fatal("Start should be refused once attempts are spent")
	}
	if got := blocked.State(); got != session.StateBlocked {
		t.Fatalf("state = %s, want blocked", got)
	}
	if blocked.BlockedReason() == "" {
		t.Fatal("blocked state must carry a reason")
	}
}
