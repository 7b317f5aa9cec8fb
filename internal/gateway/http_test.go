package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/response"
	"github.com/rs/zerolog"
)

func envelope(data interface{}) string {
	raw, _ := json.Marshal(map[string]interface{}{"data": data})
	return string(raw)
}

func errEnvelope(code response.ErrCode, message string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"code": string(code), "message": message},
	})
	return string(raw)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, zerolog.Nop()), srv
}

func TestGetExamViewRequestShape(t *testing.T) {
	examID := uuid.New()
	var gotPath, gotAuth, gotMethod string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		fmt.Fprint(w, envelope(model.Exam{ID: examID, Title: "Prueba"}))
	})

	exam, err := client.GetExamView(context.Background(), examID)
	if err != nil {
		t.Fatalf("GetExamView: %v", err)
	}
	if exam.ID != examID || exam.Title != "Prueba" {
		t.Fatalf("exam = %+v", exam)
	}
	if want := fmt.Sprintf("/exams/%s/view/", examID); gotPath != want {
		t.Fatalf("path = %s, want %s", gotPath, want)
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("method = %s, want GET", gotMethod)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("auth = %q", gotAuth)
	}
}

func TestErrorEnvelopeBecomesTypedError(t *testing.T) {
	examID := uuid.New()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, errEnvelope(response.ErrNoAttemptsLeft, "Ya completaste el número máximo de intentos."))
	})

	_, err := client.StartAttempt(context.Background(), examID)
	ge, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if ge.Status != http.StatusForbidden || ge.Code != response.ErrNoAttemptsLeft {
		t.Fatalf("error = %+v", ge)
	}
	if got := UserMessage(err, "fallback"); got != "Ya completaste el número máximo de intentos." {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestErrorWithoutEnvelopeFallsBackToInternal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	})

	_, err := client.GetExamView(context.Background(), uuid.New())
	ge, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if ge.Status != http.StatusBadGateway || ge.Code != response.ErrInternal {
		t.Fatalf("error = %+v", ge)
	}
}

func TestGetActiveAttemptWrappedShape(t *testing.T) {
	examID := uuid.New()
	attemptID := uuid.New()
	opt := "a"

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(model.ActiveAttempt{
			Attempt: &model.Attempt{ID: attemptID, ExamID: examID, Status: model.AttemptInProgress, StartedAt: time.Now().UTC()},
			Answers: []model.Answer{{QuestionID: uuid.New(), SelectedOptionID: &opt}},
		}))
	})

	active, err := client.GetActiveAttempt(context.Background(), examID)
	if err != nil {
		t.Fatalf("GetActiveAttempt: %v", err)
	}
	if active.Attempt.ID != attemptID || len(active.Answers) != 1 {
		t.Fatalf("active = %+v", active)
	}
}

func TestGetActiveAttemptBareShape(t *testing.T) {
	examID := uuid.New()
	attemptID := uuid.New()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(model.Attempt{
			ID: attemptID, ExamID: examID, Status: model.AttemptInProgress, StartedAt: time.Now().UTC(),
		}))
	})

	active, err := client.GetActiveAttempt(context.Background(), examID)
	if err != nil {
		t.Fatalf("GetActiveAttempt: %v", err)
	}
	if active.Attempt == nil || active.Attempt.ID != attemptID {
		t.Fatalf("active = %+v", active)
	}
}

func TestGetActiveAttemptNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, errEnvelope(response.ErrNoActiveAttempt, "No tienes un intento en curso."))
	})

	_, err := client.GetActiveAttempt(context.Background(), uuid.New())
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestSaveAnswersBatchPayload(t *testing.T) {
	attemptID := uuid.New()
	questionID := uuid.New()
	var gotPath string
	var gotBody struct {
		Answers []model.Answer `json:"answers"`
	}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, envelope(map[string]int{"saved": len(gotBody.Answers)}))
	})

	opt := "b"
	err := client.SaveAnswersBatch(context.Background(), attemptID, []model.Answer{
		{QuestionID: questionID, SelectedOptionID: &opt},
	})
	if err != nil {
		t.Fatalf("SaveAnswersBatch: %v", err)
	}
	if want := fmt.Sprintf("/exam-attempts/%s/answers/batch/", attemptID); gotPath != want {
		t.Fatalf("path = %s, want %s", gotPath, want)
	}
	if len(gotBody.Answers) != 1 || gotBody.Answers[0].QuestionID != questionID {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestEmptyBatchStillPosts(t *testing.T) {
	var posted bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		posted = true
		fmt.Fprint(w, envelope(map[string]int{"saved": 0}))
	})

	if err := client.SaveAnswersBatch(context.Background(), uuid.New(), []model.Answer{}); err != nil {
		t.Fatalf("SaveAnswersBatch: %v", err)
	}
	if !posted {
		t.Fatal("empty batch must still reach the server")
	}
}

func TestGradeAttemptDecodesResult(t *testing.T) {
	attemptID := uuid.New()
	var gotPath string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, envelope(model.Result{Score: 16.5, Percentage: 82.5, Passed: true}))
	})

	result, err := client.GradeAttempt(context.Background(), attemptID)
	if err != nil {
		t.Fatalf("GradeAttempt: %v", err)
	}
	if result.Score != 16.5 || !result.Passed {
		t.Fatalf("result = %+v", result)
	}
	if want := fmt.Sprintf("/exam-attempts/%s/grade/", attemptID); gotPath != want {
		t.Fatalf("path = %s, want %s", gotPath, want)
	}
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL, "", time.Second, zerolog.Nop())
	_, err := client.GetExamView(context.Background(), uuid.New())
	ge, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if ge.Status != 0 {
		t.Fatalf("status = %d, want 0 for transport failure", ge.Status)
	}
	if IsNotFound(err) || IsConflict(err) {
		t.Fatal("transport failure must not classify as not-found or conflict")
	}
}
