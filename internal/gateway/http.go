package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/response"
	"github.com/rs/zerolog"
)

// maxResponseBytes caps how much of a gateway response body is read.
const maxResponseBytes = 4 << 20

// Client is the HTTP implementation of Gateway. It speaks the standard
// envelope ({data, error, metadata}) and attaches a bearer token to
// every request.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a gateway client for the given API root.
func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// GetExamView fetches the exam descriptor for the caller.
func (c *Client) GetExamView(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("exams/%s/view/", examID), nil)
	if err != nil {
		return nil, err
	}
	var exam model.Exam
	if err := json.Unmarshal(data, &exam); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decodificando examen: %v", err)}
	}
	return &exam, nil
}

// GetActiveAttempt returns the caller's in-progress attempt with its
// recorded answers. Servers may reply with either the
// {active_attempt, answers} shape or a bare attempt object; both are
// tolerated.
func (c *Client) GetActiveAttempt(ctx context.Context, examID uuid.UUID) (*model.ActiveAttempt, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("exams/%s/active-attempt/", examID), nil)
	if err != nil {
		return nil, err
	}

	var active model.ActiveAttempt
	if err := json.Unmarshal(data, &active); err == nil && active.Attempt != nil {
		return &active, nil
	}

	var bare model.Attempt
	if err := json.Unmarshal(data, &bare); err == nil && bare.ID != uuid.Nil && bare.Status == model.AttemptInProgress {
		return &model.ActiveAttempt{Attempt: &bare}, nil
	}

	return nil, &Error{Status: http.StatusNotFound, Code: response.ErrNoActiveAttempt, Message: response.GetMessage(response.ErrNoActiveAttempt)}
}

// StartAttempt creates a fresh attempt on the exam.
func (c *Client) StartAttempt(ctx context.Context, examID uuid.UUID) (*model.Attempt, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("exams/%s/start/", examID), nil)
	if err != nil {
		return nil, err
	}
	var attempt model.Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decodificando intento: %v", err)}
	}
	return &attempt, nil
}

// SaveAnswer records a single answer on the attempt.
func (c *Client) SaveAnswer(ctx context.Context, attemptID uuid.UUID, answer model.Answer) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("exam-attempts/%s/answers/", attemptID), answer)
	return err
}

// SaveAnswersBatch records a set of answers on the attempt.
func (c *Client) SaveAnswersBatch(ctx context.Context, attemptID uuid.UUID, answers []model.Answer) error {
	payload := struct {
		Answers []model.Answer `json:"answers"`
	}{Answers: answers}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("exam-attempts/%s/answers/batch/", attemptID), payload)
	return err
}

// GradeAttempt finalizes the attempt and returns the result.
func (c *Client) GradeAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("exam-attempts/%s/grade/", attemptID), nil)
	if err != nil {
		return nil, err
	}
	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decodificando resultado: %v", err)}
	}
	return &result, nil
}

// do performs one request and returns the envelope's data payload.
// Non-2xx responses become typed *Error values carrying the remote
// error code and message when present.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("codificando solicitud: %v", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("error de red: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("leyendo respuesta: %v", err)}
	}

	var env struct {
		Data  json.RawMessage     `json:"data"`
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("respuesta no válida: %v", err)}
	}

	if resp.StatusCode >= 400 {
		ge := &Error{Status: resp.StatusCode, Code: response.ErrInternal, Message: response.GetMessage(response.ErrInternal)}
		if env.Error != nil {
			ge.Code = env.Error.Code
			ge.Message = env.Error.Message
		}
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("code", string(ge.Code)).
			Msg("Gateway call failed")
		return nil, ge
	}

	return env.Data, nil
}
