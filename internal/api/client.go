// Package api is the HTTP client of the remote activity service. Every response is validated
// by the schema package before it is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/sia/internal/auth"
	"example.com/sia/internal/domain"
	"example.com/sia/internal/logger"
	"example.com/sia/internal/observability"
	"example.com/sia/internal/schema"
)

// Operation names used for errors, logs and metrics.
const (
	OpListActivities  = "list_activities"
	OpActivityDetails = "activity_details"
	OpCreateActivity  = "create_activity"
	OpStartActivity   = "start_activity"
	OpActivityItem    = "activity_item"
	OpSubmitAnswer    = "submit_answer"
	OpProfile         = "profile"
	OpSaveProfile     = "save_profile"
)

const maxErrorBody = 4 << 10

// Client talks to the activity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	log        *logger.Logger
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger overrides the logger used to report failed calls.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithTimeout sets a client-wide request timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewClient constructs a Client for the given base URL (e.g. http://host/api/v1).
func NewClient(baseURL string, tokens auth.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListActivities returns every activity of the current user.
func (c *Client) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	return call(ctx, c, OpListActivities, http.MethodGet, "/activities/", nil, schema.DecodeActivities)
}

// ActivityDetails returns an activity with its items and answers.
func (c *Client) ActivityDetails(ctx context.Context, activityID string) (domain.ActivityDetails, error) {
	path := fmt.Sprintf("/activities/%s/details", url.PathEscape(activityID))
	return call(ctx, c, OpActivityDetails, http.MethodGet, path, nil, schema.DecodeActivityDetails)
}

// CreateActivity asks the service to generate a new activity.
func (c *Client) CreateActivity(ctx context.Context) (domain.Activity, error) {
	return call(ctx, c, OpCreateActivity, http.MethodPost, "/activities/create", nil, schema.DecodeActivity)
}

// StartActivity moves an activity to ONGOING and returns its first open item.
func (c *Client) StartActivity(ctx context.Context, activityID string) (domain.ActivityItem, error) {
	path := fmt.Sprintf("/activities/%s/start", url.PathEscape(activityID))
	return call(ctx, c, OpStartActivity, http.MethodPost, path, nil, schema.DecodeActivityItem)
}

// ActivityItem fetches a single item by id.
func (c *Client) ActivityItem(ctx context.Context, activityID, itemID string) (domain.ActivityItem, error) {
	path := fmt.Sprintf("/activities/%s/items/%s", url.PathEscape(activityID), url.PathEscape(itemID))
	return call(ctx, c, OpActivityItem, http.MethodGet, path, nil, schema.DecodeActivityItem)
}

// SubmitAnswer records an attempt for an item.
func (c *Client) SubmitAnswer(ctx context.Context, activityID, itemID string, answer domain.AnswerCreate) (domain.AnswerResponse, error) {
	body, err := schema.EncodeAnswerCreate(answer)
	if err != nil {
		observability.RecordRequest(OpSubmitAnswer, observability.OutcomeValidation, 0)
		return domain.AnswerResponse{}, fmt.Errorf("%s: %w", OpSubmitAnswer, err)
	}
	path := fmt.Sprintf("/activities/%s/items/%s/answer", url.PathEscape(activityID), url.PathEscape(itemID))
	return call(ctx, c, OpSubmitAnswer, http.MethodPost, path, body, schema.DecodeAnswerResponse)
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	return call(ctx, c, OpProfile, http.MethodGet, "/profile/", nil, schema.DecodeProfile)
}

// SaveProfile replaces the current user's metadata wholesale.
func (c *Client) SaveProfile(ctx context.Context, meta domain.PatientMetadata) (domain.Profile, error) {
	body, err := schema.EncodePatientMetadata(meta)
	if err != nil {
		observability.RecordRequest(OpSaveProfile, observability.OutcomeValidation, 0)
		return domain.Profile{}, fmt.Errorf("%s: %w", OpSaveProfile, err)
	}
	return call(ctx, c, OpSaveProfile, http.MethodPut, "/profile/", body, schema.DecodeProfile)
}

func call[T any](ctx context.Context, c *Client, op, method, path string, body []byte, decode func([]byte) (T, error)) (T, error) {
	var zero T

	ctx, span := observability.Tracer().Start(ctx, "sia.api."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("sia.path", path))

	start := time.Now()
	data, err := c.do(ctx, op, method, path, body)
	if err != nil {
		observability.RecordRequest(op, outcome(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("activity service call failed", "operation", op, "path", path, "error", err)
		return zero, err
	}

	value, err := decode(data)
	if err != nil {
		observability.RecordRequest(op, observability.OutcomeValidation, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		c.log.Warn("activity service returned an invalid payload", "operation", op, "path", path, "error", err)
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	observability.RecordRequest(op, observability.OutcomeOK, time.Since(start))
	return value, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: credential: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Detail: errorDetail(raw)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return data, nil
}

// errorDetail extracts the "detail" message of an error body, falling back to the raw text.
func errorDetail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(raw))
}

func outcome(err error) string {
	var transport *TransportError
	var status *StatusError
	switch {
	case errors.As(err, &transport):
		return observability.OutcomeTransport
	case errors.Is(err, ErrNotFound):
		return observability.OutcomeNotFound
	case errors.As(err, &status):
		return observability.OutcomeStatus
	}
	return observability.OutcomeTransport
}
