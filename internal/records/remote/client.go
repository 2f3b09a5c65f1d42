// Package remote is the record store backed by an upstream server that
// exposes the same /api/activity endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/records"
)

const (
	defaultTimeout = 10 * time.Second
	baseBackoff    = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts for idempotent requests that
	// fail with a transport error or a 5xx status.
	Retries int
	// Token is sent as a bearer token when set.
	Token string
}

type Client struct {
	http    *http.Client
	base    string
	retries int
	token   string
	logger  *log.Logger
}

var _ records.Store = (*Client)(nil)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream returned %d", e.Status)
}

func New(cfg Config, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote API URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    strings.TrimRight(u.String(), "/"),
		retries: max(cfg.Retries, 0),
		token:   cfg.Token,
		logger:  logger.WithComponent(log.ComponentRemote),
	}, nil
}

func (c *Client) ListActivities(ctx context.Context, f records.Filter) ([]core.ActivityRecord, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Personnel != "" {
		q.Set("personnel", f.Personnel)
	}
	var out []core.ActivityRecord
	if err := c.do(ctx, http.MethodGet, "/api/activity", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if out == nil {
		out = []core.ActivityRecord{}
	}
	records.SortRecent(out)
	return out, nil
}

func (c *Client) GetActivity(ctx context.Context, id int64) (core.ActivityRecord, error) {
	var out core.ActivityRecord
	if err := c.do(ctx, http.MethodGet, activityPath(id), nil, nil, &out); err != nil {
		return core.ActivityRecord{}, fmt.Errorf("get activity %d: %w", id, err)
	}
	return out, nil
}

func (c *Client) CreateActivity(ctx context.Context, r core.ActivityRecord) (core.ActivityRecord, error) {
	var out core.ActivityRecord
	if err := c.do(ctx, http.MethodPost, "/api/activity", nil, r, &out); err != nil {
		return core.ActivityRecord{}, fmt.Errorf("create activity: %w", err)
	}
	return out, nil
}

func (c *Client) UpdateActivity(ctx context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error) {
	var out core.ActivityRecord
	if err := c.do(ctx, http.MethodPut, activityPath(id), nil, p, &out); err != nil {
		return core.ActivityRecord{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	return out, nil
}

func (c *Client) DeleteActivity(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, activityPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	return nil
}

func (c *Client) ListPersonnel(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/activity/personnel", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func activityPath(id int64) string {
	return "/api/activity/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempts := 1
	if method != http.MethodPost {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			c.logger.WarnContext(ctx, "Retrying upstream request",
				log.FieldMethod, method, log.FieldPath, path,
				"attempt", attempt+1, "wait_ms", wait.Milliseconds(),
				log.FieldError, lastErr.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err := c.once(ctx, method, target, payload, out)
		if err == nil || !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return records.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Message: e.Message}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
