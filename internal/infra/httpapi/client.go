// Package httpapi talks to the tracking server's REST API.
package httpapi

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
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/runoshun/tracksync/internal/domain"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// Client sends raw requests. It knows nothing about refresh or retries.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	log     domain.Logger
}

// NewClient creates a Client for baseURL. Paths are resolved relative to it.
func NewClient(baseURL string, timeout time.Duration, log domain.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https: %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: u,
		log:     log,
	}, nil
}

// Request is one outbound call.
// Fields are ordered to minimize memory padding.
type Request struct {
	Body   any // JSON-encoded when non-nil
	Query  url.Values
	Method string
	Path   string
	Token  string // Bearer token; omitted when empty
}

// Response is a fully read response.
type Response struct {
	Header http.Header
	Body   []byte
	Status int
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v, unwrapping a {"data": ...} envelope.
func (r *Response) Decode(v any) error {
	body := unwrapData(r.Body)
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrapData strips a top-level {"data": ...} envelope when it is the
// payload carrier (other keys such as "message" or "success" may sit beside it).
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	if data, ok := envelope["data"]; ok {
		return data
	}
	return trimmed
}

// Do sends req and reads the whole response. Non-2xx statuses are returned
// as responses, not errors. Transport failures wrap domain.ErrNetwork.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.baseURL.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("build url for %s: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Warn("gateway", fmt.Sprintf("%s %s: %v", req.Method, req.Path, err))
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, req.Method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrNetwork, err)
	}
	c.log.Debug("gateway", fmt.Sprintf("%s %s -> %d (%s)", req.Method, req.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond)))

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// APIError is a non-2xx response.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Unwrap maps a 401 onto domain.ErrSessionExpired.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return domain.ErrSessionExpired
	}
	return nil
}

// maxErrorMessage caps raw (non-JSON) error bodies kept in APIError, in bytes.
const maxErrorMessage = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// newAPIError builds an APIError from the server's error body, which may be
// {"message": ...}, {"error": ...} or {"error": {"message": ...}}.
func newAPIError(resp *Response) *APIError {
	apiErr := &APIError{Status: resp.Status}
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		apiErr.Message = truncate(strings.TrimSpace(string(resp.Body)), maxErrorMessage)
		return apiErr
	}
	apiErr.Message = body.Message
	if apiErr.Message == "" && len(body.Error) > 0 {
		var s string
		if json.Unmarshal(body.Error, &s) == nil {
			apiErr.Message = s
		} else {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body.Error, &nested) == nil {
				apiErr.Message = nested.Message
			}
		}
	}
	return apiErr
}

// Is matches domain.ErrAlreadyDone for a business error saying the action
// was already applied (e.g. "entry already submitted").
func (e *APIError) Is(target error) bool {
	if target != domain.ErrAlreadyDone {
		return false
	}
	if e.Status < 400 || e.Status >= 500 || e.Status == http.StatusUnauthorized {
		return false
	}
	return strings.Contains(strings.ToLower(e.Message), "already")
}

// IsAlreadyDone reports whether err is an already-applied business error,
// which callers treat as success.
func IsAlreadyDone(err error) bool {
	return errors.Is(err, domain.ErrAlreadyDone)
}
