package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Client is a thin HTTP client for the Task API. Authenticated calls
// attach the current session token as a Bearer credential; a 401 from
// any call is reported as ErrAuthRequired.
type Client struct {
	baseURL    string
	anonymous  *http.Client
	authorized *http.Client
	maxRetries int
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.anonymous.Timeout = d
		c.authorized.Timeout = d
	}
}

// WithMaxRetries sets how often a 429 response is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTransport replaces the base transport, e.g. for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.anonymous.Transport = rt
		c.authorized.Transport.(*oauth2.Transport).Base = rt
	}
}

// New creates a Task API client. tokens supplies the bearer token for
// every authenticated request; the session store implements it.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonymous: &http.Client{
			Timeout: 30 * time.Second,
		},
		authorized: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: sessionTokens{tokens}},
		},
		maxRetries: 3,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
// It returns the response status on success.
func (c *Client) do(
	ctx context.Context,
	authorized bool,
	method string,
	path string,
	body any,
	result any,
) (int, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, &RequestError{Method: method, Path: path, Err: fmt.Errorf("marshaling request body: %w", err)}
		}
		payload = data
	}

	httpClient := c.anonymous
	if authorized {
		httpClient = c.authorized
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return 0, &RequestError{Method: method, Path: path, Err: fmt.Errorf("creating request: %w", err)}
		}

		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := httpClient.Do(req)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				c.log.Debug().Str("method", method).Str("path", path).Msg("request cancelled")
				return 0, err
			case errors.Is(err, ErrAuthRequired):
				return 0, ErrAuthRequired
			}
			c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("request failed")
			return 0, &RequestError{Method: method, Path: path, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.log.Debug().
			Str("request_id", requestID).
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("api request")

		if readErr != nil {
			if errors.Is(readErr, context.Canceled) {
				return 0, readErr
			}
			return 0, &RequestError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", readErr)}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429)")

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, ErrAuthRequired
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode == http.StatusBadRequest {
				if verr := decodeValidation(respBody); verr != nil {
					return resp.StatusCode, verr
				}
			}
			text := strings.TrimSpace(string(respBody))
			return resp.StatusCode, &RequestError{
				Method: method,
				Path:   path,
				Status: resp.StatusCode,
				Body:   text,
				Err:    fmt.Errorf("unexpected status: %s", text),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
			return resp.StatusCode, nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, &RequestError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("unmarshaling response: %w", err)}
		}

		return resp.StatusCode, nil
	}

	return 0, &RequestError{
		Method: method,
		Path:   path,
		Status: http.StatusTooManyRequests,
		Err:    fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr),
	}
}

// sessionTokens marks token source failures as ErrAuthRequired so a call
// made without a session is treated like a 401.
type sessionTokens struct {
	src oauth2.TokenSource
}

// Token implements oauth2.TokenSource.
func (s sessionTokens) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return tok, nil
}

// decodeValidation extracts ASP.NET style validation problems:
// {"errors": {"Field": ["message", ...]}}. It returns nil when the body
// has no such object.
func decodeValidation(body []byte) *ValidationError {
	var problem struct {
		Errors  map[string][]string `json:"errors"`
		Message string              `json:"message"`
	}
	if err := json.Unmarshal(body, &problem); err != nil {
		// Some endpoints answer with a bare JSON string.
		var msg string
		if json.Unmarshal(body, &msg) == nil && msg != "" {
			return &ValidationError{Messages: []string{msg}}
		}
		return nil
	}

	var messages []string
	for _, field := range slices.Sorted(maps.Keys(problem.Errors)) {
		messages = append(messages, problem.Errors[field]...)
	}
	if len(messages) == 0 && problem.Message != "" {
		messages = []string{problem.Message}
	}
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
