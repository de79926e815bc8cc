// Package scrape provides the HTTP session and HTML helpers shared by the
// judge clients.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "cpsync/1.0 (+https://github.com/me/cpsync)"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// Config holds settings for a Session.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Pacing is the fixed delay Pause waits for.
	Pacing time.Duration

	// Timeout is the per-request timeout (0 means DefaultTimeout).
	Timeout time.Duration

	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// Session is a cookie-carrying HTTP client bound to one site.
// It is not safe for concurrent use; the sync engine is sequential.
type Session struct {
	baseURL   string
	pacing    time.Duration
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewSession creates a Session with an empty cookie jar.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Session{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		pacing:    cfg.Pacing,
		userAgent: ua,
		client:    &http.Client{Jar: jar, Timeout: timeout},
		logger:    logger.With("component", "http"),
	}, nil
}

// URL resolves a path against the base URL. Absolute URLs pass through.
func (s *Session) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

// Get fetches path and returns the response body as text.
func (s *Session) Get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(path), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	body, err := s.do(req)
	return string(body), err
}

// PostForm submits form values to path and returns the response body.
func (s *Session) PostForm(ctx context.Context, path string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL(path), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := s.do(req)
	return string(body), err
}

// GetJSON fetches path and decodes the JSON body into v.
func (s *Session) GetJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(path), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := s.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// Pause waits the fixed pacing interval, returning early if ctx is done.
func (s *Session) Pause(ctx context.Context) error {
	if s.pacing <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Session) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", s.userAgent)
	s.logger.Debug("HTTP request", "method", req.Method, "url", req.URL.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	s.logger.Debug("HTTP response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= 400 {
		return body, &HTTPError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
	}
	return body, nil
}
