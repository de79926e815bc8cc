// Package codeforces talks to the Codeforces API and submission pages.
package codeforces

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/me/cpsync/internal/scrape"
	"github.com/me/cpsync/pkg/model"
)

// Default settings for the production site.
const (
	DefaultBaseURL = "https://codeforces.com"
	DefaultPacing  = 2 * time.Second
)

// Config holds Codeforces client configuration.
type Config struct {
	BaseURL  string
	Handle   string
	Password string

	// Pacing is the fixed delay after the login page and every submission page.
	Pacing  time.Duration
	Timeout time.Duration
}

// DefaultConfig returns configuration pointing at codeforces.com.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Pacing:  DefaultPacing,
	}
}

// Client is a Codeforces session for one handle.
type Client struct {
	session  *scrape.Session
	handle   string
	password string
	logger   *slog.Logger
}

// NewClient creates a client with a fresh cookie session.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s, err := scrape.NewSession(scrape.Config{
		BaseURL: cfg.BaseURL,
		Pacing:  cfg.Pacing,
		Timeout: cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		session:  s,
		handle:   cfg.Handle,
		password: cfg.Password,
		logger:   logger.With("component", "codeforces"),
	}, nil
}

// Handle returns the handle this client was created for.
func (c *Client) Handle() string {
	return c.handle
}

// Login signs in through the /enter form. It reports false when the form
// has no csrf token or the response still shows the handle field.
func (c *Client) Login(ctx context.Context) (bool, error) {
	page, err := c.session.Get(ctx, "/enter")
	if err != nil {
		return false, fmt.Errorf("load login page: %w", err)
	}
	if err := c.session.Pause(ctx); err != nil {
		return false, err
	}

	doc, err := scrape.Parse(page)
	if err != nil {
		return false, err
	}
	tokenInput := scrape.Find(doc, scrape.Tag("input", "name", "csrf_token"))
	if tokenInput == nil {
		c.logger.Warn("login form has no csrf token")
		return false, nil
	}

	form := url.Values{
		"handleOrEmail": {c.handle},
		"password":      {c.password},
		"csrf_token":    {scrape.Attr(tokenInput, "value")},
		"action":        {"enter"},
	}
	resp, err := c.session.PostForm(ctx, "/enter", form)
	if err != nil {
		return false, fmt.Errorf("submit login form: %w", err)
	}

	doc, err = scrape.Parse(resp)
	if err != nil {
		return false, err
	}
	ok := scrape.Find(doc, scrape.Tag("input", "name", "handleOrEmail")) == nil
	c.logger.Debug("login", "handle", c.handle, "ok", ok)
	return ok, nil
}

// apiResponse is the envelope every Codeforces API method returns.
type apiResponse[T any] struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  T      `json:"result"`
}

type apiContest struct {
	ID int64 `json:"id"`
}

type apiProblem struct {
	ContestID int64  `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
}

// APISubmission is one element of the user.status result.
type APISubmission struct {
	ID                  int64      `json:"id"`
	ContestID           int64      `json:"contestId"`
	CreationTimeSeconds int64      `json:"creationTimeSeconds"`
	Problem             apiProblem `json:"problem"`
	ProgrammingLanguage string     `json:"programmingLanguage"`
	Verdict             string     `json:"verdict"`
}

func checkStatus(method, status, comment string) error {
	if status == "OK" {
		return nil
	}
	if comment != "" {
		return fmt.Errorf("%w: %s: %s", model.ErrEnumeration, method, comment)
	}
	return fmt.Errorf("%w: %s returned status %q", model.ErrEnumeration, method, status)
}

// ContestIDs returns the ids of all regular contests, or of all gym
// contests when gym is true.
func (c *Client) ContestIDs(ctx context.Context, gym bool) (map[int64]bool, error) {
	var resp apiResponse[[]apiContest]
	path := fmt.Sprintf("/api/contest.list?gym=%t", gym)
	if err := c.session.GetJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("%w: contest.list: %v", model.ErrEnumeration, err)
	}
	if err := checkStatus("contest.list", resp.Status, resp.Comment); err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(resp.Result))
	for _, ct := range resp.Result {
		ids[ct.ID] = true
	}
	return ids, nil
}

// UserStatus returns every submission of handle, newest first.
func (c *Client) UserStatus(ctx context.Context, handle string) ([]APISubmission, error) {
	var resp apiResponse[[]APISubmission]
	path := "/api/user.status?handle=" + url.QueryEscape(handle)
	if err := c.session.GetJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("%w: user.status: %v", model.ErrEnumeration, err)
	}
	if err := checkStatus("user.status", resp.Status, resp.Comment); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SubmissionPath returns the page path of a submission.
func SubmissionPath(contestID, submissionID int64, gym bool) string {
	kind := "contest"
	if gym {
		kind = "gym"
	}
	return fmt.Sprintf("/%s/%d/submission/%d", kind, contestID, submissionID)
}

// Source fetches the submission page and returns the text of the source
// element with trailing whitespace removed. It returns "" without error
// when the element is absent, which is how the site answers for
// submissions the session may not view.
func (c *Client) Source(ctx context.Context, contestID, submissionID int64, gym bool) (string, error) {
	page, err := c.session.Get(ctx, SubmissionPath(contestID, submissionID, gym))
	if err != nil {
		return "", err
	}
	if err := c.session.Pause(ctx); err != nil {
		return "", err
	}

	doc, err := scrape.Parse(page)
	if err != nil {
		return "", err
	}
	node := scrape.Find(doc, scrape.ID("program-source-text"))
	if node == nil {
		return "", nil
	}
	return strings.TrimRight(scrape.Text(node), " \t\r\n\v\f"), nil
}
