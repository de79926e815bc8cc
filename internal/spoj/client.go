// Package spoj reads accepted submissions from a SPOJ account.
package spoj

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

// DefaultBaseURL is the production site.
const DefaultBaseURL = "https://www.spoj.com"

// Config holds SPOJ client configuration.
type Config struct {
	BaseURL  string
	Handle   string
	Password string

	// Pacing is the fixed delay after each authenticated page fetch.
	Pacing  time.Duration
	Timeout time.Duration
}

// DefaultConfig returns configuration pointing at spoj.com.
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

// Client is an authenticated SPOJ session.
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
		logger:   logger.With("component", "spoj"),
	}, nil
}

// Handle returns the account name.
func (c *Client) Handle() string {
	return c.handle
}

// Login posts the credentials and reports whether the account page stopped
// offering a login link.
func (c *Client) Login(ctx context.Context) (bool, error) {
	form := url.Values{
		"next_raw":   {"/"},
		"autologin":  {"1"},
		"login_user": {c.handle},
		"password":   {c.password},
	}
	if _, err := c.session.PostForm(ctx, "/", form); err != nil {
		return false, fmt.Errorf("submit login form: %w", err)
	}

	page, err := c.page(ctx, "/myaccount")
	if err != nil {
		return false, fmt.Errorf("load account page: %w", err)
	}
	doc, err := scrape.Parse(page)
	if err != nil {
		return false, err
	}
	ok := scrape.Find(doc, scrape.Tag("a", "href", "/login")) == nil
	c.logger.Debug("login", "handle", c.handle, "ok", ok)
	return ok, nil
}

// HistoryEntry is one solved problem listed on the account page.
type HistoryEntry struct {
	ProblemCode string
	Path        string
}

// History lists the solved problems on the account page. Each link looks
// like /status/<CODE>,<handle>/; links without a problem code are skipped.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	page, err := c.page(ctx, "/myaccount")
	if err != nil {
		return nil, fmt.Errorf("%w: load account page: %v", model.ErrEnumeration, err)
	}
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, err
	}

	tables := scrape.Find(doc, scrape.ID("user-profile-tables"))
	if tables == nil {
		return nil, fmt.Errorf("%w: account page has no problem table", model.ErrEnumeration)
	}
	table := scrape.Find(tables, scrape.Tag("table"))
	if table == nil {
		return nil, fmt.Errorf("%w: account page has no problem table", model.ErrEnumeration)
	}

	var entries []HistoryEntry
	for _, td := range scrape.FindAll(table, scrape.Tag("td")) {
		a := scrape.Find(td, scrape.Tag("a", "href", "*"))
		if a == nil {
			continue
		}
		href := scrape.Attr(a, "href")
		code, ok := ProblemCodeFromLink(href)
		if !ok {
			continue
		}
		entries = append(entries, HistoryEntry{ProblemCode: code, Path: href})
	}
	return entries, nil
}

// ProblemCodeFromLink extracts CODE from /status/CODE,handle/.
func ProblemCodeFromLink(href string) (string, bool) {
	parts := strings.Split(href, "/")
	if len(parts) < 3 {
		return "", false
	}
	fields := strings.Split(parts[2], ",")
	if len(fields) == 1 || fields[0] == "" {
		return "", false
	}
	return fields[0], true
}

// EditPage is the edit-source page of one submission.
type EditPage struct {
	SubmissionID string
	Language     string
	Raw          string
}

// EditPage follows a history link to the submission's edit-source page.
func (c *Client) EditPage(ctx context.Context, historyPath string) (*EditPage, error) {
	page, err := c.page(ctx, historyPath)
	if err != nil {
		return nil, err
	}
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, err
	}
	edit := scrape.Find(doc, scrape.Tag("a", "title", "Edit source code"))
	if edit == nil {
		return nil, fmt.Errorf("%w: no edit link on %s", model.ErrSourceNotFound, historyPath)
	}
	editHref := scrape.Attr(edit, "href")

	raw, err := c.page(ctx, editHref)
	if err != nil {
		return nil, err
	}
	_, subID, _ := strings.Cut(editHref, "=")

	doc, err = scrape.Parse(raw)
	if err != nil {
		return nil, err
	}
	var language string
	if opt := scrape.Find(doc, scrape.Tag("option", "selected", "*")); opt != nil {
		language = strings.TrimSpace(scrape.Text(opt))
	}
	return &EditPage{SubmissionID: subID, Language: language, Raw: raw}, nil
}

// page fetches an authenticated page and then waits the pacing interval.
func (c *Client) page(ctx context.Context, path string) (string, error) {
	body, err := c.session.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if err := c.session.Pause(ctx); err != nil {
		return "", err
	}
	return body, nil
}
