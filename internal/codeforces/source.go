package codeforces

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/me/cpsync/internal/engine"
	"github.com/me/cpsync/internal/scrape"
	"github.com/me/cpsync/pkg/model"
)

// Source adapts a Client to the sync engine.
type Source struct {
	client     *Client
	includeGym bool
}

// NewSource returns an engine source. Authentication is only attempted
// when gym submissions are included, since regular submissions are public.
func NewSource(client *Client, includeGym bool) *Source {
	return &Source{client: client, includeGym: includeGym}
}

var _ engine.Source = (*Source)(nil)

func (s *Source) Platform() model.Platform { return model.PlatformCodeforces }
func (s *Source) Handle() string           { return s.client.Handle() }

// Repeatable is true: the operator may re-run the phase for failures.
func (s *Source) Repeatable() bool { return true }

func (s *Source) Authenticate(ctx context.Context) error {
	if !s.includeGym {
		return nil
	}
	ok, err := s.client.Login(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrAuthFailed
	}
	return nil
}

// Enumerate lists every submission of the handle, marking the ones that
// belong to gym contests.
func (s *Source) Enumerate(ctx context.Context) ([]model.Record, error) {
	gym, err := s.client.ContestIDs(ctx, true)
	if err != nil {
		return nil, err
	}
	subs, err := s.client.UserStatus(ctx, s.client.Handle())
	if err != nil {
		return nil, err
	}

	recs := make([]model.Record, 0, len(subs))
	for _, sub := range subs {
		if sub.ContestID == 0 {
			continue
		}
		recs = append(recs, model.NewCodeforcesSubmission(model.CodeforcesParams{
			Handle:       s.client.Handle(),
			SubmissionID: sub.ID,
			ContestID:    sub.ContestID,
			ProblemIndex: sub.Problem.Index,
			Language:     sub.ProgrammingLanguage,
			Verdict:      sub.Verdict,
			Gym:          gym[sub.ContestID],
			CreatedAt:    time.Unix(sub.CreationTimeSeconds, 0),
		}))
	}
	return recs, nil
}

func (s *Source) Fetch(ctx context.Context, rec model.Record) (engine.Payload, error) {
	cf, ok := rec.(model.CodeforcesSubmission)
	if !ok {
		return engine.Payload{}, fmt.Errorf("codeforces source cannot fetch %T", rec)
	}
	text, err := s.client.Source(ctx, cf.ContestID(), cf.SubmissionID(), cf.Gym())
	if scrape.IsNotFound(err) || scrape.IsForbidden(err) {
		return engine.Payload{}, fmt.Errorf("%w: %v", model.ErrSourceNotFound, err)
	}
	if err != nil {
		return engine.Payload{}, err
	}
	if text == "" {
		return engine.Payload{}, model.ErrSourceNotFound
	}
	return engine.Payload{Text: text}, nil
}

// Normalize keeps printable ASCII only and rewrites line breaks as "\n".
// The site occasionally embeds control bytes in the rendered source.
func (s *Source) Normalize(raw string) (string, error) {
	out := StripNonPrintable(raw)
	if strings.TrimSpace(out) == "" {
		return "", model.ErrEmptySource
	}
	return out, nil
}

// StripNonPrintable drops every byte outside printable ASCII and joins the
// remaining lines with "\n", without a trailing newline.
func StripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 0x20 && c <= 0x7e, c == '\t':
			b.WriteByte(c)
		case c == '\n', c == '\v', c == '\f':
			b.WriteByte('\n')
		case c == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				continue
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
