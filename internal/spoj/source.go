package spoj

import (
	"context"
	"fmt"
	"strings"

	"github.com/me/cpsync/internal/engine"
	"github.com/me/cpsync/pkg/model"
)

// Source adapts a Client to the sync engine. SPOJ always needs a login and
// the phase runs once per invocation.
type Source struct {
	client *Client
}

// NewSource returns an engine source for client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

var _ engine.Source = (*Source)(nil)

func (s *Source) Platform() model.Platform { return model.PlatformSPOJ }
func (s *Source) Handle() string           { return s.client.Handle() }
func (s *Source) Repeatable() bool         { return false }

func (s *Source) Authenticate(ctx context.Context) error {
	ok, err := s.client.Login(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrAuthFailed
	}
	return nil
}

// Enumerate lists the solved problems without visiting them; the ledger
// check then runs before any detail page is loaded.
func (s *Source) Enumerate(ctx context.Context) ([]model.Record, error) {
	entries, err := s.client.History(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]model.Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, model.NewSPOJSubmission(model.SPOJParams{
			Handle:      s.client.Handle(),
			ProblemCode: e.ProblemCode,
			HistoryPath: e.Path,
		}))
	}
	return recs, nil
}

// Fetch loads the edit page and returns it raw, with a record that carries
// the submission id and the selected language.
func (s *Source) Fetch(ctx context.Context, rec model.Record) (engine.Payload, error) {
	sp, ok := rec.(model.SPOJSubmission)
	if !ok {
		return engine.Payload{}, fmt.Errorf("spoj source cannot fetch %T", rec)
	}
	page, err := s.client.EditPage(ctx, sp.HistoryPath())
	if err != nil {
		return engine.Payload{}, err
	}
	return engine.Payload{
		Text: page.Raw,
		Record: model.NewSPOJSubmission(model.SPOJParams{
			Handle:       sp.Owner(),
			SubmissionID: page.SubmissionID,
			ProblemCode:  sp.ProblemKey(),
			Language:     page.Language,
			HistoryPath:  sp.HistoryPath(),
		}),
	}, nil
}

// Normalize extracts the textarea contents from the edit page.
func (s *Source) Normalize(raw string) (string, error) {
	src, err := ExtractSource(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(src) == "" {
		return "", model.ErrEmptySource
	}
	return src, nil
}
