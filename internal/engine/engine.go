// Package engine implements the submission sync state machine: enumerate
// the remote submissions, filter them against the ledger and the inclusion
// policy, fetch and write the survivors, and reconcile the ledger and
// error set.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/me/cpsync/internal/lang"
	"github.com/me/cpsync/internal/layout"
	"github.com/me/cpsync/internal/ledger"
	"github.com/me/cpsync/pkg/model"
)

// Filter holds the inclusion policy for Codeforces contest kinds.
type Filter struct {
	IncludeRegular bool
	IncludeGym     bool
}

// Options configures an Engine.
type Options struct {
	Layout layout.Options
	Filter Filter

	// Confirmer decides whether to repeat a phase with failures. Nil never repeats.
	Confirmer Confirmer

	// Recorder is an optional journal of runs.
	Recorder Recorder
}

// PhaseResult summarizes one pass over a platform.
type PhaseResult struct {
	RunID    string
	Platform model.Platform
	Handle   string
	State    model.PhaseState
	Written  int
	Skipped  int

	// Failed lists the distinct problem keys still failing at phase end.
	Failed []string
}

// Engine runs sync phases. It is single-threaded and holds no state
// between phases.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Engine.
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts, logger: logger.With("component", "engine")}
}

// Run executes the phase for src and repeats it while candidates failed,
// the source allows repeats, and the Confirmer agrees. It returns the
// result of every pass.
func (e *Engine) Run(ctx context.Context, src Source) ([]*PhaseResult, error) {
	var results []*PhaseResult
	for {
		res, err := e.RunPhase(ctx, src)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
		if len(res.Failed) == 0 || !src.Repeatable() || e.opts.Confirmer == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return results, model.ErrInterrupted
		}
		again := e.opts.Confirmer.ConfirmRepeat(ctx, src.Platform(), res.Failed)
		// A cancel while the operator was asked must not start another
		// pass: it would reset the error set that was just persisted.
		if ctx.Err() != nil {
			return results, model.ErrInterrupted
		}
		if !again {
			return results, nil
		}
		e.logger.Info("repeating phase", "platform", src.Platform(), "failed", len(res.Failed))
	}
}

// phase carries the explicit state of one RunPhase call.
type phase struct {
	e      *Engine
	src    Source
	sess   *ledger.Session
	res    *PhaseResult
	logger *slog.Logger

	// visited counts reconciled candidates.
	visited int
}

// RunPhase runs one enumerate, filter, fetch, write, reconcile pass.
//
// Auth and enumeration failures return a *model.PhaseError and leave the
// ledger file untouched. Cancellation persists whatever has been
// downloaded so far and returns model.ErrInterrupted.
func (e *Engine) RunPhase(ctx context.Context, src Source) (*PhaseResult, error) {
	platform, handle := src.Platform(), src.Handle()
	res := &PhaseResult{
		RunID:    "run_" + uuid.NewString(),
		Platform: platform,
		Handle:   handle,
		State:    model.PhaseIdle,
	}
	logger := e.logger.With("platform", platform, "handle", handle, "run_id", res.RunID)

	sess, err := ledger.Open(layout.HandleDir(e.opts.Layout.Root, platform, handle))
	if err != nil {
		res.State = model.PhaseAborted
		return res, &model.PhaseError{Platform: platform, Stage: model.PhaseIdle, Err: err}
	}
	sess.Errors.Reset()

	p := &phase{e: e, src: src, sess: sess, res: res, logger: logger}
	e.record(func(r Recorder) error { return r.StartRun(ctx, res.RunID, platform, handle) })

	err = p.run(ctx)
	res.Failed = sess.Errors.Keys()

	// The journal must be written even when ctx is already cancelled.
	finishCtx := context.WithoutCancel(ctx)
	e.record(func(r Recorder) error { return r.FinishRun(finishCtx, res.RunID, res, err) })

	if err != nil {
		logger.Warn("phase ended early", "state", res.State, "error", err)
	} else {
		logger.Info("phase complete", "written", res.Written, "skipped", res.Skipped, "failed", len(res.Failed))
	}
	return res, err
}

func (p *phase) transition(next model.PhaseState) {
	if !p.res.State.CanTransitionTo(next) {
		p.logger.Debug("unexpected phase transition", "from", p.res.State, "to", next)
	}
	p.res.State = next
}

func (p *phase) abort(stage model.PhaseState, err error) error {
	p.transition(model.PhaseAborted)
	return &model.PhaseError{Platform: p.src.Platform(), Stage: stage, Err: err}
}

func (p *phase) run(ctx context.Context) error {
	if err := p.src.Authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			return p.interrupt()
		}
		if !errors.Is(err, model.ErrAuthFailed) {
			err = fmt.Errorf("%w: %v", model.ErrAuthFailed, err)
		}
		return p.abort(model.PhaseIdle, err)
	}

	p.transition(model.PhaseEnumeratingRemote)
	recs, err := p.src.Enumerate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return p.interrupt()
		}
		if !errors.Is(err, model.ErrEnumeration) {
			err = fmt.Errorf("%w: %v", model.ErrEnumeration, err)
		}
		return p.abort(model.PhaseEnumeratingRemote, err)
	}
	p.logger.Debug("enumerated", "candidates", len(recs))

	for _, rec := range recs {
		if ctx.Err() != nil {
			return p.interrupt()
		}
		p.transition(model.PhaseFilteringCandidates)

		out := p.process(ctx, rec)
		if out.Status == model.OutcomeFailed && ctx.Err() != nil {
			// Cancellation surfaced inside the fetch; it is not a soft failure.
			return p.interrupt()
		}
		p.reconcile(ctx, out)
	}

	p.transition(model.PhaseIdle)
	if err := p.sess.Persist(); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// interrupt is the commit point on cancellation. Before any candidate
// was reconciled the files on disk are still the previous session's and
// are left alone.
func (p *phase) interrupt() error {
	p.transition(model.PhaseAborted)
	if p.visited == 0 {
		return model.ErrInterrupted
	}
	if p.sess.Downloaded.Len() > 0 || p.sess.Errors.Len() > 0 {
		if err := p.sess.Persist(); err != nil {
			p.logger.Error("persist ledger after interrupt", "error", err)
			return errors.Join(model.ErrInterrupted, err)
		}
	}
	return model.ErrInterrupted
}

// skipReason applies the filters in order: ledger first, so an already
// downloaded problem is never reported as an inclusion or verdict skip.
func (p *phase) skipReason(rec model.Record) (model.SkipReason, bool) {
	if p.sess.Downloaded.Has(rec.ProblemKey()) {
		return model.SkipAlreadyDownloaded, true
	}
	cf, ok := rec.(model.CodeforcesSubmission)
	if !ok {
		return "", false
	}
	f := p.e.opts.Filter
	if (cf.Gym() && !f.IncludeGym) || (!cf.Gym() && !f.IncludeRegular) {
		return model.SkipExcluded, true
	}
	if cf.Verdict() != model.VerdictAccepted {
		return model.SkipVerdict, true
	}
	return "", false
}

// process takes one candidate through filtering, fetching and writing and
// returns its outcome. It never panics the phase: every error becomes a
// failed outcome.
func (p *phase) process(ctx context.Context, rec model.Record) model.Outcome {
	if reason, skip := p.skipReason(rec); skip {
		return model.Skipped(rec, reason)
	}

	p.transition(model.PhaseFetching)
	p.logger.Info("downloading", "submission", rec.String())
	payload, err := p.src.Fetch(ctx, rec)
	if err != nil {
		return model.Failed(rec, err)
	}
	if payload.Record != nil {
		rec = payload.Record
	}

	text, err := p.src.Normalize(payload.Text)
	if err != nil {
		return model.Failed(rec, err)
	}

	p.transition(model.PhaseWriting)
	ext := lang.Resolve(rec.LanguageLabel(), rec.Table())
	if ext == "" {
		p.logger.Warn("unknown language, writing without extension", "problem", rec.ProblemKey(), "language", rec.LanguageLabel())
	}
	path := layout.Build(rec, ext, p.e.opts.Layout)
	if err := layout.Ensure(path); err != nil {
		return model.Failed(rec, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return model.Failed(rec, fmt.Errorf("write %s: %w", path, err))
	}
	return model.Written(rec, path)
}

func (p *phase) reconcile(ctx context.Context, out model.Outcome) {
	p.visited++
	key := out.Record.ProblemKey()
	switch out.Status {
	case model.OutcomeSkipped:
		p.res.Skipped++
		switch out.Skip {
		case model.SkipAlreadyDownloaded:
			p.logger.Info("already downloaded, skipping", "problem", key, "submission", out.Record.String())
		case model.SkipExcluded:
			p.logger.Info("contest kind excluded, skipping", "problem", key, "submission", out.Record.String())
		case model.SkipVerdict:
			verdict := ""
			if cf, ok := out.Record.(model.CodeforcesSubmission); ok {
				verdict = cf.RawVerdict()
			}
			p.logger.Info("not accepted, skipping", "problem", key, "verdict", verdict, "submission", out.Record.String())
		}
	case model.OutcomeWritten:
		p.transition(model.PhaseReconciling)
		p.res.Written++
		p.sess.Downloaded.Add(key)
		p.sess.Errors.Remove(key)
		p.logger.Debug("written", "problem", key, "path", out.Path)
	case model.OutcomeFailed:
		p.transition(model.PhaseReconciling)
		p.sess.Errors.Add(key)
		p.logger.Warn("download failed", "problem", key, "submission", out.Record.String(), "error", out.Err)
	}
	p.e.record(func(r Recorder) error { return r.RecordOutcome(ctx, p.res.RunID, out) })
}

func (e *Engine) record(fn func(Recorder) error) {
	if e.opts.Recorder == nil {
		return
	}
	if err := fn(e.opts.Recorder); err != nil {
		e.logger.Warn("history recorder failed", "error", err)
	}
}
