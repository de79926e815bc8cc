package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/me/cpsync/internal/layout"
	"github.com/me/cpsync/internal/ledger"
	"github.com/me/cpsync/pkg/model"
)

// fakeSource serves a fixed candidate list and source texts keyed by
// problem key.
type fakeSource struct {
	platform   model.Platform
	handle     string
	recs       []model.Record
	sources    map[string]string
	failKeys   map[string]error
	authErr    error
	enumErr    error
	repeatable bool

	// onFetch runs before each fetch with the 1-based call count.
	onFetch func(n int, rec model.Record) error

	fetched []string
}

func (f *fakeSource) Platform() model.Platform { return f.platform }
func (f *fakeSource) Handle() string           { return f.handle }
func (f *fakeSource) Repeatable() bool         { return f.repeatable }

func (f *fakeSource) Authenticate(ctx context.Context) error { return f.authErr }

func (f *fakeSource) Enumerate(ctx context.Context) ([]model.Record, error) {
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	return f.recs, nil
}

func (f *fakeSource) Fetch(ctx context.Context, rec model.Record) (Payload, error) {
	f.fetched = append(f.fetched, rec.ProblemKey())
	if f.onFetch != nil {
		if err := f.onFetch(len(f.fetched), rec); err != nil {
			return Payload{}, err
		}
	}
	if err, ok := f.failKeys[rec.ProblemKey()]; ok {
		return Payload{}, err
	}
	return Payload{Text: f.sources[rec.ProblemKey()]}, nil
}

func (f *fakeSource) Normalize(raw string) (string, error) {
	if raw == "" {
		return "", model.ErrEmptySource
	}
	return raw, nil
}

func cf(id int64, contest int64, index, verdict string, gym bool) model.Record {
	return model.NewCodeforcesSubmission(model.CodeforcesParams{
		Handle:       "tourist",
		SubmissionID: id,
		ContestID:    contest,
		ProblemIndex: index,
		Language:     "GNU C++17 (64)",
		Verdict:      verdict,
		Gym:          gym,
	})
}

func newCFSource(recs ...model.Record) *fakeSource {
	src := &fakeSource{
		platform: model.PlatformCodeforces,
		handle:   "tourist",
		recs:     recs,
		sources:  map[string]string{},
		failKeys: map[string]error{},
	}
	for _, r := range recs {
		src.sources[r.ProblemKey()] = "// " + r.ProblemKey()
	}
	return src
}

func testEngine(t *testing.T, root string, opts Options) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts.Layout.Root = root
	return New(opts, logger), &buf
}

func handleDir(root string) string {
	return layout.HandleDir(root, model.PlatformCodeforces, "tourist")
}

func readLedger(t *testing.T, root string) []string {
	t.Helper()
	keys, err := ledger.ReadDownloaded(handleDir(root))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	return keys
}

func allFilter() Filter { return Filter{IncludeRegular: true, IncludeGym: true} }

func TestRunPhase_OnlyAcceptedFetched(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(
		cf(1, 4, "A", "OK", false),
		cf(2, 4, "B", "WRONG_ANSWER", false),
	)
	eng, _ := testEngine(t, root, Options{Filter: Filter{IncludeRegular: true}})

	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatalf("RunPhase: %v", err)
	}

	if len(src.fetched) != 1 || src.fetched[0] != "4A" {
		t.Errorf("fetched = %v, want [4A]", src.fetched)
	}
	if res.Written != 1 || res.Skipped != 1 || len(res.Failed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.State != model.PhaseIdle {
		t.Errorf("State = %s, want IDLE", res.State)
	}

	data, err := os.ReadFile(filepath.Join(handleDir(root), "normal", "4A.cpp"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(data) != "// 4A" {
		t.Errorf("content = %q", data)
	}
	if got := readLedger(t, root); len(got) != 1 || got[0] != "4A" {
		t.Errorf("ledger = %v, want [4A]", got)
	}
}

func TestRunPhase_Idempotent(t *testing.T) {
	root := t.TempDir()
	recs := []model.Record{cf(1, 4, "A", "OK", false), cf(2, 1, "B", "OK", true), cf(3, 7, "C", "OK", false)}
	eng, _ := testEngine(t, root, Options{Filter: allFilter()})

	first := newCFSource(recs...)
	if _, err := eng.RunPhase(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	before := readLedger(t, root)

	second := newCFSource(recs...)
	res, err := eng.RunPhase(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != 0 {
		t.Errorf("second run wrote %d files, want 0", res.Written)
	}
	if len(second.fetched) != 0 {
		t.Errorf("second run fetched %v, want nothing", second.fetched)
	}
	if after := readLedger(t, root); strings.Join(after, ",") != strings.Join(before, ",") {
		t.Errorf("ledger changed: %v -> %v", before, after)
	}
}

func TestRunPhase_LedgerCheckedBeforeVerdict(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(handleDir(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(handleDir(root), ledger.DownloadedFile), []byte("4B\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := newCFSource(cf(2, 4, "B", "WRONG_ANSWER", false))
	eng, logs := testEngine(t, root, Options{Filter: allFilter()})

	if _, err := eng.RunPhase(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	out := logs.String()
	if !strings.Contains(out, "already downloaded") {
		t.Errorf("expected already-downloaded skip, logs:\n%s", out)
	}
	if strings.Contains(out, "not accepted") {
		t.Errorf("ledger hit must not be reported as a verdict skip, logs:\n%s", out)
	}
	if len(src.fetched) != 0 {
		t.Errorf("fetched = %v, want none", src.fetched)
	}
}

func TestRunPhase_ErrorIsolation(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(
		cf(1, 1, "A", "OK", false),
		cf(2, 2, "A", "OK", false),
		cf(3, 3, "A", "OK", false),
	)
	src.failKeys["1A"] = errors.New("connection reset")
	src.sources["2A"] = ""

	eng, _ := testEngine(t, root, Options{Filter: allFilter()})
	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatalf("soft failures must not fail the phase: %v", err)
	}

	if got := strings.Join(src.fetched, ","); got != "1A,2A,3A" {
		t.Errorf("fetched = %s, want all three", got)
	}
	if got := strings.Join(res.Failed, ","); got != "1A,2A" {
		t.Errorf("Failed = %s, want 1A,2A", got)
	}
	if got := readLedger(t, root); len(got) != 1 || got[0] != "3A" {
		t.Errorf("ledger = %v, want [3A]", got)
	}

	errs, err := ledger.ReadErrors(handleDir(root))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(errs, ",") != "1A,2A" {
		t.Errorf("errors file = %v", errs)
	}
}

func TestRunPhase_InterruptPersistsProgress(t *testing.T) {
	root := t.TempDir()
	var recs []model.Record
	for i := int64(1); i <= 5; i++ {
		recs = append(recs, cf(i, i, "A", "OK", false))
	}
	src := newCFSource(recs...)

	const n = 3
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.onFetch = func(call int, rec model.Record) error {
		if call == n+1 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	eng, _ := testEngine(t, root, Options{Filter: allFilter()})
	res, err := eng.RunPhase(ctx, src)
	if !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if res.State != model.PhaseAborted {
		t.Errorf("State = %s, want ABORTED", res.State)
	}

	got := readLedger(t, root)
	if strings.Join(got, ",") != "1A,2A,3A" {
		t.Errorf("ledger = %v, want exactly the %d written keys", got, n)
	}
	if len(res.Failed) != 0 {
		t.Errorf("interrupted fetch must not be recorded as failure: %v", res.Failed)
	}
}

func TestRunPhase_AuthFailureLeavesLedger(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(handleDir(root), 0o755); err != nil {
		t.Fatal(err)
	}
	ledgerPath := filepath.Join(handleDir(root), ledger.DownloadedFile)
	if err := os.WriteFile(ledgerPath, []byte("9Z\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := newCFSource(cf(1, 4, "A", "OK", false))
	src.authErr = model.ErrAuthFailed

	eng, _ := testEngine(t, root, Options{Filter: allFilter()})
	res, err := eng.RunPhase(context.Background(), src)
	if !errors.Is(err, model.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if !model.IsPhaseError(err) {
		t.Errorf("expected *PhaseError, got %T", err)
	}
	if res.State != model.PhaseAborted {
		t.Errorf("State = %s", res.State)
	}
	if len(src.fetched) != 0 {
		t.Error("nothing should be fetched after auth failure")
	}
	data, _ := os.ReadFile(ledgerPath)
	if string(data) != "9Z\n" {
		t.Errorf("ledger modified: %q", data)
	}
}

func TestRunPhase_EnumerationFailure(t *testing.T) {
	src := newCFSource()
	src.enumErr = errors.New("status FAILED")

	eng, _ := testEngine(t, t.TempDir(), Options{Filter: allFilter()})
	_, err := eng.RunPhase(context.Background(), src)
	if !errors.Is(err, model.ErrEnumeration) {
		t.Fatalf("err = %v, want ErrEnumeration", err)
	}
	var pe *model.PhaseError
	if !errors.As(err, &pe) || pe.Stage != model.PhaseEnumeratingRemote {
		t.Errorf("expected phase error at enumeration, got %v", err)
	}
}

func TestRunPhase_InclusionFlags(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(cf(1, 4, "A", "OK", false), cf(2, 100001, "A", "OK", true))

	eng, _ := testEngine(t, root, Options{Filter: Filter{IncludeGym: true}})
	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(src.fetched, ",") != "100001A" {
		t.Errorf("fetched = %v, want only the gym submission", src.fetched)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if _, err := os.Stat(filepath.Join(handleDir(root), "gym", "100001A.cpp")); err != nil {
		t.Errorf("gym file missing: %v", err)
	}
}

func TestRunPhase_DuplicateProblemWrittenOnce(t *testing.T) {
	src := newCFSource(cf(2, 4, "A", "OK", false), cf(1, 4, "A", "OK", false))

	eng, _ := testEngine(t, t.TempDir(), Options{Filter: allFilter()})
	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(src.fetched) != 1 {
		t.Errorf("fetched = %v, want the newest submission only", src.fetched)
	}
	if res.Written != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunPhase_LaterSuccessClearsError(t *testing.T) {
	src := newCFSource(cf(2, 4, "A", "OK", false), cf(1, 4, "A", "OK", false))
	src.onFetch = func(call int, rec model.Record) error {
		if call == 1 {
			return errors.New("timeout")
		}
		return nil
	}

	eng, _ := testEngine(t, t.TempDir(), Options{Filter: allFilter()})
	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 0 {
		t.Errorf("Failed = %v, want empty after later success", res.Failed)
	}
}

func TestRunPhase_PayloadRecordReplacesCandidate(t *testing.T) {
	root := t.TempDir()
	stub := model.NewSPOJSubmission(model.SPOJParams{Handle: "alice", ProblemCode: "TEST"})
	src := &refiningSource{fakeSource: fakeSource{
		platform: model.PlatformSPOJ,
		handle:   "alice",
		recs:     []model.Record{stub},
		sources:  map[string]string{"TEST": "int main(){}"},
	}}

	eng, _ := testEngine(t, root, Options{})
	if _, err := eng.RunPhase(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(layout.HandleDir(root, model.PlatformSPOJ, "alice"), "TEST.cpp")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s: %v", path, err)
	}
}

type refiningSource struct {
	fakeSource
}

func (r *refiningSource) Fetch(ctx context.Context, rec model.Record) (Payload, error) {
	p, err := r.fakeSource.Fetch(ctx, rec)
	if err != nil {
		return p, err
	}
	p.Record = model.NewSPOJSubmission(model.SPOJParams{
		Handle:       rec.Owner(),
		SubmissionID: "42",
		ProblemCode:  rec.ProblemKey(),
		Language:     "C++ (g++ 4.3.2)",
	})
	return p, nil
}

func TestRun_RepeatsWhileConfirmed(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(cf(1, 4, "A", "OK", false), cf(2, 5, "B", "OK", false))
	src.repeatable = true
	src.onFetch = func(call int, rec model.Record) error {
		// 5B fails on the first pass only.
		if rec.ProblemKey() == "5B" && call == 2 {
			return errors.New("flaky")
		}
		return nil
	}

	var asked [][]string
	confirm := ConfirmFunc(func(ctx context.Context, p model.Platform, failed []string) bool {
		asked = append(asked, failed)
		return true
	})

	eng, _ := testEngine(t, root, Options{Filter: allFilter(), Confirmer: confirm})
	results, err := eng.Run(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("passes = %d, want 2", len(results))
	}
	if len(asked) != 1 || asked[0][0] != "5B" {
		t.Errorf("asked = %v", asked)
	}
	// The second pass only re-fetches what the ledger still lacks.
	if got := strings.Join(src.fetched, ","); got != "4A,5B,5B" {
		t.Errorf("fetched = %s", got)
	}
	if got := readLedger(t, root); strings.Join(got, ",") != "4A,5B" {
		t.Errorf("ledger = %v", got)
	}
}

func TestRun_NotRepeatableRunsOnce(t *testing.T) {
	src := newCFSource(cf(1, 4, "A", "OK", false))
	src.failKeys["4A"] = errors.New("boom")

	called := false
	confirm := ConfirmFunc(func(context.Context, model.Platform, []string) bool { called = true; return true })

	eng, _ := testEngine(t, t.TempDir(), Options{Filter: allFilter(), Confirmer: confirm})
	results, err := eng.Run(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || called {
		t.Errorf("passes = %d, confirm called = %v", len(results), called)
	}
}

func TestRun_CancelDuringRepeatQuestionKeepsErrors(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(cf(1, 4, "A", "OK", false), cf(2, 4, "B", "OK", false))
	src.repeatable = true
	src.failKeys["4B"] = errors.New("connection reset")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, answer := range []bool{true, false} {
		asked := 0
		confirm := ConfirmFunc(func(context.Context, model.Platform, []string) bool {
			asked++
			cancel()
			return answer
		})
		eng, _ := testEngine(t, root, Options{Filter: allFilter(), Confirmer: confirm})
		results, err := eng.Run(ctx, src)
		if !errors.Is(err, model.ErrInterrupted) {
			t.Fatalf("answer %v: err = %v, want ErrInterrupted", answer, err)
		}
		if len(results) != 1 || asked != 1 {
			t.Errorf("answer %v: passes = %d, asked = %d", answer, len(results), asked)
		}
		errs, err := ledger.ReadErrors(handleDir(root))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(errs, ",") != "4B" {
			t.Errorf("answer %v: errors file = %v, want [4B]", answer, errs)
		}
		ctx, cancel = context.WithCancel(context.Background())
	}
	cancel()
}

// cancelRecorder cancels the run while the last outcome is recorded, after
// every candidate was processed.
type cancelRecorder struct {
	memRecorder
	cancel context.CancelFunc
}

func (c *cancelRecorder) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	c.cancel()
	return nil
}

func TestRun_CancelledBeforeRepeatQuestionDoesNotAsk(t *testing.T) {
	root := t.TempDir()
	src := newCFSource(cf(1, 4, "A", "OK", false))
	src.repeatable = true
	src.failKeys["4A"] = errors.New("boom")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	asked := false
	confirm := ConfirmFunc(func(context.Context, model.Platform, []string) bool { asked = true; return true })
	eng, _ := testEngine(t, root, Options{
		Filter:    allFilter(),
		Confirmer: confirm,
		Recorder:  &cancelRecorder{cancel: cancel},
	})
	results, err := eng.Run(ctx, src)
	if !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if asked {
		t.Error("operator asked after cancellation")
	}
	if len(results) != 1 {
		t.Errorf("passes = %d, want 1", len(results))
	}
	if errs, _ := ledger.ReadErrors(handleDir(root)); strings.Join(errs, ",") != "4A" {
		t.Errorf("errors file = %v, want [4A]", errs)
	}
}

func TestRunPhase_InterruptBeforeCandidatesKeepsErrorsFile(t *testing.T) {
	root := t.TempDir()
	dir := handleDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, ledger.DownloadedFile), []byte("1A\n"), 0o644)
	os.WriteFile(filepath.Join(dir, ledger.ErrorsFile), []byte("2B\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	src := newCFSource(cf(3, 3, "C", "OK", false))
	src.enumErr = context.Canceled
	cancel()

	eng, _ := testEngine(t, root, Options{Filter: allFilter()})
	if _, err := eng.RunPhase(ctx, src); !errors.Is(err, model.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	errs, err := ledger.ReadErrors(dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(errs, ",") != "2B" {
		t.Errorf("errors file = %v, want the previous session's [2B]", errs)
	}
}

type memRecorder struct {
	started  []string
	outcomes []model.Outcome
	finished []error
}

func (m *memRecorder) StartRun(ctx context.Context, runID string, p model.Platform, h string) error {
	m.started = append(m.started, runID)
	return nil
}

func (m *memRecorder) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memRecorder) FinishRun(ctx context.Context, runID string, res *PhaseResult, err error) error {
	m.finished = append(m.finished, err)
	return errors.New("disk full")
}

func TestRunPhase_Recorder(t *testing.T) {
	rec := &memRecorder{}
	src := newCFSource(cf(1, 4, "A", "OK", false), cf(2, 4, "B", "COMPILATION_ERROR", false))

	eng, _ := testEngine(t, t.TempDir(), Options{Filter: allFilter(), Recorder: rec})
	res, err := eng.RunPhase(context.Background(), src)
	if err != nil {
		t.Fatalf("recorder errors must not fail the phase: %v", err)
	}
	if len(rec.started) != 1 || rec.started[0] != res.RunID {
		t.Errorf("started = %v, want [%s]", rec.started, res.RunID)
	}
	if !strings.HasPrefix(res.RunID, "run_") {
		t.Errorf("RunID = %q", res.RunID)
	}
	if len(rec.outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(rec.outcomes))
	}
	if rec.outcomes[0].Status != model.OutcomeWritten || rec.outcomes[1].Skip != model.SkipVerdict {
		t.Errorf("outcomes = %+v", rec.outcomes)
	}
	if len(rec.finished) != 1 || rec.finished[0] != nil {
		t.Errorf("finished = %v", rec.finished)
	}
}
