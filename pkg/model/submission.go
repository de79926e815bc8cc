package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Platform identifies the remote judge a submission came from.
type Platform string

const (
	PlatformCodeforces Platform = "codeforces"
	PlatformSPOJ       Platform = "spoj"
)

// String returns the string representation of the platform.
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform converts a user-supplied platform name to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "codeforces", "cf":
		return PlatformCodeforces, nil
	case "spoj":
		return PlatformSPOJ, nil
	}
	return "", fmt.Errorf("unknown platform %q (want codeforces or spoj)", s)
}

// Table selects which language vocabulary a label is written in.
type Table int

const (
	// TableAPI is the vocabulary of the Codeforces API.
	TableAPI Table = iota
	// TablePage is the vocabulary of SPOJ HTML pages.
	TablePage
)

// Verdict is the judge outcome of a submission.
type Verdict int

const (
	VerdictOther Verdict = iota
	VerdictAccepted
)

// ParseVerdict maps a Codeforces API verdict to a Verdict.
func ParseVerdict(raw string) Verdict {
	if strings.EqualFold(raw, "OK") {
		return VerdictAccepted
	}
	return VerdictOther
}

// Record is one remote submission, normalized across platforms.
// The concrete types are CodeforcesSubmission and SPOJSubmission.
type Record interface {
	Platform() Platform
	Owner() string
	ID() string
	ProblemKey() string
	LanguageLabel() string
	Table() Table
	String() string

	record()
}

// CodeforcesSubmission is a submission listed by the Codeforces user.status API.
type CodeforcesSubmission struct {
	handle       string
	submissionID int64
	contestID    int64
	problemIndex string
	language     string
	verdict      string
	gym          bool
	createdAt    time.Time
}

// CodeforcesParams holds the fields of a CodeforcesSubmission.
type CodeforcesParams struct {
	Handle       string
	SubmissionID int64
	ContestID    int64
	ProblemIndex string
	Language     string
	Verdict      string
	Gym          bool
	CreatedAt    time.Time
}

// NewCodeforcesSubmission builds an immutable Codeforces record.
func NewCodeforcesSubmission(p CodeforcesParams) CodeforcesSubmission {
	return CodeforcesSubmission{
		handle:       p.Handle,
		submissionID: p.SubmissionID,
		contestID:    p.ContestID,
		problemIndex: p.ProblemIndex,
		language:     p.Language,
		verdict:      p.Verdict,
		gym:          p.Gym,
		createdAt:    p.CreatedAt,
	}
}

func (CodeforcesSubmission) record() {}

func (s CodeforcesSubmission) Platform() Platform    { return PlatformCodeforces }
func (s CodeforcesSubmission) Owner() string         { return s.handle }
func (s CodeforcesSubmission) ID() string            { return strconv.FormatInt(s.submissionID, 10) }
func (s CodeforcesSubmission) LanguageLabel() string { return s.language }
func (s CodeforcesSubmission) Table() Table          { return TableAPI }

// ProblemKey is the contest id followed by the problem index, e.g. "4A".
func (s CodeforcesSubmission) ProblemKey() string {
	return strconv.FormatInt(s.contestID, 10) + s.problemIndex
}

func (s CodeforcesSubmission) SubmissionID() int64  { return s.submissionID }
func (s CodeforcesSubmission) ContestID() int64     { return s.contestID }
func (s CodeforcesSubmission) ProblemIndex() string { return s.problemIndex }
func (s CodeforcesSubmission) RawVerdict() string   { return s.verdict }
func (s CodeforcesSubmission) Verdict() Verdict     { return ParseVerdict(s.verdict) }
func (s CodeforcesSubmission) Gym() bool            { return s.gym }
func (s CodeforcesSubmission) CreatedAt() time.Time { return s.createdAt }

func (s CodeforcesSubmission) String() string {
	return fmt.Sprintf("Platform: Codeforces, Submission: %d, Contest: %d, Problem: %s, Verdict: %s, When: %s",
		s.submissionID, s.contestID, s.problemIndex, s.verdict, s.createdAt.Format(time.DateTime))
}

// SPOJSubmission is a problem row from the SPOJ account history. The
// language and submission id are only known after the edit page is read,
// so they may be empty on records produced by enumeration.
type SPOJSubmission struct {
	handle       string
	submissionID string
	problemCode  string
	language     string
	historyPath  string
}

// SPOJParams holds the fields of a SPOJSubmission.
type SPOJParams struct {
	Handle       string
	SubmissionID string
	ProblemCode  string
	Language     string
	HistoryPath  string
}

// NewSPOJSubmission builds an immutable SPOJ record.
func NewSPOJSubmission(p SPOJParams) SPOJSubmission {
	return SPOJSubmission{
		handle:       p.Handle,
		submissionID: p.SubmissionID,
		problemCode:  p.ProblemCode,
		language:     p.Language,
		historyPath:  p.HistoryPath,
	}
}

func (SPOJSubmission) record() {}

func (s SPOJSubmission) Platform() Platform    { return PlatformSPOJ }
func (s SPOJSubmission) Owner() string         { return s.handle }
func (s SPOJSubmission) ID() string            { return s.submissionID }
func (s SPOJSubmission) ProblemKey() string    { return s.problemCode }
func (s SPOJSubmission) LanguageLabel() string { return s.language }
func (s SPOJSubmission) Table() Table          { return TablePage }
func (s SPOJSubmission) HistoryPath() string   { return s.historyPath }

func (s SPOJSubmission) String() string {
	if s.submissionID == "" {
		return fmt.Sprintf("Platform: SPOJ, Problem: %s", s.problemCode)
	}
	return fmt.Sprintf("Platform: SPOJ, Submission: %s, Problem: %s", s.submissionID, s.problemCode)
}
