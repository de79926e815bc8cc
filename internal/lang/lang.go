// Package lang maps free-text language labels reported by the judges to
// source file extensions.
package lang

import (
	"strings"

	"github.com/me/cpsync/pkg/model"
)

// Entry pairs a label substring with the extension it selects.
type Entry struct {
	Match     string
	Extension string
}

// Order matters: the first entry whose Match is a substring of the label
// wins, so "++" must come before "GNU C" and "GNU C" before "C#".
var apiTable = []Entry{
	{"++", "cpp"},
	{"GNU C", "c"},
	{"JavaScript", "js"},
	{"Java", "java"},
	{"Py", "py"},
	{"Delphi", "dpr"},
	{"FPC", "pas"},
	{"C#", "cs"},
	{"D", "d"},
	{"Q#", "qs"},
	{"Node", "js"},
	{"Kotlin", "kt"},
	{"Go", "go"},
	{"Ruby", "rb"},
	{"Rust", "rs"},
	{"Perl", "pl"},
	{"Scala", "scala"},
	{"PascalABC", "pas"},
	{"Haskell", "hs"},
	{"PHP", "php"},
}

// SPOJ labels look like "C++ (g++ 4.3.2)" or "Go (go 1.10)"; the trailing
// spaces in "D " and "Go " keep them from matching inside other names.
var pageTable = []Entry{
	{"++", "cpp"},
	{"gcc", "c"},
	{"clang", "c"},
	{"JavaScript", "js"},
	{"Java", "java"},
	{"Python", "py"},
	{"C#", "cs"},
	{"D ", "d"},
	{"Node", "js"},
	{"Kotlin", "kt"},
	{"Go ", "go"},
	{"Ruby", "rb"},
	{"Rust", "rs"},
	{"Perl", "pl"},
	{"Scala", "scala"},
	{"Pascal", "pas"},
	{"Haskell", "hs"},
	{"PHP", "php"},
}

// Entries returns a copy of the ordered table for t.
func Entries(t model.Table) []Entry {
	src := apiTable
	if t == model.TablePage {
		src = pageTable
	}
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Resolve returns the extension for label, or "" if no entry matches.
func Resolve(label string, t model.Table) string {
	tbl := apiTable
	if t == model.TablePage {
		tbl = pageTable
	}
	for _, e := range tbl {
		if strings.Contains(label, e.Match) {
			return e.Extension
		}
	}
	return ""
}
