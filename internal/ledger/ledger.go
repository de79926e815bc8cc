// Package ledger persists which problems have already been downloaded for
// one platform and handle, and which ones failed in the latest session.
//
// Both files are newline-delimited lists of problem keys:
//
//	<dir>/downloaded   rewritten in full at the end of every session
//	<dir>/errors       written only when the session had failures
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DownloadedFile = "downloaded"
	ErrorsFile     = "errors"
)

// Set is an add-only set of problem keys.
type Set struct {
	keys map[string]struct{}
}

func newSet() *Set {
	return &Set{keys: make(map[string]struct{})}
}

// Has reports whether key is in the set.
func (s *Set) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Add inserts key. It returns false if the key was already present.
func (s *Set) Add(key string) bool {
	if s.Has(key) {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Len returns the number of keys.
func (s *Set) Len() int {
	return len(s.keys)
}

// Keys returns the keys in sorted order.
func (s *Set) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ErrorSet is the distinct, insertion-ordered set of problem keys that
// failed during the current session.
type ErrorSet struct {
	order []string
	index map[string]int
}

func newErrorSet() *ErrorSet {
	return &ErrorSet{index: make(map[string]int)}
}

// Add records a failed key. Repeated failures of the same key are kept once.
func (e *ErrorSet) Add(key string) {
	if _, ok := e.index[key]; ok {
		return
	}
	e.index[key] = len(e.order)
	e.order = append(e.order, key)
}

// Remove drops key, used when a later submission of the same problem succeeds.
func (e *ErrorSet) Remove(key string) {
	i, ok := e.index[key]
	if !ok {
		return
	}
	e.order = append(e.order[:i], e.order[i+1:]...)
	delete(e.index, key)
	for j := i; j < len(e.order); j++ {
		e.index[e.order[j]] = j
	}
}

// Has reports whether key failed in this session.
func (e *ErrorSet) Has(key string) bool {
	_, ok := e.index[key]
	return ok
}

// Keys returns the failed keys in the order they first failed.
func (e *ErrorSet) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of failed keys.
func (e *ErrorSet) Len() int {
	return len(e.order)
}

// Reset clears the set.
func (e *ErrorSet) Reset() {
	e.order = e.order[:0]
	e.index = make(map[string]int)
}

// Session holds the ledger state for one (platform, handle) phase.
type Session struct {
	Dir        string
	Downloaded *Set
	Errors     *ErrorSet
}

// Open loads the ledger stored in dir, creating dir if needed.
// A missing downloaded file yields an empty ledger.
func Open(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	s := &Session{Dir: dir, Downloaded: newSet(), Errors: newErrorSet()}

	keys, err := readKeys(filepath.Join(dir, DownloadedFile))
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		s.Downloaded.Add(k)
	}
	return s, nil
}

// Persist rewrites the downloaded file and the errors file. A stale errors
// file from an earlier session is removed when this session had none.
func (s *Session) Persist() error {
	if err := writeKeys(filepath.Join(s.Dir, DownloadedFile), s.Downloaded.Keys()); err != nil {
		return err
	}

	errPath := filepath.Join(s.Dir, ErrorsFile)
	if s.Errors.Len() == 0 {
		if err := os.Remove(errPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale errors file: %w", err)
		}
		return nil
	}
	return writeKeys(errPath, s.Errors.Keys())
}

// ReadErrors returns the keys recorded by the last session, if any.
func ReadErrors(dir string) ([]string, error) {
	return readKeys(filepath.Join(dir, ErrorsFile))
}

// ReadDownloaded returns the stored ledger keys without opening a session.
func ReadDownloaded(dir string) ([]string, error) {
	return readKeys(filepath.Join(dir, DownloadedFile))
}

func readKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return keys, nil
}

// writeKeys writes to a temporary file and renames it over path, so an
// interrupted write never leaves a truncated ledger behind.
func writeKeys(path string, keys []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, k := range keys {
		w.WriteString(k)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
