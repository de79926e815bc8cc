// Package layout decides where a downloaded submission is stored on disk.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/me/cpsync/pkg/model"
)

// Options controls the directory layout.
type Options struct {
	// Root is the directory that holds the per-platform trees (default ".").
	Root string

	// MergeGymAndRegular stores Codeforces gym and regular contests in the
	// same tree instead of "normal" and "gym" subtrees.
	MergeGymAndRegular bool

	// PerContestFolders stores each Codeforces contest in its own folder.
	PerContestFolders bool
}

// HandleDir returns the session directory for one platform and handle.
// The ledger files live here.
func HandleDir(root string, platform model.Platform, handle string) string {
	return filepath.Join(root, platform.String(), handle)
}

// Dir returns the directory a record's file is written to.
func Dir(rec model.Record, opts Options) string {
	dir := HandleDir(opts.Root, rec.Platform(), rec.Owner())

	cf, ok := rec.(model.CodeforcesSubmission)
	if !ok {
		return dir
	}
	if !opts.MergeGymAndRegular {
		if cf.Gym() {
			dir = filepath.Join(dir, "gym")
		} else {
			dir = filepath.Join(dir, "normal")
		}
	}
	if opts.PerContestFolders {
		dir = filepath.Join(dir, strconv.FormatInt(cf.ContestID(), 10))
	}
	return dir
}

// FileName returns the base name for a record. An empty extension is kept
// as a bare trailing dot so the file is still written.
func FileName(rec model.Record, ext string, opts Options) string {
	if cf, ok := rec.(model.CodeforcesSubmission); ok && opts.PerContestFolders {
		return cf.ProblemIndex() + "." + ext
	}
	return rec.ProblemKey() + "." + ext
}

// Build returns the full destination path for a record.
func Build(rec model.Record, ext string, opts Options) string {
	return filepath.Join(Dir(rec, opts), FileName(rec, ext, opts))
}

// Ensure creates every directory on the way to path.
func Ensure(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
