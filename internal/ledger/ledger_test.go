package ledger

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "codeforces", "tourist")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Downloaded.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Downloaded.Len())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Open should create the directory: %v", err)
	}
}

func TestOpen_ReadsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DownloadedFile), []byte("4A\n\n1B\n  71A  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := s.Downloaded.Keys(), []string{"1B", "4A", "71A"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

func TestPersist_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.Downloaded.Add("4A")
	s.Downloaded.Add("1B")
	s.Errors.Add("2C")
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DownloadedFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1B\n4A\n" {
		t.Errorf("downloaded = %q", data)
	}

	errs, err := ReadErrors(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(errs, []string{"2C"}) {
		t.Errorf("errors = %v, want [2C]", errs)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Downloaded.Has("4A") || !reopened.Downloaded.Has("1B") {
		t.Errorf("reopened ledger missing keys: %v", reopened.Downloaded.Keys())
	}
}

func TestPersist_RemovesStaleErrors(t *testing.T) {
	dir := t.TempDir()
	errPath := filepath.Join(dir, ErrorsFile)
	if err := os.WriteFile(errPath, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := os.Stat(errPath); !os.IsNotExist(err) {
		t.Errorf("errors file should be removed, stat err = %v", err)
	}
}

func TestSet_AddOnly(t *testing.T) {
	s := newSet()
	if !s.Add("4A") {
		t.Error("first Add should report true")
	}
	if s.Add("4A") {
		t.Error("second Add should report false")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestErrorSet(t *testing.T) {
	e := newErrorSet()
	e.Add("4B")
	e.Add("4A")
	e.Add("4B")
	e.Add("5C")

	if got, want := e.Keys(), []string{"4B", "4A", "5C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}

	e.Remove("4B")
	if got, want := e.Keys(), []string{"4A", "5C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after Remove Keys = %v, want %v", got, want)
	}
	if e.Has("4B") {
		t.Error("4B should be removed")
	}
	e.Add("4B")
	if got, want := e.Keys(), []string{"4A", "5C", "4B"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after re-Add Keys = %v, want %v", got, want)
	}

	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len after Reset = %d", e.Len())
	}
}
