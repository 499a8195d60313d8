package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvallejo/tunesync/internal/domain"
)

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceID, destBase, format, quality string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := destBase + "." + format
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func newTestService(fetcher Fetcher) *Service {
	s := NewService(fetcher, nil, "320", nil)
	s.tag = func(path string, record domain.TrackRecord, art []byte) error { return nil }
	s.art = func(ctx context.Context, url string) ([]byte, error) { return nil, nil }
	return s
}

var testRecord = domain.TrackRecord{
	ID:      "t1",
	Title:   "Song B",
	Artists: []string{"Y"},
}

var testCandidate = domain.CandidateResult{SourceID: "abc123"}

func TestRetrieveAndTag(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{}
	s := newTestService(fetcher)

	path, skipped, err := s.RetrieveAndTag(context.Background(), testCandidate, testRecord, dir, "mp3")
	if err != nil {
		t.Fatalf("RetrieveAndTag failed: %v", err)
	}
	if skipped {
		t.Error("Expected a fresh download, got skipped")
	}
	if want := filepath.Join(dir, "Y - Song B.mp3"); path != want {
		t.Errorf("Path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected final file to exist: %v", err)
	}

	// No temp leftovers.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("Leftover temp file %q", e.Name())
		}
	}
}

func TestRetrieveAndTagSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Y - Song B.mp3")
	if err := os.WriteFile(existing, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetcher{}
	s := newTestService(fetcher)

	path, skipped, err := s.RetrieveAndTag(context.Background(), testCandidate, testRecord, dir, "mp3")
	if err != nil {
		t.Fatalf("RetrieveAndTag failed: %v", err)
	}
	if !skipped {
		t.Error("Expected existing file to be skipped")
	}
	if path != existing {
		t.Errorf("Path = %q, want %q", path, existing)
	}
	if fetcher.calls != 0 {
		t.Errorf("Fetcher called %d times, want 0", fetcher.calls)
	}
}

func TestRetrieveAndTagFetchFailure(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(&fakeFetcher{err: errors.New("network down")})

	_, _, err := s.RetrieveAndTag(context.Background(), testCandidate, testRecord, dir, "mp3")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("Error = %v, want ErrFetch", err)
	}

	// Nothing may remain at the final path.
	if _, err := os.Stat(filepath.Join(dir, "Y - Song B.mp3")); !os.IsNotExist(err) {
		t.Error("Fetch failure left a file at the final path")
	}
}

func TestRetrieveAndTagTagFailure(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(&fakeFetcher{})
	s.tag = func(path string, record domain.TrackRecord, art []byte) error {
		return errors.New("corrupt header")
	}

	path, _, err := s.RetrieveAndTag(context.Background(), testCandidate, testRecord, dir, "mp3")
	if !errors.Is(err, ErrTag) {
		t.Fatalf("Error = %v, want ErrTag", err)
	}

	// The fetched audio is kept at its temp path for inspection; the final
	// path stays clear.
	if path == "" {
		t.Error("Expected the temp path to be reported")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("Expected fetched file to be retained: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "Y - Song B.mp3")); !os.IsNotExist(statErr) {
		t.Error("Tag failure left a file at the final path")
	}
}

func TestRetrieveAndTagArtworkFailureNonFatal(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(&fakeFetcher{})

	var tagged bool
	var taggedArt []byte
	s.tag = func(path string, record domain.TrackRecord, art []byte) error {
		tagged = true
		taggedArt = art
		return nil
	}
	s.art = func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("cdn down")
	}

	record := testRecord
	record.ArtworkURL = "https://img.example/cover.jpg"

	_, _, err := s.RetrieveAndTag(context.Background(), testCandidate, record, dir, "mp3")
	if err != nil {
		t.Fatalf("Expected artwork failure to be non-fatal, got %v", err)
	}
	if !tagged {
		t.Error("Expected the file to be tagged despite artwork failure")
	}
	if taggedArt != nil {
		t.Error("Expected nil artwork after download failure")
	}
}

func TestOutputPathSanitized(t *testing.T) {
	record := domain.TrackRecord{Title: `What: "Is" This?`, Artists: []string{"AC/DC"}}
	path := OutputPath(record, "out", "mp3")

	base := filepath.Base(path)
	for _, c := range `<>:"/\|?*` {
		if strings.ContainsRune(base, c) {
			t.Errorf("Output name %q contains invalid char %q", base, c)
		}
	}
}
