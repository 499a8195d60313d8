package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dvallejo/tunesync/internal/catalog"
	"github.com/dvallejo/tunesync/internal/config"
	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	cfg.OutputDir = filepath.Join(dir, "downloads")
	cfg.CacheFile = filepath.Join(dir, "cache.json")
	return cfg
}

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	r, err := NewRunner(testConfig(t), logger.Default(), out)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(r.Close)
	return r, out
}

func TestNewRunnerWithoutOptionalCollaborators(t *testing.T) {
	r, _ := newTestRunner(t)

	if r.spotify != nil {
		t.Error("Expected no spotify client without credentials")
	}
	if r.db != nil {
		t.Error("Expected no catalog db without a configured path")
	}
	if r.matcher == nil || r.searcher == nil || r.service == nil {
		t.Error("Expected core pipeline to be wired regardless")
	}
}

func seededCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open catalog db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(catalog.Schema); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	seed := []string{
		`INSERT INTO tracks (id, name, artists, album_name, duration_ms, popularity, external_id_isrc)
		 VALUES ('t1', 'Song A', 'X', 'Album A', 180000, 80, 'ISRC1')`,
		`INSERT INTO track_files (track_id, filename, status, reencoded_kbit_vbr)
		 VALUES ('t1', 't1.mp3', 'success', 320)`,
	}
	for _, stmt := range seed {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed db: %v", err)
		}
	}
	return path
}

func TestSearchAndTrackAndStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogDBPath = seededCatalog(t)
	out := &bytes.Buffer{}

	r, err := NewRunner(cfg, logger.Default(), out)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(r.Close)

	if err := r.Search(context.Background(), "Song", "track", 10); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !strings.Contains(out.String(), "Song A") || !strings.Contains(out.String(), "3:00") {
		t.Errorf("Unexpected search output: %q", out.String())
	}

	out.Reset()
	if err := r.Track(context.Background(), "t1"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if !strings.Contains(out.String(), "Available in the local catalog") {
		t.Errorf("Unexpected track output: %q", out.String())
	}

	out.Reset()
	if err := r.Stats(context.Background()); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !strings.Contains(out.String(), "1 tracks, 1 files") {
		t.Errorf("Unexpected stats output: %q", out.String())
	}
}

func TestTrackNotFound(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogDBPath = seededCatalog(t)

	r, err := NewRunner(cfg, logger.Default(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(r.Close)

	if err := r.Track(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSearchWithoutCatalog(t *testing.T) {
	r, _ := newTestRunner(t)

	err := r.Search(context.Background(), "anything", "track", 10)
	if err == nil || !strings.Contains(err.Error(), "catalog database not configured") {
		t.Errorf("Expected missing-catalog error, got %v", err)
	}
}

func TestStatsWithoutCatalog(t *testing.T) {
	r, out := newTestRunner(t)

	if err := r.Stats(context.Background()); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !strings.Contains(out.String(), "Catalog: not configured") {
		t.Errorf("Unexpected stats output: %q", out.String())
	}
}

func TestCheckYTDLPMissingBinary(t *testing.T) {
	out := &bytes.Buffer{}
	cfg := testConfig(t)
	cfg.YTDLPPath = filepath.Join(t.TempDir(), "missing-yt-dlp")

	r, err := NewRunner(cfg, logger.Default(), out)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(r.Close)

	err = r.checkYTDLP()
	if err == nil || !strings.Contains(err.Error(), "yt-dlp not found") {
		t.Errorf("Expected preflight failure for missing binary, got %v", err)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	r, out := newTestRunner(t)

	r.cache.Store("some query", []domain.CandidateResult{{SourceID: "x"}})

	if err := r.CacheStats(context.Background(), nil); err != nil {
		t.Fatalf("CacheStats failed: %v", err)
	}
	if !strings.Contains(out.String(), "1/") {
		t.Errorf("Stats output = %q, want entry count", out.String())
	}

	out.Reset()
	if err := r.CacheClear(context.Background(), nil); err != nil {
		t.Fatalf("CacheClear failed: %v", err)
	}
	if r.cache.Len() != 0 {
		t.Errorf("Cache not cleared, %d entries remain", r.cache.Len())
	}
	if !strings.Contains(out.String(), "Cleared 1") {
		t.Errorf("Clear output = %q", out.String())
	}
}

func TestPrintSummary(t *testing.T) {
	r, out := newTestRunner(t)

	report := &domain.Report{
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Outcomes: []domain.ResolutionOutcome{
			{Track: domain.TrackRecord{Title: "A", Artists: []string{"X"}}, Status: domain.StatusFoundInCatalog},
			{
				Track:  domain.TrackRecord{Title: "B", Artists: []string{"Y"}},
				Status: domain.StatusRetrievalFailed,
				Err:    errors.New("connection reset"),
			},
		},
		Summary: domain.Summary{Total: 2, Found: 1, Failed: 1, SearchErrors: 1},
	}

	r.printSummary(report)

	got := out.String()
	for _, want := range []string{"2 tracks", "1 in catalog", "1 failed", "connection reset", "1 errors"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary output missing %q:\n%s", want, got)
		}
	}
}
