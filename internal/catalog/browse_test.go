package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/dvallejo/tunesync/internal/domain"
)

func TestSearchTracks(t *testing.T) {
	db := setupTestDB(t)

	hits, err := db.SearchTracks(context.Background(), "Song", 10)
	if err != nil {
		t.Fatalf("SearchTracks failed: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	// Ordered by popularity, best first.
	if hits[0].ID != "t1" || hits[1].ID != "t2" {
		t.Errorf("Expected t1 before t2, got %s, %s", hits[0].ID, hits[1].ID)
	}
	if hits[0].Artists != "X" || hits[0].Album != "Album A" {
		t.Errorf("Unexpected first hit: %+v", hits[0])
	}
	if hits[0].DurationMS != 180000 {
		t.Errorf("DurationMS = %d, want 180000", hits[0].DurationMS)
	}
}

func TestSearchTracksNoMatch(t *testing.T) {
	db := setupTestDB(t)

	hits, err := db.SearchTracks(context.Background(), "zzz", 10)
	if err != nil {
		t.Fatalf("SearchTracks failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
}

func TestSearchTracksLimit(t *testing.T) {
	db := setupTestDB(t)

	hits, err := db.SearchTracks(context.Background(), "Song", 1)
	if err != nil {
		t.Fatalf("SearchTracks failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "t1" {
		t.Errorf("Expected only the most popular hit, got %+v", hits)
	}
}

func TestSearchArtists(t *testing.T) {
	db := setupTestDB(t)

	hits, err := db.SearchArtists(context.Background(), "X", 10)
	if err != nil {
		t.Fatalf("SearchArtists failed: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	// Ordered by followers, best first.
	if hits[0].ID != "a1" || hits[0].Followers != 90000 {
		t.Errorf("Expected a1 with followers first, got %+v", hits[0])
	}
}

func TestSearchAlbums(t *testing.T) {
	db := setupTestDB(t)

	hits, err := db.SearchAlbums(context.Background(), "Album", 10)
	if err != nil {
		t.Fatalf("SearchAlbums failed: %v", err)
	}

	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "al1" || hits[0].ReleaseDate != "2001-03-05" || hits[0].TotalTracks != 10 {
		t.Errorf("Unexpected album hit: %+v", hits[0])
	}
}

func TestTrackDetails(t *testing.T) {
	db := setupTestDB(t)

	details, err := db.TrackDetails(context.Background(), "t1")
	if err != nil {
		t.Fatalf("TrackDetails failed: %v", err)
	}

	if details.Name != "Song A" || details.ISRC != "ISRC1" {
		t.Errorf("Unexpected track: %+v", details.TrackHit)
	}
	if len(details.Files) != 1 {
		t.Fatalf("Expected 1 file descriptor, got %d", len(details.Files))
	}
	if !details.Available() {
		t.Error("Expected t1 to be available in the catalog")
	}
}

func TestTrackDetailsFailedFileNotAvailable(t *testing.T) {
	db := setupTestDB(t)

	details, err := db.TrackDetails(context.Background(), "t2")
	if err != nil {
		t.Fatalf("TrackDetails failed: %v", err)
	}
	if details.Available() {
		t.Error("Expected t2's failed file to count as unavailable")
	}
}

func TestTrackDetailsNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.TrackDetails(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)

	s, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Tracks != 2 || s.Files != 2 {
		t.Errorf("Stats = %+v, want 2 tracks and 2 files", s)
	}
}
