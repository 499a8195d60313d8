// Package domain holds the core data model shared across the resolution pipeline.
package domain

import (
	"strings"
	"time"
)

// TrackRecord is one playlist entry's canonical metadata as declared by the
// playlist source. It is immutable once fetched and is the source of truth
// for tags written to output files.
type TrackRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album,omitempty"`
	Duration    int      `json:"duration"` // seconds
	TrackNumber int      `json:"track_number,omitempty"`
	DiscNumber  int      `json:"disc_number,omitempty"`
	ArtworkURL  string   `json:"artwork_url,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
}

// ArtistLine joins the ordered artist names for display and filenames.
func (t TrackRecord) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// CatalogFile describes one known audio file for a catalog entry.
type CatalogFile struct {
	Format string `json:"format,omitempty" db:"format"`
	Size   int64  `json:"size,omitempty" db:"size"`
	Handle string `json:"handle,omitempty" db:"handle"`
	Status string `json:"status,omitempty" db:"status"`
}

// Usable reports whether the file descriptor points at retrievable audio.
func (f CatalogFile) Usable() bool {
	return f.Status == "" || f.Status == "success"
}

// CatalogEntry is a read-only snapshot of what the catalog knows about a
// track identifier.
type CatalogEntry struct {
	TrackID string        `json:"track_id"`
	Files   []CatalogFile `json:"files,omitempty"`
}

// HasUsableFile reports whether at least one known file is retrievable.
func (e CatalogEntry) HasUsableFile() bool {
	for _, f := range e.Files {
		if f.Usable() {
			return true
		}
	}
	return false
}

// CandidateResult is one secondary-source search result proposed as a match
// for a track. It lives only inside the query cache and a single resolution's
// working set.
type CandidateResult struct {
	Query     string  `json:"query"`
	SourceID  string  `json:"source_id"`
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader,omitempty"`
	Duration  int     `json:"duration"` // seconds
	ViewCount int64   `json:"view_count,omitempty"`
	Score     float64 `json:"score"`
}

// OutcomeStatus is the terminal state of one track's resolution.
type OutcomeStatus string

const (
	StatusFoundInCatalog  OutcomeStatus = "found_in_catalog"
	StatusDownloaded      OutcomeStatus = "downloaded"
	StatusNoCandidate     OutcomeStatus = "no_candidate_found"
	StatusRetrievalFailed OutcomeStatus = "retrieval_failed"
	StatusTaggingFailed   OutcomeStatus = "tagging_failed"
)

// Failed reports whether the status represents a per-entry failure.
func (s OutcomeStatus) Failed() bool {
	return s == StatusRetrievalFailed || s == StatusTaggingFailed
}

// ResolutionOutcome is the terminal result for one TrackRecord. Immutable
// after creation; owned by the batch that produced it.
type ResolutionOutcome struct {
	Track     TrackRecord      `json:"track"`
	Status    OutcomeStatus    `json:"status"`
	Candidate *CandidateResult `json:"candidate,omitempty"`
	Path      string           `json:"path,omitempty"`
	// Skipped marks an entry whose output file already existed, making the
	// run idempotent: no re-download happened.
	Skipped bool  `json:"skipped,omitempty"`
	Err     error `json:"-"`
}

// Summary carries the aggregate counts for one batch.
type Summary struct {
	Total       int `json:"total"`
	Found       int `json:"found"`
	Downloaded  int `json:"downloaded"`
	NoCandidate int `json:"no_candidate"`
	Failed      int `json:"failed"`
	// SearchErrors counts secondary-source adapter failures that were
	// degraded to empty results, kept separate from true zero-result
	// searches for observability.
	SearchErrors int `json:"search_errors"`
}

// Report is the full set of per-entry outcomes for one playlist resolution
// run, in original playlist order.
type Report struct {
	BatchID    string              `json:"batch_id"`
	Playlist   string              `json:"playlist,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Outcomes   []ResolutionOutcome `json:"outcomes"`
	Summary    Summary             `json:"summary"`
}
