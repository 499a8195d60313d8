package domain

import "testing"

func TestArtistLine(t *testing.T) {
	tests := []struct {
		name    string
		artists []string
		want    string
	}{
		{"single", []string{"Queen"}, "Queen"},
		{"ordered pair", []string{"Queen", "David Bowie"}, "Queen, David Bowie"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := TrackRecord{Artists: tt.artists}
			if got := rec.ArtistLine(); got != tt.want {
				t.Errorf("ArtistLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogEntryHasUsableFile(t *testing.T) {
	tests := []struct {
		name  string
		entry CatalogEntry
		want  bool
	}{
		{"no files", CatalogEntry{TrackID: "a"}, false},
		{"success file", CatalogEntry{Files: []CatalogFile{{Status: "success"}}}, true},
		{"unknown status counts as usable", CatalogEntry{Files: []CatalogFile{{Handle: "x"}}}, true},
		{"only failed files", CatalogEntry{Files: []CatalogFile{{Status: "corrupt"}, {Status: "missing"}}}, false},
		{"mixed", CatalogEntry{Files: []CatalogFile{{Status: "corrupt"}, {Status: "success"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.HasUsableFile(); got != tt.want {
				t.Errorf("HasUsableFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeStatusFailed(t *testing.T) {
	failed := []OutcomeStatus{StatusRetrievalFailed, StatusTaggingFailed}
	for _, s := range failed {
		if !s.Failed() {
			t.Errorf("%s should be a failure status", s)
		}
	}

	ok := []OutcomeStatus{StatusFoundInCatalog, StatusDownloaded, StatusNoCandidate}
	for _, s := range ok {
		if s.Failed() {
			t.Errorf("%s should not be a failure status", s)
		}
	}
}
