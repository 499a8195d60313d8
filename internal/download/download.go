// Package download turns a chosen candidate into a finished, tagged audio
// file on disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/httpclient"
	"github.com/dvallejo/tunesync/internal/logger"
	"github.com/dvallejo/tunesync/internal/storage"
	"github.com/dvallejo/tunesync/internal/tagging"
)

// Sentinel errors distinguishing which stage of retrieval failed.
var (
	ErrFetch = errors.New("fetch failed")
	ErrTag   = errors.New("tagging failed")
)

// Fetcher retrieves the audio stream for a source identifier, extracting it
// to the requested format at destBase plus the format's extension.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID, destBase, format, quality string) (string, error)
}

// Service fetches, tags and places audio files. Tag metadata always comes
// from the playlist record.
type Service struct {
	fetcher Fetcher
	quality string
	log     *logger.Logger

	// injectable in tests
	tag func(path string, record domain.TrackRecord, art []byte) error
	art func(ctx context.Context, url string) ([]byte, error)
}

// NewService builds a retrieval service. The artwork client may be nil; a
// default one is created.
func NewService(fetcher Fetcher, hc *httpclient.Client, quality string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		fetcher: fetcher,
		quality: quality,
		log:     log.WithComponent("download"),
		tag:     tagging.TagFile,
		art: func(ctx context.Context, url string) ([]byte, error) {
			return tagging.DownloadImage(ctx, hc, url)
		},
	}
}

// OutputPath returns the deterministic destination path for a record.
func OutputPath(record domain.TrackRecord, destDir, format string) string {
	name := storage.Sanitize(record.ArtistLine() + " - " + record.Title)
	return filepath.Join(destDir, name+"."+format)
}

// RetrieveAndTag fetches the candidate's audio, tags it from the record and
// moves it to its final path. An existing final path is treated as already
// satisfied and skipped. The final path only ever holds a complete, tagged
// file; intermediate work happens on a temp path.
//
// On tagging failure the fetched audio is kept at its temp path and returned
// alongside ErrTag, so the caller can report the partial artifact.
func (s *Service) RetrieveAndTag(ctx context.Context, candidate domain.CandidateResult, record domain.TrackRecord, destDir, format string) (string, bool, error) {
	final := OutputPath(record, destDir, format)
	if storage.FileExists(final) {
		s.log.Debug("Output already exists, skipping", "path", final)
		return final, true, nil
	}

	if err := storage.EnsureDir(destDir); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	tmpBase := filepath.Join(destDir, ".tmp-"+uuid.NewString())
	tmpPath, err := s.fetcher.Fetch(ctx, candidate.SourceID, tmpBase, format, s.quality)
	if err != nil {
		removeArtifacts(tmpBase, format)
		return "", false, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	var art []byte
	if record.ArtworkURL != "" {
		art, err = s.art(ctx, record.ArtworkURL)
		if err != nil {
			// Artwork is best effort; the file stays valid without it.
			s.log.Warn("Artwork download failed", "url", record.ArtworkURL, "error", err)
			art = nil
		}
	}

	if err := s.tag(tmpPath, record, art); err != nil {
		return tmpPath, false, fmt.Errorf("%w: %v", ErrTag, err)
	}

	if err := storage.MoveFile(tmpPath, final); err != nil {
		removeArtifacts(tmpBase, format)
		return "", false, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	s.log.Info("Downloaded", "track", record.Title, "path", final)
	return final, false, nil
}

// removeArtifacts clears temp files a failed or interrupted fetch may have
// left behind, including the pre-extraction container.
func removeArtifacts(tmpBase, format string) {
	matches, _ := filepath.Glob(tmpBase + ".*")
	for _, m := range matches {
		os.Remove(m)
	}
	os.Remove(tmpBase + "." + format)
}
