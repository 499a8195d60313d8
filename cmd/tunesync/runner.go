package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dvallejo/tunesync/internal/cache"
	"github.com/dvallejo/tunesync/internal/catalog"
	"github.com/dvallejo/tunesync/internal/config"
	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/download"
	"github.com/dvallejo/tunesync/internal/httpclient"
	"github.com/dvallejo/tunesync/internal/logger"
	"github.com/dvallejo/tunesync/internal/resolver"
	"github.com/dvallejo/tunesync/internal/search"
	"github.com/dvallejo/tunesync/internal/spotify"
	"github.com/dvallejo/tunesync/internal/youtube"
)

// Runner holds the wired pipeline for CLI command actions.
type Runner struct {
	cfg    *config.Config
	log    *logger.Logger
	output io.Writer

	cache    *cache.Cache
	spotify  *spotify.Client
	yt       *youtube.Client
	searcher *search.Searcher
	service  *download.Service
	matcher  *catalog.Matcher
	db       *catalog.DB
}

// NewRunner wires the pipeline from configuration. A missing catalog DB or
// missing Spotify credentials leave those collaborators nil; commands that
// need them report it.
func NewRunner(cfg *config.Config, log *logger.Logger, output io.Writer) (*Runner, error) {
	if output == nil {
		output = os.Stdout
	}

	r := &Runner{cfg: cfg, log: log, output: output}

	r.cache = cache.New(cfg.CacheCapacity, cache.NewFileStore(cfg.CacheFile))

	hc := httpclient.NewClient(nil, 0)
	if cfg.HasSpotifyCredentials() {
		r.spotify = spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifySecret, hc, log)
	}

	r.yt = youtube.NewClient(cfg.YTDLPPath, log)
	r.searcher = search.NewSearcher(r.yt, r.cache, cfg.SearchLimit, log)
	r.service = download.NewService(r.yt, hc, cfg.Quality, log)

	if cfg.CatalogDBPath != "" {
		db, err := catalog.NewDB(cfg.CatalogDBPath, cfg.TrackFilesDBPath)
		if err != nil {
			// A broken catalog degrades to all-missing rather than
			// refusing to run.
			log.Warn("Failed to open catalog db", "path", cfg.CatalogDBPath, "error", err)
		} else {
			r.db = db
		}
	}
	var adapter catalog.Adapter
	if r.db != nil {
		adapter = r.db
	}
	r.matcher = catalog.NewMatcher(adapter, log)

	return r, nil
}

// Close releases held resources.
func (r *Runner) Close() {
	if r.db != nil {
		r.db.Close()
	}
	if r.cache != nil {
		r.cache.Flush()
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}

// checkYTDLP verifies the fetch binary exists before any command that needs
// it starts work.
func (r *Runner) checkYTDLP() error {
	if !r.yt.Available() {
		return fmt.Errorf("yt-dlp not found at %q; install it or set ytdlp_path in the config", r.cfg.YTDLPPath)
	}
	return nil
}

// Playlist resolves a playlist URL, optionally downloading missing tracks.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	url := cmd.Args().First()
	if url == "" {
		return fmt.Errorf("usage: tunesync playlist <url>")
	}
	if r.spotify == nil {
		return fmt.Errorf("spotify credentials not configured; run 'tunesync setup' and fill in the config")
	}

	pl, err := r.spotify.ResolvePlaylist(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to resolve playlist: %w", err)
	}
	r.printf("Playlist: %s (%s), %d tracks\n", pl.Name, pl.Owner, len(pl.Tracks))

	if !cmd.Bool("download") {
		classification := r.matcher.Classify(ctx, pl.Tracks)
		for _, t := range pl.Tracks {
			mark := "missing"
			if _, ok := classification.Present[t.ID]; ok {
				mark = "in catalog"
			}
			r.printf("  [%s] %s - %s\n", mark, t.ArtistLine(), t.Title)
		}
		r.printf("Use --download to retrieve missing tracks.\n")
		return nil
	}

	if err := r.checkYTDLP(); err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = r.cfg.OutputDir
	}
	format := cmd.String("format")
	if format == "" {
		format = r.cfg.Format
	}
	workers := int(cmd.Int("workers"))
	if workers <= 0 {
		workers = r.cfg.Workers
	}

	orch := resolver.New(r.matcher, r.searcher, r.service, resolver.Options{
		Workers: workers,
		Logger:  r.log,
		Progress: func(out domain.ResolutionOutcome) {
			r.printf("  [%s] %s - %s\n", out.Status, out.Track.ArtistLine(), out.Track.Title)
		},
	})

	report := orch.Resolve(ctx, pl.Name, pl.Tracks, outputDir, format)
	r.printSummary(report)
	return nil
}

func (r *Runner) printSummary(report *domain.Report) {
	s := report.Summary
	r.printf("\n%d tracks: %d in catalog, %d downloaded, %d without candidates, %d failed\n",
		s.Total, s.Found, s.Downloaded, s.NoCandidate, s.Failed)
	if s.SearchErrors > 0 {
		r.printf("Search source reported %d errors; some empty results may be transient.\n", s.SearchErrors)
	}
	for _, out := range report.Outcomes {
		if out.Status.Failed() && out.Err != nil {
			r.printf("  failed: %s - %s: %v\n", out.Track.ArtistLine(), out.Track.Title, out.Err)
		}
	}
}

// Download searches for a single query and retrieves the best candidate.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: tunesync download <query>")
	}
	if err := r.checkYTDLP(); err != nil {
		return err
	}

	record := domain.TrackRecord{Title: query}
	candidates := r.searcher.Search(ctx, record)
	if len(candidates) == 0 {
		r.printf("No candidates found for %q\n", query)
		return nil
	}

	best := candidates[0]
	r.printf("Best match: %s (%s, %ds)\n", best.Title, best.Uploader, best.Duration)

	path, skipped, err := r.service.RetrieveAndTag(ctx, best, record, r.cfg.OutputDir, r.cfg.Format)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if skipped {
		r.printf("Already downloaded: %s\n", path)
	} else {
		r.printf("Saved: %s\n", path)
	}
	return nil
}

func (r *Runner) checkCatalog() error {
	if r.db == nil {
		return fmt.Errorf("catalog database not configured; set catalog_db_path in the config")
	}
	return nil
}

// Search queries the catalog for tracks, artists or albums by name.
func (r *Runner) Search(ctx context.Context, query, kind string, limit int) error {
	if query == "" {
		return fmt.Errorf("usage: tunesync search <query>")
	}
	if err := r.checkCatalog(); err != nil {
		return err
	}
	if limit <= 0 {
		limit = constants.DefaultBrowseLimit
	}

	switch kind {
	case "track", "tracks", "":
		hits, err := r.db.SearchTracks(ctx, query, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(hits) == 0 {
			r.printf("No tracks found.\n")
			return nil
		}
		for _, h := range hits {
			r.printf("%s  %s - %s (%s) [%s]\n", h.ID, h.Artists, h.Name, h.Album, formatDuration(h.DurationMS))
		}
	case "artist", "artists":
		hits, err := r.db.SearchArtists(ctx, query, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(hits) == 0 {
			r.printf("No artists found.\n")
			return nil
		}
		for _, h := range hits {
			r.printf("%s  %s (%d followers)\n", h.ID, h.Name, h.Followers)
		}
	case "album", "albums":
		hits, err := r.db.SearchAlbums(ctx, query, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(hits) == 0 {
			r.printf("No albums found.\n")
			return nil
		}
		for _, h := range hits {
			r.printf("%s  %s (%s, %s, %d tracks)\n", h.ID, h.Name, h.Type, h.ReleaseDate, h.TotalTracks)
		}
	default:
		return fmt.Errorf("unknown search type %q; use track, artist or album", kind)
	}
	return nil
}

// Track prints catalog details for a single track ID.
func (r *Runner) Track(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("usage: tunesync track <id>")
	}
	if err := r.checkCatalog(); err != nil {
		return err
	}

	details, err := r.db.TrackDetails(ctx, id)
	if err != nil {
		return err
	}

	r.printf("%s - %s\n", details.Artists, details.Name)
	r.printf("  Album:    %s\n", details.Album)
	r.printf("  Duration: %s\n", formatDuration(details.DurationMS))
	if details.ISRC != "" {
		r.printf("  ISRC:     %s\n", details.ISRC)
	}
	if details.Available() {
		r.printf("  Available in the local catalog (%s)\n", details.Files[0].Format)
	} else {
		r.printf("  Not available in the local catalog\n")
	}
	return nil
}

// Stats prints cache and catalog statistics.
func (r *Runner) Stats(ctx context.Context) error {
	r.printf("Cache: %d/%d entries (%s)\n", r.cache.Len(), r.cfg.CacheCapacity, r.cfg.CacheFile)

	if r.spotify != nil {
		r.printf("Spotify API: configured\n")
	} else {
		r.printf("Spotify API: not configured\n")
	}

	if r.db == nil {
		r.printf("Catalog: not configured\n")
		return nil
	}
	s, err := r.db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog stats: %w", err)
	}
	r.printf("Catalog: %d tracks, %d files (%s)\n", s.Tracks, s.Files, r.cfg.CatalogDBPath)
	return nil
}

func formatDuration(ms int64) string {
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// CacheStats prints query cache statistics.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	r.printf("Cache: %d/%d entries (%s)\n", r.cache.Len(), r.cfg.CacheCapacity, r.cfg.CacheFile)
	return nil
}

// CacheClear empties the query cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	n := r.cache.Len()
	r.cache.Clear()
	r.printf("Cleared %d cache entries\n", n)
	return nil
}
