// Package search turns track records into ranked secondary-source
// candidates, backed by the persistent query cache.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dvallejo/tunesync/internal/cache"
	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/logger"
)

// Source is the secondary-source search adapter.
type Source interface {
	Search(ctx context.Context, query string, limit int) ([]domain.CandidateResult, error)
}

// suffixes that hurt search precision, e.g. "(2011 Remaster)".
var noiseSuffix = regexp.MustCompile(`(?i)\s*\(.*?(remaster|remix|live|version|edit).*?\)`)

// BuildQuery derives the search query "Artist(s) - Title" from a record,
// stripping reissue suffixes.
func BuildQuery(record domain.TrackRecord) string {
	query := strings.TrimSpace(record.ArtistLine() + " - " + record.Title)
	return strings.TrimSpace(noiseSuffix.ReplaceAllString(query, ""))
}

// Searcher coordinates the cache and the source adapter. Adapter failures
// surface as empty results; they are counted separately so the batch report
// can tell "nothing matched" from "the source was down".
type Searcher struct {
	source Source
	cache  *cache.Cache
	limit  int
	log    *logger.Logger

	errorCount atomic.Int64
}

// NewSearcher builds a Searcher. A nil cache disables caching.
func NewSearcher(source Source, c *cache.Cache, limit int, log *logger.Logger) *Searcher {
	if limit <= 0 {
		limit = constants.DefaultSearchLimit
	}
	if log == nil {
		log = logger.Default()
	}
	return &Searcher{
		source: source,
		cache:  c,
		limit:  limit,
		log:    log.WithComponent("search"),
	}
}

// ErrorCount returns the number of adapter failures seen so far.
func (s *Searcher) ErrorCount() int64 {
	return s.errorCount.Load()
}

// Search returns ranked candidates for the record, best first. An empty
// slice means no usable candidate; adapter failures additionally bump the
// error counter.
func (s *Searcher) Search(ctx context.Context, record domain.TrackRecord) []domain.CandidateResult {
	query := BuildQuery(record)
	if query == "" || query == "-" {
		return nil
	}

	if s.cache != nil {
		if entry, ok := s.cache.Lookup(query); ok {
			s.log.Debug("Cache hit", "query", query, "candidates", len(entry.Candidates))
			return entry.Candidates
		}
	}

	raw, err := s.searchWithRetry(ctx, query)
	if err != nil {
		s.errorCount.Add(1)
		s.log.Warn("Search adapter failed", "query", query, "error", err)
		return nil
	}

	ranked := Rank(query, record, raw)
	if s.cache != nil {
		s.cache.Store(query, ranked)
	}
	return ranked
}

func (s *Searcher) searchWithRetry(ctx context.Context, query string) ([]domain.CandidateResult, error) {
	var lastErr error
	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * constants.DefaultRetryBase)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		candidates, err := s.source.Search(ctx, query, s.limit)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", constants.DefaultRetryCount, lastErr)
}

// Rank scores and orders candidates, best first. Scoring weighs text
// similarity against query, duration closeness to the record (±10%
// tolerated), and official-uploader signals.
func Rank(query string, record domain.TrackRecord, candidates []domain.CandidateResult) []domain.CandidateResult {
	ranked := make([]domain.CandidateResult, 0, len(candidates))
	for _, c := range candidates {
		c.Query = query
		c.Score = score(query, record, c)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func score(query string, record domain.TrackRecord, c domain.CandidateResult) float64 {
	sim := similarity(query, c.Title+" "+c.Uploader)
	dur := durationCloseness(record.Duration, c.Duration)

	official := 0.0
	if isOfficial(c) {
		official = 1.0
	}

	return 0.5*sim + 0.35*dur + 0.15*official
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(s)) {
		t = strings.Trim(t, "()[]-–.,!?\"'")
		if t != "" {
			tokens[t] = struct{}{}
		}
	}
	return tokens
}

// similarity is the fraction of query tokens present in the candidate text.
func similarity(query, text string) float64 {
	qt := tokenize(query)
	if len(qt) == 0 {
		return 0
	}
	ct := tokenize(text)

	matched := 0
	for t := range qt {
		if _, ok := ct[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(qt))
}

// durationCloseness is 1.0 within the tolerance band and decays linearly
// beyond it. Unknown durations score neutral. Durations are in seconds.
func durationCloseness(want, got int) float64 {
	if want <= 0 || got <= 0 {
		return 0.5
	}

	dev := float64(got-want) / float64(want)
	if dev < 0 {
		dev = -dev
	}
	if dev <= constants.DurationTolerance {
		return 1.0
	}

	penalty := (dev - constants.DurationTolerance) * 2
	if penalty >= 1 {
		return 0
	}
	return 1 - penalty
}

func isOfficial(c domain.CandidateResult) bool {
	uploader := strings.ToLower(c.Uploader)
	if strings.HasSuffix(uploader, " - topic") {
		return true
	}
	if strings.Contains(uploader, "official") || strings.Contains(strings.ToLower(c.Title), "official") {
		return true
	}
	return c.ViewCount >= 10_000_000
}
