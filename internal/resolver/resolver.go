// Package resolver drives the per-track resolution pipeline: catalog check,
// candidate search, retrieval and tagging, with per-entry failure isolation.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dvallejo/tunesync/internal/catalog"
	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/download"
	"github.com/dvallejo/tunesync/internal/logger"
)

// Matcher classifies a playlist batch against the catalog.
type Matcher interface {
	Classify(ctx context.Context, records []domain.TrackRecord) catalog.Classification
}

// Searcher returns ranked candidates for a record, best first, and keeps a
// running count of adapter failures.
type Searcher interface {
	Search(ctx context.Context, record domain.TrackRecord) []domain.CandidateResult
	ErrorCount() int64
}

// Retriever turns a candidate into a finished, tagged file.
type Retriever interface {
	RetrieveAndTag(ctx context.Context, candidate domain.CandidateResult, record domain.TrackRecord, destDir, format string) (string, bool, error)
}

// Progress receives per-entry notifications as outcomes reach terminal
// state. Called from worker goroutines; implementations must be safe for
// concurrent use.
type Progress func(outcome domain.ResolutionOutcome)

// Counts are the running totals exposed while a batch is being resolved.
type Counts struct {
	Found      atomic.Int64
	Downloaded atomic.Int64
	Failed     atomic.Int64
}

// Orchestrator owns the lifetime of one batch's outcomes.
type Orchestrator struct {
	matcher   Matcher
	searcher  Searcher
	retriever Retriever
	workers   int
	log       *logger.Logger

	Counts   Counts
	progress Progress
}

// Options tune an Orchestrator.
type Options struct {
	Workers  int
	Progress Progress
	Logger   *logger.Logger
}

// New builds an Orchestrator around the three pipeline collaborators.
func New(matcher Matcher, searcher Searcher, retriever Retriever, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Orchestrator{
		matcher:   matcher,
		searcher:  searcher,
		retriever: retriever,
		workers:   opts.Workers,
		log:       opts.Logger.WithComponent("resolver"),
		progress:  opts.Progress,
	}
}

// Resolve runs the pipeline for every record and returns the batch report,
// outcomes in original playlist order. One entry's failure never aborts the
// others. On context cancellation, entries not yet finished report
// RetrievalFailed with the context error; completed entries keep their
// outcomes.
func (o *Orchestrator) Resolve(ctx context.Context, playlist string, records []domain.TrackRecord, destDir, format string) *domain.Report {
	report := &domain.Report{
		BatchID:   uuid.NewString(),
		Playlist:  playlist,
		StartedAt: time.Now(),
	}
	log := o.log.WithBatch(report.BatchID)
	log.Info("Resolving batch", "playlist", playlist, "tracks", len(records))

	classification := o.matcher.Classify(ctx, records)
	if classification.Degraded {
		log.Warn("Catalog unavailable, treating all entries as missing")
	}

	outcomes := make([]domain.ResolutionOutcome, len(records))

	// Catalog hits short-circuit to terminal state; only missing entries go
	// through the worker pool.
	var pending []int
	for i, record := range records {
		if _, ok := classification.Present[record.ID]; ok {
			outcomes[i] = domain.ResolutionOutcome{Track: record, Status: domain.StatusFoundInCatalog}
			o.Counts.Found.Add(1)
			o.notify(outcomes[i])
			continue
		}
		pending = append(pending, i)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for _, i := range pending {
		if ctx.Err() != nil {
			// Remaining entries fail cleanly instead of being dropped,
			// with the same accounting as in-worker failures.
			outcomes[i] = o.cancelled(records[i], ctx.Err())
			o.Counts.Failed.Add(1)
			o.notify(outcomes[i])
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = o.resolveOne(ctx, records[idx], destDir, format)
			o.notify(outcomes[idx])
		}(i)
	}
	wg.Wait()

	report.FinishedAt = time.Now()
	report.Outcomes = outcomes
	report.Summary = summarize(outcomes, o.searcher.ErrorCount())

	log.Info("Batch finished",
		"found", report.Summary.Found,
		"downloaded", report.Summary.Downloaded,
		"no_candidate", report.Summary.NoCandidate,
		"failed", report.Summary.Failed,
		"search_errors", report.Summary.SearchErrors)
	return report
}

// resolveOne runs the per-entry state machine to a terminal outcome. Panics
// in collaborators are contained here so a bad entry cannot take the batch
// down.
func (o *Orchestrator) resolveOne(ctx context.Context, record domain.TrackRecord, destDir, format string) (outcome domain.ResolutionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Panic while resolving entry", "track", record.Title, "panic", r)
			outcome = domain.ResolutionOutcome{
				Track:  record,
				Status: domain.StatusRetrievalFailed,
				Err:    fmt.Errorf("panic: %v", r),
			}
			o.Counts.Failed.Add(1)
		}
	}()

	if ctx.Err() != nil {
		o.Counts.Failed.Add(1)
		return o.cancelled(record, ctx.Err())
	}

	candidates := o.searcher.Search(ctx, record)
	if len(candidates) == 0 {
		return domain.ResolutionOutcome{Track: record, Status: domain.StatusNoCandidate}
	}
	best := candidates[0]

	path, skipped, err := o.retriever.RetrieveAndTag(ctx, best, record, destDir, format)
	if err != nil {
		status := domain.StatusRetrievalFailed
		if errors.Is(err, download.ErrTag) {
			status = domain.StatusTaggingFailed
		}
		o.Counts.Failed.Add(1)
		return domain.ResolutionOutcome{
			Track:     record,
			Status:    status,
			Candidate: &best,
			Path:      path,
			Err:       err,
		}
	}

	o.Counts.Downloaded.Add(1)
	return domain.ResolutionOutcome{
		Track:     record,
		Status:    domain.StatusDownloaded,
		Candidate: &best,
		Path:      path,
		Skipped:   skipped,
	}
}

func (o *Orchestrator) cancelled(record domain.TrackRecord, err error) domain.ResolutionOutcome {
	return domain.ResolutionOutcome{
		Track:  record,
		Status: domain.StatusRetrievalFailed,
		Err:    err,
	}
}

func (o *Orchestrator) notify(outcome domain.ResolutionOutcome) {
	if o.progress != nil {
		o.progress(outcome)
	}
}

func summarize(outcomes []domain.ResolutionOutcome, searchErrors int64) domain.Summary {
	s := domain.Summary{Total: len(outcomes), SearchErrors: int(searchErrors)}
	for _, out := range outcomes {
		switch out.Status {
		case domain.StatusFoundInCatalog:
			s.Found++
		case domain.StatusDownloaded:
			s.Downloaded++
		case domain.StatusNoCandidate:
			s.NoCandidate++
		default:
			if out.Status.Failed() {
				s.Failed++
			}
		}
	}
	return s
}
