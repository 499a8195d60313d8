package catalog

import (
	"context"
	"errors"

	"github.com/dvallejo/tunesync/internal/domain"
	"github.com/dvallejo/tunesync/internal/logger"
)

// Classification is the result of matching a playlist batch against the
// catalog. Missing preserves the original playlist order.
type Classification struct {
	Present  map[string]domain.CatalogEntry
	Missing  []domain.TrackRecord
	Degraded bool
}

// Matcher classifies playlist entries as present in or missing from the
// catalog. It issues one batched lookup (plus one ISRC fallback lookup) per
// classification; it never fails a batch on an unreachable catalog.
type Matcher struct {
	adapter Adapter
	log     *logger.Logger
}

// NewMatcher creates a Matcher. A nil adapter means no catalog is
// configured; every entry classifies as missing.
func NewMatcher(adapter Adapter, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Default()
	}
	return &Matcher{
		adapter: adapter,
		log:     log.WithComponent("catalog"),
	}
}

// Classify splits records into catalog-present and missing. An unavailable
// catalog degrades to all-missing instead of aborting the batch.
func (m *Matcher) Classify(ctx context.Context, records []domain.TrackRecord) Classification {
	out := Classification{Present: make(map[string]domain.CatalogEntry)}

	if m.adapter == nil || len(records) == 0 {
		out.Degraded = m.adapter == nil && len(records) > 0
		out.Missing = append(out.Missing, records...)
		return out
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.ID != "" && !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}

	entries, err := m.adapter.LookupMany(ctx, ids)
	if err != nil {
		if errors.Is(err, domain.ErrAdapterUnavailable) {
			m.log.Warn("catalog unavailable, treating all entries as missing", "error", err)
		} else {
			m.log.Error("catalog lookup failed, treating all entries as missing", "error", err)
		}
		out.Degraded = true
		out.Missing = append(out.Missing, records...)
		return out
	}

	for id, entry := range entries {
		if entry.HasUsableFile() {
			out.Present[id] = entry
		}
	}

	// ISRC fallback for records the primary identifier missed.
	var isrcs []string
	isrcOwners := make(map[string][]string)
	for _, r := range records {
		if _, ok := out.Present[r.ID]; ok || r.ISRC == "" {
			continue
		}
		if len(isrcOwners[r.ISRC]) == 0 {
			isrcs = append(isrcs, r.ISRC)
		}
		isrcOwners[r.ISRC] = append(isrcOwners[r.ISRC], r.ID)
	}
	if len(isrcs) > 0 {
		byISRC, err := m.adapter.LookupByISRC(ctx, isrcs)
		if err != nil {
			m.log.Warn("isrc fallback lookup failed", "error", err)
		} else {
			for isrc, entry := range byISRC {
				if !entry.HasUsableFile() {
					continue
				}
				for _, owner := range isrcOwners[isrc] {
					out.Present[owner] = entry
				}
			}
		}
	}

	for _, r := range records {
		if _, ok := out.Present[r.ID]; !ok {
			out.Missing = append(out.Missing, r)
		}
	}

	m.log.Info("classified playlist entries",
		"total", len(records),
		"present", len(records)-len(out.Missing),
		"missing", len(out.Missing))

	return out
}
