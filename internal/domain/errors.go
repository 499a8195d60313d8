package domain

import "errors"

// Sentinel errors for the collaborator adapters. Per-entry failures are
// captured into that entry's ResolutionOutcome and never propagate past the
// orchestrator; only these surface to the caller, and only when a
// collaborator is wholly unreachable at batch start.
var (
	// ErrAdapterUnavailable marks a collaborator that cannot be reached
	// (network down, remote DB gone). The pipeline degrades instead of
	// aborting where possible.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrNotFound marks a playlist or track the source does not know.
	ErrNotFound = errors.New("not found")

	// ErrAuth marks rejected credentials at the playlist source.
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited marks a source that refused the request for quota
	// reasons.
	ErrRateLimited = errors.New("rate limited")
)
