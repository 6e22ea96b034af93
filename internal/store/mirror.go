package store

import (
	"context"
	"time"

	"salonsched/internal/domain"
)

// MirrorResolveFunc performs the remote calendar call for one queued entry.
// For create operations it returns the external event id to store on the
// appointment; other operations return "".
type MirrorResolveFunc func(ctx context.Context, entry domain.MirrorEntry) (externalEventID string, err error)

type MirrorProcessOptions struct {
	Limit       int
	Backoff     time.Duration
	MaxAttempts int
}

type MirrorQueue interface {
	// ProcessDue claims a batch of due entries (skipping ones locked by
	// another worker), resolves each through fn, and records the outcome.
	// It returns the number of entries attempted.
	ProcessDue(ctx context.Context, opts MirrorProcessOptions, fn MirrorResolveFunc) (int, error)

	// Complete marks an entry done outside the worker loop, used by the
	// synchronous best-effort mirror right after a commit.
	Complete(ctx context.Context, entryID int64, externalEventID string) error
}
