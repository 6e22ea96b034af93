package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"salonsched/internal/calendar"
	"salonsched/internal/domain"
	"salonsched/internal/store"
)

// Worker drains the calendar outbox: every local appointment change that
// could not be mirrored synchronously is retried here until it lands or
// exhausts its attempts. The worker never touches appointment rows beyond
// recording the external event id; the local store stays authoritative.
type Worker struct {
	queue         store.MirrorQueue
	repo          store.AppointmentRepository
	gateway       calendar.Gateway
	log           *slog.Logger
	interval      time.Duration
	remoteTimeout time.Duration
	opts          store.MirrorProcessOptions
}

type Config struct {
	Interval      time.Duration
	BatchSize     int
	Backoff       time.Duration
	MaxAttempts   int
	RemoteTimeout time.Duration
}

func NewWorker(queue store.MirrorQueue, repo store.AppointmentRepository, gateway calendar.Gateway, log *slog.Logger, cfg Config) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 5 * time.Second
	}
	return &Worker{
		queue:         queue,
		repo:          repo,
		gateway:       gateway,
		log:           log.With(slog.String("component", "mirror")),
		interval:      cfg.Interval,
		remoteTimeout: cfg.RemoteTimeout,
		opts: store.MirrorProcessOptions{
			Limit:       cfg.BatchSize,
			Backoff:     cfg.Backoff,
			MaxAttempts: cfg.MaxAttempts,
		},
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.ProcessDue(ctx, w.opts, w.resolve)
			if err != nil {
				w.log.Error("mirror batch failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				w.log.Debug("mirror batch processed", slog.Int("entries", n))
			}
		}
	}
}

// resolve performs the remote call for one queued entry. An update with no
// external event id yet degrades to a create; the missing staff link means
// the staff member unlinked their calendar and there is nothing to mirror.
func (w *Worker) resolve(ctx context.Context, e domain.MirrorEntry) (string, error) {
	link, err := w.repo.StaffCalendarLink(ctx, e.CompanyID, e.StaffID)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", nil
	}

	var snap calendar.EventSnapshot
	if e.Op != domain.MirrorOpDelete {
		if err := json.Unmarshal(e.Payload, &snap); err != nil {
			return "", fmt.Errorf("decode payload: %w", err)
		}
	}

	rctx, cancel := context.WithTimeout(ctx, w.remoteTimeout)
	defer cancel()

	switch e.Op {
	case domain.MirrorOpCreate:
		if e.ExternalEventID != "" {
			// A previous attempt (or the synchronous push) already
			// created the event; refresh it instead.
			return "", w.gateway.UpdateEvent(rctx, *link, e.ExternalEventID, snap)
		}
		return w.gateway.CreateEvent(rctx, *link, snap)
	case domain.MirrorOpUpdate:
		if e.ExternalEventID == "" {
			return w.gateway.CreateEvent(rctx, *link, snap)
		}
		return "", w.gateway.UpdateEvent(rctx, *link, e.ExternalEventID, snap)
	case domain.MirrorOpDelete:
		if e.ExternalEventID == "" {
			return "", nil
		}
		return "", w.gateway.DeleteEvent(rctx, *link, e.ExternalEventID)
	default:
		return "", fmt.Errorf("unknown mirror op %q", e.Op)
	}
}
