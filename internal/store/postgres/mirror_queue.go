package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"salonsched/internal/domain"
	"salonsched/internal/store"
)

type MirrorQueueRepo struct {
	db *bun.DB
}

func NewMirrorQueueRepo(db *bun.DB) *MirrorQueueRepo {
	return &MirrorQueueRepo{db: db}
}

func (q *MirrorQueueRepo) ProcessDue(ctx context.Context, opts store.MirrorProcessOptions, fn store.MirrorResolveFunc) (int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}

	attempted := 0
	err := q.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var entries []domain.MirrorEntry
		err := tx.NewSelect().
			Model(&entries).
			Where("done_at IS NULL").
			Where("next_attempt_at <= now()").
			OrderExpr("id ASC").
			Limit(opts.Limit).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return err
		}

		for i := range entries {
			e := entries[i]
			now := time.Now().UTC()

			// Entries enqueued before the mirror create finished carry
			// no external id; pick up whatever the appointment has by
			// now.
			if e.ExternalEventID == "" {
				extID, err := appointmentExternalEventID(ctx, tx, e)
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						// Appointment is gone and no external id was
						// recorded: nothing left to propagate.
						e.DoneAt = &now
						if _, err := tx.NewUpdate().Model(&e).WherePK().Exec(ctx); err != nil {
							return err
						}
						continue
					}
					return err
				}
				e.ExternalEventID = extID
			}

			attempted++
			extID, ferr := fn(ctx, e)
			e.Attempts++
			if ferr != nil {
				e.LastError = ferr.Error()
				if e.Attempts >= opts.MaxAttempts {
					e.DoneAt = &now
				} else {
					e.NextAttemptAt = now.Add(opts.Backoff * time.Duration(e.Attempts))
				}
				if _, err := tx.NewUpdate().Model(&e).WherePK().Exec(ctx); err != nil {
					return err
				}
				continue
			}

			e.LastError = ""
			e.DoneAt = &now
			if _, err := tx.NewUpdate().Model(&e).WherePK().Exec(ctx); err != nil {
				return err
			}
			if extID != "" {
				if err := storeExternalEventID(ctx, tx, e, extID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return attempted, err
}

func (q *MirrorQueueRepo) Complete(ctx context.Context, entryID int64, externalEventID string) error {
	return q.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var entry domain.MirrorEntry
		err := tx.NewSelect().
			Model(&entry).
			Where("id = ?", entryID).
			Where("done_at IS NULL").
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Already resolved, likely by the worker racing us.
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		entry.Attempts++
		entry.LastError = ""
		entry.DoneAt = &now
		if _, err := tx.NewUpdate().Model(&entry).WherePK().Exec(ctx); err != nil {
			return err
		}
		if externalEventID != "" {
			return storeExternalEventID(ctx, tx, entry, externalEventID)
		}
		return nil
	})
}

func appointmentExternalEventID(ctx context.Context, tx bun.Tx, e domain.MirrorEntry) (string, error) {
	var extID string
	err := tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		Column("external_event_id").
		Where("id = ?", e.AppointmentID).
		Scan(ctx, &extID)
	return extID, err
}

func storeExternalEventID(ctx context.Context, tx bun.Tx, e domain.MirrorEntry, externalEventID string) error {
	_, err := tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("external_event_id = ?", externalEventID).
		Set("updated_at = now()").
		Where("id = ?", e.AppointmentID).
		Exec(ctx)
	return err
}
