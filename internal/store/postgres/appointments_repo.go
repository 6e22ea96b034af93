package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"salonsched/internal/domain"
	"salonsched/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

// InStaffTransaction serializes all mutations of one staff member's timeline:
// the advisory lock makes concurrent booking attempts for the same staff queue
// behind each other, and the appointments_no_overlap exclusion constraint is
// the final arbiter if anything slips past the in-transaction checks.
func (r *AppointmentRepo) InStaffTransaction(ctx context.Context, staffID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockStaffCalendar(ctx, tx, staffID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockStaffCalendar(ctx context.Context, tx bun.Tx, staffID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", staffID.String()).Exec(ctx)
	return err
}

func (r *AppointmentRepo) Get(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("company_id = ?", companyID).
		Where("id = ?", appointmentID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) List(ctx context.Context, companyID uuid.UUID, staffID *uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("company_id = ?", companyID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC")
	if staffID != nil {
		q = q.Where("staff_id = ?", *staffID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListStaffAppointments(ctx context.Context, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listStaffAppointments(ctx, r.db, companyID, staffID, windowStart, windowEnd)
}

func (r *AppointmentRepo) ListScheduleBlocks(ctx context.Context, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error) {
	return listScheduleBlocks(ctx, r.db, companyID, staffID, dayStart, dayEnd)
}

func (r *AppointmentRepo) ListWorkingHours(ctx context.Context, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error) {
	return listWorkingHours(ctx, r.db, companyID, staffID)
}

func (r *AppointmentRepo) StaffCalendarLink(ctx context.Context, companyID, staffID uuid.UUID) (*domain.StaffCalendarLink, error) {
	var link domain.StaffCalendarLink
	err := r.db.NewSelect().
		Model(&link).
		Where("company_id = ?", companyID).
		Where("staff_id = ?", staffID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				var existing domain.Appointment
				selectErr := r.tx.NewSelect().
					Model(&existing).
					Where("id = ?", m.ID).
					Limit(1).
					Scan(ctx)
				if selectErr != nil {
					return domain.Appointment{}, err
				}

				if !isIdempotentReplay(existing, appt) {
					return domain.Appointment{}, store.ErrIdempotencyConflict
				}

				return existing, nil
			}
		}
		return domain.Appointment{}, err
	}

	return m, nil
}

// isIdempotentReplay reports whether a duplicate-key insert carries the same
// booking parameters as the stored row, meaning it is a retry of the same
// request rather than a key collision.
func isIdempotentReplay(existing, appt domain.Appointment) bool {
	return existing.CompanyID == appt.CompanyID &&
		existing.ClientID == appt.ClientID &&
		existing.ServiceID == appt.ServiceID &&
		existing.StaffID == appt.StaffID &&
		existing.Notes == appt.Notes &&
		existing.StartTime.Equal(appt.StartTime) &&
		existing.EndTime.Equal(appt.EndTime)
}

func (r calendarTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt

	res, err := r.tx.NewUpdate().
		Model(&m).
		WherePK().
		Where("company_id = ?", m.CompanyID).
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r calendarTx) GetAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.tx.NewSelect().
		Model(&appt).
		Where("company_id = ?", companyID).
		Where("id = ?", appointmentID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r calendarTx) DeleteAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("company_id = ?", companyID).
		Where("id = ?", appointmentID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r calendarTx) ListStaffAppointments(ctx context.Context, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listStaffAppointments(ctx, r.tx, companyID, staffID, windowStart, windowEnd)
}

func (r calendarTx) ListScheduleBlocks(ctx context.Context, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error) {
	return listScheduleBlocks(ctx, r.tx, companyID, staffID, dayStart, dayEnd)
}

func (r calendarTx) ListWorkingHours(ctx context.Context, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error) {
	return listWorkingHours(ctx, r.tx, companyID, staffID)
}

// EnqueueMirror supersedes still-pending entries for the appointment so the
// worker never replays a stale snapshot over a newer change, then queues the
// new operation. A delete supersedes everything pending; other ops only
// supersede their own kind, preserving relative ordering of create/delete.
func (r calendarTx) EnqueueMirror(ctx context.Context, entry domain.MirrorEntry) (domain.MirrorEntry, error) {
	supersede := r.tx.NewUpdate().
		Model((*domain.MirrorEntry)(nil)).
		Set("done_at = now()").
		Set("last_error = ?", "superseded").
		Where("appointment_id = ?", entry.AppointmentID).
		Where("done_at IS NULL")
	if entry.Op != domain.MirrorOpDelete {
		supersede = supersede.Where("op = ?", entry.Op)
	}
	_, err := supersede.Exec(ctx)
	if err != nil {
		return domain.MirrorEntry{}, err
	}

	now := time.Now().UTC()
	if entry.NextAttemptAt.IsZero() {
		entry.NextAttemptAt = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	if _, err := r.tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
		return domain.MirrorEntry{}, err
	}
	return entry, nil
}

func listStaffAppointments(ctx context.Context, db bun.IDB, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("company_id = ?", companyID).
		Where("staff_id = ?", staffID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func listScheduleBlocks(ctx context.Context, db bun.IDB, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error) {
	var rows []domain.ScheduleBlock
	err := db.NewSelect().
		Model(&rows).
		Where("company_id = ?", companyID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("staff_id = ?", staffID).WhereOr("staff_id IS NULL")
		}).
		Where("day >= ?", dayStart).
		Where("day <= ?", dayEnd).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func listWorkingHours(ctx context.Context, db bun.IDB, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error) {
	var rows []domain.WorkingHours
	err := db.NewSelect().
		Model(&rows).
		Where("company_id = ?", companyID).
		Where("staff_id = ?", staffID).
		OrderExpr("weekday ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
