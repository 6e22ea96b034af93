package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonsched/internal/domain"
)

type AppointmentRepository interface {
	// InStaffTransaction runs fn inside a transaction that owns the staff
	// member's calendar for its duration.
	InStaffTransaction(ctx context.Context, staffID uuid.UUID, fn func(ctx context.Context, tx CalendarTx) error) error

	Get(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, companyID uuid.UUID, staffID *uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)

	// Snapshot reads for the pre-commit local conflict check. These run
	// outside the staff transaction; the commit-time re-check under the
	// lock is the authoritative one.
	ListStaffAppointments(ctx context.Context, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListScheduleBlocks(ctx context.Context, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error)
	ListWorkingHours(ctx context.Context, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error)

	// StaffCalendarLink returns nil without error when the staff member has
	// not linked an external calendar.
	StaffCalendarLink(ctx context.Context, companyID, staffID uuid.UUID) (*domain.StaffCalendarLink, error)
}
