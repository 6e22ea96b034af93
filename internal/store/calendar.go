package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonsched/internal/domain"
)

// CalendarTx is the per-staff transactional view of the availability store.
// Every implementation must hold a storage-level exclusion scope for the staff
// member (advisory lock plus the no-overlap constraint) for the lifetime of
// the transaction, so concurrent bookings for the same staff serialize at the
// store.
type CalendarTx interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) error

	ListStaffAppointments(ctx context.Context, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListScheduleBlocks(ctx context.Context, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error)
	ListWorkingHours(ctx context.Context, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error)

	EnqueueMirror(ctx context.Context, entry domain.MirrorEntry) (domain.MirrorEntry, error)
}
