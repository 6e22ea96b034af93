package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCanceled  AppointmentStatus = "CANCELED"
)

// CanTransitionTo reports whether a status change is allowed. Canceling is
// allowed from any non-terminal state; completed and canceled are terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case AppointmentScheduled:
		return next == AppointmentConfirmed || next == AppointmentCompleted || next == AppointmentCanceled
	case AppointmentConfirmed:
		return next == AppointmentCompleted || next == AppointmentCanceled
	default:
		return false
	}
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID         `bun:"id,pk,type:uuid"`
	CompanyID       uuid.UUID         `bun:"company_id,notnull,type:uuid"`
	ClientID        uuid.UUID         `bun:"client_id,notnull,type:uuid"`
	ServiceID       uuid.UUID         `bun:"service_id,notnull,type:uuid"`
	StaffID         uuid.UUID         `bun:"staff_id,notnull,type:uuid"`
	StartTime       time.Time         `bun:"start_time,notnull"`
	EndTime         time.Time         `bun:"end_time,notnull"`
	Status          AppointmentStatus `bun:"status,notnull"`
	Notes           string            `bun:"notes"`
	ExternalEventID string            `bun:"external_event_id"`
	CreatedAt       time.Time         `bun:"created_at,notnull"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Status == "" {
			a.Status = AppointmentScheduled
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// ScheduleBlock is a manually declared unavailability window for one staff
// member, or for every staff member when StaffID is nil. The window is a
// time-of-day range on a single calendar day, interpreted in the company's
// timezone.
type ScheduleBlock struct {
	bun.BaseModel `bun:"table:schedule_blocks"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	CompanyID   uuid.UUID  `bun:"company_id,notnull,type:uuid"`
	StaffID     *uuid.UUID `bun:"staff_id,type:uuid"`
	Day         time.Time  `bun:"day,notnull,type:date"`
	StartMinute int        `bun:"start_minute,notnull"`
	EndMinute   int        `bun:"end_minute,notnull"`
	Reason      string     `bun:"reason"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
}

// Window resolves the block to an absolute half-open interval in loc.
func (b ScheduleBlock) Window(loc *time.Location) (time.Time, time.Time) {
	midnight := time.Date(b.Day.Year(), b.Day.Month(), b.Day.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(b.StartMinute) * time.Minute),
		midnight.Add(time.Duration(b.EndMinute) * time.Minute)
}

// WorkingHours is one weekly recurring availability window for a staff member.
// A staff member with no rows is treated as unconstrained.
type WorkingHours struct {
	bun.BaseModel `bun:"table:staff_working_hours"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	CompanyID   uuid.UUID `bun:"company_id,notnull,type:uuid"`
	StaffID     uuid.UUID `bun:"staff_id,notnull,type:uuid"`
	Weekday     int       `bun:"weekday,notnull"`
	StartMinute int       `bun:"start_minute,notnull"`
	EndMinute   int       `bun:"end_minute,notnull"`
}

// StaffCalendarLink maps a staff member to their externally hosted calendar.
// Absence of a link means the staff member has no external constraint.
type StaffCalendarLink struct {
	bun.BaseModel `bun:"table:staff_calendar_links"`

	StaffID      uuid.UUID `bun:"staff_id,pk,type:uuid"`
	CompanyID    uuid.UUID `bun:"company_id,notnull,type:uuid"`
	CalendarID   string    `bun:"calendar_id,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}
