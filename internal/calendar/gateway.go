package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"salonsched/internal/domain"
)

// ErrUnavailable means the external calendar could not answer. Callers decide
// what that costs: the availability check fails closed, mirroring fails open.
var ErrUnavailable = errors.New("external calendar unavailable")

// EventSnapshot is the appointment state mirrored into the external calendar.
type EventSnapshot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Summary       string    `json:"summary"`
	Notes         string    `json:"notes"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Gateway is the capability contract against a remote calendar service. The
// remote calendar is never a source of truth for local state; CheckFree is
// only consulted synchronously at booking time, and the event operations are
// best-effort mirrors.
type Gateway interface {
	CheckFree(ctx context.Context, link domain.StaffCalendarLink, start, end time.Time) (bool, error)
	CreateEvent(ctx context.Context, link domain.StaffCalendarLink, snap EventSnapshot) (string, error)
	UpdateEvent(ctx context.Context, link domain.StaffCalendarLink, externalEventID string, snap EventSnapshot) error
	DeleteEvent(ctx context.Context, link domain.StaffCalendarLink, externalEventID string) error
}
