package domain

import (
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back intervals touch but do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasAppointmentOverlap reports whether any non-canceled appointment for
// staffID overlaps [start, end). excludeID lets a reschedule ignore its own
// prior booking; pass uuid.Nil when creating.
func HasAppointmentOverlap(appts []Appointment, staffID uuid.UUID, start, end time.Time, excludeID uuid.UUID) bool {
	for _, a := range appts {
		if a.StaffID != staffID {
			continue
		}
		if a.Status == AppointmentCanceled {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if Overlaps(start, end, a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

// HasBlockConflict reports whether any schedule block for staffID, or any
// staff-agnostic block, intersects [start, end). Block windows are resolved
// against loc.
func HasBlockConflict(blocks []ScheduleBlock, staffID uuid.UUID, start, end time.Time, loc *time.Location) bool {
	for _, b := range blocks {
		if b.StaffID != nil && *b.StaffID != staffID {
			continue
		}
		bStart, bEnd := b.Window(loc)
		if Overlaps(start, end, bStart, bEnd) {
			return true
		}
	}
	return false
}

// WithinWorkingHours reports whether [start, end) falls entirely inside one of
// the staff member's declared windows for that weekday, resolved against loc.
// A staff member with no declared hours is unconstrained.
func WithinWorkingHours(hours []WorkingHours, staffID uuid.UUID, start, end time.Time, loc *time.Location) bool {
	declared := false
	localStart := start.In(loc)
	localEnd := end.In(loc)
	for _, h := range hours {
		if h.StaffID != staffID {
			continue
		}
		declared = true
		if int(localStart.Weekday()) != h.Weekday {
			continue
		}
		midnight := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)
		winStart := midnight.Add(time.Duration(h.StartMinute) * time.Minute)
		winEnd := midnight.Add(time.Duration(h.EndMinute) * time.Minute)
		if !localStart.Before(winStart) && !localEnd.After(winEnd) {
			return true
		}
	}
	return !declared
}
