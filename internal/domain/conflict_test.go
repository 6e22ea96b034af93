package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	staffA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	staffB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func TestOverlaps_HalfOpenSemantics(t *testing.T) {
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical", base, base.Add(30 * time.Minute), base, base.Add(30 * time.Minute), true},
		{"partial overlap", base, base.Add(30 * time.Minute), base.Add(15 * time.Minute), base.Add(45 * time.Minute), true},
		{"contained", base, base.Add(time.Hour), base.Add(15 * time.Minute), base.Add(30 * time.Minute), true},
		{"back to back", base, base.Add(30 * time.Minute), base.Add(30 * time.Minute), base.Add(time.Hour), false},
		{"back to back reversed", base.Add(30 * time.Minute), base.Add(time.Hour), base, base.Add(30 * time.Minute), false},
		{"disjoint", base, base.Add(30 * time.Minute), base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps reversed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasAppointmentOverlap(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	existing := Appointment{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000901"),
		StaffID:   staffA,
		Status:    AppointmentScheduled,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	}

	t.Run("overlapping candidate conflicts", func(t *testing.T) {
		if !HasAppointmentOverlap([]Appointment{existing}, staffA, start.Add(15*time.Minute), start.Add(45*time.Minute), uuid.Nil) {
			t.Fatalf("expected overlap")
		}
	})

	t.Run("back-to-back candidate does not conflict", func(t *testing.T) {
		if HasAppointmentOverlap([]Appointment{existing}, staffA, start.Add(30*time.Minute), start.Add(time.Hour), uuid.Nil) {
			t.Fatalf("back-to-back booking must not conflict")
		}
	})

	t.Run("other staff ignored", func(t *testing.T) {
		if HasAppointmentOverlap([]Appointment{existing}, staffB, start, start.Add(30*time.Minute), uuid.Nil) {
			t.Fatalf("other staff must not conflict")
		}
	})

	t.Run("canceled excluded", func(t *testing.T) {
		canceled := existing
		canceled.Status = AppointmentCanceled
		if HasAppointmentOverlap([]Appointment{canceled}, staffA, start, start.Add(45*time.Minute), uuid.Nil) {
			t.Fatalf("canceled appointment must not conflict")
		}
	})

	t.Run("exclude self on reschedule", func(t *testing.T) {
		if HasAppointmentOverlap([]Appointment{existing}, staffA, start.Add(10*time.Minute), start.Add(40*time.Minute), existing.ID) {
			t.Fatalf("rescheduling over own slot must not reject itself")
		}
	})
}

func TestHasBlockConflict(t *testing.T) {
	loc := time.UTC
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)
	block := ScheduleBlock{
		StaffID:     &staffA,
		Day:         day,
		StartMinute: 9 * 60,
		EndMinute:   12 * 60,
		Reason:      "training",
	}

	t.Run("intersecting candidate conflicts", func(t *testing.T) {
		if !HasBlockConflict([]ScheduleBlock{block}, staffA, day.Add(11*time.Hour), day.Add(13*time.Hour), loc) {
			t.Fatalf("expected block conflict")
		}
	})

	t.Run("candidate starting at block end accepted", func(t *testing.T) {
		if HasBlockConflict([]ScheduleBlock{block}, staffA, day.Add(12*time.Hour), day.Add(13*time.Hour), loc) {
			t.Fatalf("candidate at block end must not conflict")
		}
	})

	t.Run("other staff unaffected", func(t *testing.T) {
		if HasBlockConflict([]ScheduleBlock{block}, staffB, day.Add(10*time.Hour), day.Add(11*time.Hour), loc) {
			t.Fatalf("block scoped to staffA must not hit staffB")
		}
	})

	t.Run("wildcard block applies to all staff", func(t *testing.T) {
		wildcard := block
		wildcard.StaffID = nil
		if !HasBlockConflict([]ScheduleBlock{wildcard}, staffB, day.Add(10*time.Hour), day.Add(11*time.Hour), loc) {
			t.Fatalf("wildcard block must apply to every staff member")
		}
	})

	t.Run("block window honors location", func(t *testing.T) {
		lagos, err := time.LoadLocation("Africa/Lagos")
		if err != nil {
			t.Fatalf("LoadLocation error: %v", err)
		}
		// 09:00-12:00 Lagos is 08:00-11:00 UTC.
		if !HasBlockConflict([]ScheduleBlock{block}, staffA, time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC), time.Date(2024, 1, 10, 11, 30, 0, 0, time.UTC), lagos) {
			t.Fatalf("expected conflict against Lagos-resolved window")
		}
		if HasBlockConflict([]ScheduleBlock{block}, staffA, time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), lagos) {
			t.Fatalf("candidate after Lagos-resolved window must not conflict")
		}
	})
}

func TestWithinWorkingHours(t *testing.T) {
	loc := time.UTC
	hours := []WorkingHours{
		{StaffID: staffA, Weekday: int(time.Wednesday), StartMinute: 9 * 60, EndMinute: 17 * 60},
	}
	wednesday := time.Date(2024, 1, 10, 0, 0, 0, 0, loc) // a Wednesday

	if !WithinWorkingHours(hours, staffA, wednesday.Add(9*time.Hour), wednesday.Add(10*time.Hour), loc) {
		t.Fatalf("candidate inside window must be accepted")
	}
	if WithinWorkingHours(hours, staffA, wednesday.Add(8*time.Hour), wednesday.Add(10*time.Hour), loc) {
		t.Fatalf("candidate starting before window must be rejected")
	}
	if WithinWorkingHours(hours, staffA, wednesday.Add(24*time.Hour).Add(9*time.Hour), wednesday.Add(24*time.Hour).Add(10*time.Hour), loc) {
		t.Fatalf("candidate on undeclared weekday must be rejected")
	}
	if !WithinWorkingHours(hours, staffB, wednesday.Add(3*time.Hour), wednesday.Add(4*time.Hour), loc) {
		t.Fatalf("staff without declared hours must be unconstrained")
	}
	if !WithinWorkingHours(hours, staffA, wednesday.Add(16*time.Hour), wednesday.Add(17*time.Hour), loc) {
		t.Fatalf("candidate ending exactly at window end must be accepted")
	}
}
