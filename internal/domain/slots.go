package domain

import "time"

type TimeSpan struct {
	Start time.Time
	End   time.Time
}

// AvailableSlots returns slot start times within [windowStart, windowEnd)
// where a booking of length duration would not overlap any busy span. All
// inputs are expected to share a location.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []TimeSpan) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []TimeSpan) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
