package domain

import (
	"fmt"
	"time"
)

// Interval is a span of absolute time. Both endpoints are UTC instants and
// the start strictly precedes the end. Intervals are values and never
// mutated after construction.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Interval{}, fmt.Errorf("interval end %s must be after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether other lies fully inside iv, boundaries included.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Clashes reports whether candidate overlaps any of the existing intervals.
// A candidate clashes when its start falls in [existing.Start, existing.End)
// or its end falls in (existing.Start, existing.End]. Starting exactly at an
// existing booking's end, or ending exactly at an existing booking's start,
// is not a clash, so back-to-back bookings are allowed. Slot generation and
// booking validation share this one predicate.
func Clashes(existing []Interval, candidate Interval) bool {
	for _, e := range existing {
		startInside := !candidate.Start.Before(e.Start) && candidate.Start.Before(e.End)
		endInside := candidate.End.After(e.Start) && !candidate.End.After(e.End)
		if startInside || endInside {
			return true
		}
	}
	return false
}
