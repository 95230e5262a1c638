package domain

import "time"

// FreeSlots enumerates unbooked slot starts inside the provider's working
// window, restricted to the requester's calendar day [dayStart, dayEnd).
// Candidates step from the window start by one slot duration; a candidate is
// kept when its slot [cursor, cursor+step) does not clash with any booked
// interval. When the duration does not evenly divide the window, the final
// partial step falls on or past the window end and is excluded by the loop
// bound. Results are ascending UTC instants, recomputed fresh on every call.
func FreeSlots(window Interval, step time.Duration, dayStart, dayEnd time.Time, booked []Interval) []time.Time {
	out := make([]time.Time, 0, int(window.Duration()/step))
	for cursor := window.Start; cursor.Before(window.End); cursor = cursor.Add(step) {
		if cursor.Before(dayStart) || !cursor.Before(dayEnd) {
			continue
		}
		if Clashes(booked, Interval{Start: cursor, End: cursor.Add(step)}) {
			continue
		}
		out = append(out, cursor)
	}
	return out
}
