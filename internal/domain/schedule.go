package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire and storage form of a calendar date.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire form of a 24h wall-clock time.
	ClockLayout = "15:04"
)

// WorkingHours describes the provider's daily bookable window, expressed as
// local hours of day in the provider's home timezone. Immutable after
// construction; loaded once from configuration at startup.
type WorkingHours struct {
	StartHour    int
	EndHour      int
	SlotDuration time.Duration
	Location     *time.Location
}

func NewWorkingHours(startHour, endHour int, slotDuration time.Duration, timezone string) (WorkingHours, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return WorkingHours{}, fmt.Errorf("working hours %d-%d out of range: need 0 <= start < end <= 24", startHour, endHour)
	}
	if slotDuration <= 0 {
		return WorkingHours{}, fmt.Errorf("slot duration must be positive, got %s", slotDuration)
	}
	loc, err := LoadZone(timezone)
	if err != nil {
		return WorkingHours{}, err
	}
	return WorkingHours{
		StartHour:    startHour,
		EndHour:      endHour,
		SlotDuration: slotDuration,
		Location:     loc,
	}, nil
}

// LoadZone resolves an IANA timezone identifier.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

// ParseInstant converts a local calendar date plus wall-clock time in loc
// into a UTC instant. All storage and comparison happens on the returned
// instant; only rendering back to a caller uses a location again.
func ParseInstant(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: want YYYY-MM-DD and HH:MM", date, clock)
	}
	return t.UTC(), nil
}

// ParseDate validates a bare calendar date string and returns it as a UTC
// midnight, used only for day-by-day iteration.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return t, nil
}

// WindowFor returns the provider's UTC working window for the given calendar
// date, interpreted in the provider's home timezone. The window runs from
// StartHour local time for EndHour-StartHour hours of absolute time.
func (wh WorkingHours) WindowFor(date string) (Interval, error) {
	day, err := time.ParseInLocation(DateLayout, date, wh.Location)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return wh.windowForDay(day), nil
}

// WindowContaining returns the working window for the provider-local
// calendar date of the given instant.
func (wh WorkingHours) WindowContaining(t time.Time) Interval {
	return wh.windowForDay(t.In(wh.Location))
}

func (wh WorkingHours) windowForDay(local time.Time) Interval {
	start := time.Date(local.Year(), local.Month(), local.Day(), wh.StartHour, 0, 0, 0, wh.Location)
	end := start.Add(time.Duration(wh.EndHour-wh.StartHour) * time.Hour)
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// DateKey returns the canonical day-record key for an instant: the
// provider's local calendar date. Every read and write of a day record uses
// this one rule, regardless of the timezone a request arrived in.
func (wh WorkingHours) DateKey(t time.Time) string {
	return t.In(wh.Location).Format(DateLayout)
}
