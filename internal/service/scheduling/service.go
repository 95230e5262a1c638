package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apptbook/backend/internal/domain"
	"apptbook/backend/internal/store"
)

// ValidationError marks client input that could not be interpreted: bad
// dates, clock times, timezones, durations, or query ranges.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ErrOutOfHours rejects bookings that do not lie fully inside the provider's
// working window for the requested date.
var ErrOutOfHours = errors.New("requested time is outside the provider's working hours")

type Service struct {
	repo  store.DayRepository
	hours domain.WorkingHours
}

func NewService(repo store.DayRepository, hours domain.WorkingHours) *Service {
	return &Service{repo: repo, hours: hours}
}

// FreeSlots returns the unbooked slot starts for date, rendered in the
// requester's timezone. The requested day is pinned to the requester's
// calendar: a slot inside the provider's window but falling on a
// neighbouring local day for the requester is not returned.
func (s *Service) FreeSlots(ctx context.Context, date, timezone string) ([]time.Time, error) {
	loc, err := domain.LoadZone(timezone)
	if err != nil {
		return nil, validationError("%v", err)
	}
	dayStart, err := domain.ParseInstant(date, "00:00", loc)
	if err != nil {
		return nil, validationError("%v", err)
	}
	dayEnd, err := domain.ParseInstant(date, "23:59", loc)
	if err != nil {
		return nil, validationError("%v", err)
	}

	window, err := s.hours.WindowFor(date)
	if err != nil {
		return nil, validationError("%v", err)
	}

	booked, err := s.bookedIntervals(ctx, dayStart, dayEnd, window.Start)
	if err != nil {
		return nil, err
	}

	slots := domain.FreeSlots(window, s.hours.SlotDuration, dayStart, dayEnd, booked)
	out := make([]time.Time, len(slots))
	for i, t := range slots {
		out[i] = t.In(loc)
	}
	return out, nil
}

// bookedIntervals loads every booked interval that could clash with a slot
// on the requester's day. The requester's day spans at most two consecutive
// provider-local dates, and the window start pins the provider date the
// slots themselves belong to.
func (s *Service) bookedIntervals(ctx context.Context, instants ...time.Time) ([]domain.Interval, error) {
	keys := make([]string, 0, len(instants))
	seen := make(map[string]struct{}, len(instants))
	for _, t := range instants {
		key := s.hours.DateKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var out []domain.Interval
	for _, key := range keys {
		rec, err := s.repo.GetDay(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Intervals()...)
	}
	return out, nil
}

type BookInput struct {
	Date     string
	Time     string
	Timezone string
	Duration int // minutes
	Params   json.RawMessage
}

// Book validates the requested interval against the provider's working
// window and delegates the read-check-append to the day store, which runs it
// atomically per date key. A clash surfaces as store.ErrConflict.
func (s *Service) Book(ctx context.Context, in BookInput) error {
	loc, err := domain.LoadZone(in.Timezone)
	if err != nil {
		return validationError("%v", err)
	}
	if in.Duration <= 0 {
		return validationError("duration must be a positive number of minutes, got %d", in.Duration)
	}
	start, err := domain.ParseInstant(in.Date, in.Time, loc)
	if err != nil {
		return validationError("%v", err)
	}
	event, err := domain.NewInterval(start, start.Add(time.Duration(in.Duration)*time.Minute))
	if err != nil {
		return validationError("%v", err)
	}

	window := s.hours.WindowContaining(event.Start)
	if !window.Contains(event) {
		return ErrOutOfHours
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	slot := domain.BookingSlot{
		ID:        id,
		StartTime: event.Start,
		EndTime:   event.End,
		Params:    in.Params,
		CreatedAt: time.Now().UTC(),
	}

	return s.repo.AppendSlot(ctx, s.hours.DateKey(event.Start), slot)
}

// Event is one booked interval, reported in UTC.
type Event struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// EventsBetween flattens every booking from startDate to endDate inclusive,
// in date order and per-date insertion order.
func (s *Service) EventsBetween(ctx context.Context, startDate, endDate string) ([]Event, error) {
	start, err := domain.ParseDate(startDate)
	if err != nil {
		return nil, validationError("%v", err)
	}
	end, err := domain.ParseDate(endDate)
	if err != nil {
		return nil, validationError("%v", err)
	}
	if start.After(end) {
		return nil, validationError("startDate %s is after endDate %s", startDate, endDate)
	}

	events := make([]Event, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rec, err := s.repo.GetDay(ctx, day.Format(domain.DateLayout))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, slot := range rec.Slots {
			events = append(events, Event{StartTime: slot.StartTime.UTC(), EndTime: slot.EndTime.UTC()})
		}
	}
	return events, nil
}
