package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BookingSlot is one booked appointment inside a day record. Slots are
// append-only: once written they are never mutated. Params carries the
// original booking request payload verbatim.
type BookingSlot struct {
	ID        uuid.UUID       `json:"id"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Params    json.RawMessage `json:"params,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (s BookingSlot) Interval() Interval {
	return Interval{Start: s.StartTime.UTC(), End: s.EndTime.UTC()}
}

// DayRecord holds every booking for one provider-local calendar date. A
// record is created on the first booking of a date and grows by appending to
// Slots; the core never deletes records.
type DayRecord struct {
	bun.BaseModel `bun:"table:day_records"`

	DateKey   string        `bun:"date_key,pk"`
	Slots     []BookingSlot `bun:"slots,type:jsonb,notnull"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func (d *DayRecord) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		d.UpdatedAt = now
	}
	return nil
}

// Intervals returns the booked intervals in insertion order.
func (d DayRecord) Intervals() []Interval {
	out := make([]Interval, 0, len(d.Slots))
	for _, s := range d.Slots {
		out = append(out, s.Interval())
	}
	return out
}
