package store

import (
	"context"

	"apptbook/backend/internal/domain"
)

// DayRepository is the persistence collaborator for date-keyed day records.
// Keys are provider-local calendar dates (YYYY-MM-DD).
type DayRepository interface {
	// GetDay returns the record for the given date key, or ErrNotFound when
	// no booking exists for that date yet.
	GetDay(ctx context.Context, dateKey string) (domain.DayRecord, error)

	// PutDay creates or fully replaces a day record.
	PutDay(ctx context.Context, rec domain.DayRecord) error

	// AppendSlot atomically appends slot to the record for dateKey, creating
	// the record if absent. It returns ErrConflict when the slot's interval
	// clashes with a slot committed before the call; the check and the
	// append are guaranteed to observe the same state.
	AppendSlot(ctx context.Context, dateKey string, slot domain.BookingSlot) error
}
