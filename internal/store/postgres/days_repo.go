package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"apptbook/backend/internal/domain"
	"apptbook/backend/internal/store"
)

// appendRetries bounds re-runs of the booking transaction when postgres
// aborts it with a serialization or deadlock failure.
const appendRetries = 3

type DayRepo struct {
	db *bun.DB
}

func NewDayRepo(db *bun.DB) *DayRepo {
	return &DayRepo{db: db}
}

func (r *DayRepo) GetDay(ctx context.Context, dateKey string) (domain.DayRecord, error) {
	var rec domain.DayRecord
	err := r.db.NewSelect().
		Model(&rec).
		Where("date_key = ?", dateKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DayRecord{}, store.ErrNotFound
		}
		return domain.DayRecord{}, fmt.Errorf("get day %s: %w", dateKey, err)
	}
	return rec, nil
}

func (r *DayRepo) PutDay(ctx context.Context, rec domain.DayRecord) error {
	_, err := r.db.NewInsert().
		Model(&rec).
		On("CONFLICT (date_key) DO UPDATE").
		Set("slots = EXCLUDED.slots").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put day %s: %w", rec.DateKey, err)
	}
	return nil
}

// AppendSlot runs the read-check-append sequence inside a transaction that
// holds a per-date advisory lock, so concurrent bookings for the same date
// serialize and every clash check sees all previously committed slots.
// Bookings for different dates take different locks and proceed
// independently.
func (r *DayRepo) AppendSlot(ctx context.Context, dateKey string, slot domain.BookingSlot) error {
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		lastErr = r.appendSlotOnce(ctx, dateKey, slot)
		if lastErr == nil || !retryableTxError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (r *DayRepo) appendSlotOnce(ctx context.Context, dateKey string, slot domain.BookingSlot) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDay(ctx, tx, dateKey); err != nil {
			return err
		}

		var rec domain.DayRecord
		err := tx.NewSelect().
			Model(&rec).
			Where("date_key = ?", dateKey).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			rec = domain.DayRecord{DateKey: dateKey, Slots: []domain.BookingSlot{slot}}
			if _, err := tx.NewInsert().Model(&rec).Exec(ctx); err != nil {
				return fmt.Errorf("insert day %s: %w", dateKey, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("read day %s: %w", dateKey, err)
		}

		if domain.Clashes(rec.Intervals(), slot.Interval()) {
			return store.ErrConflict
		}

		rec.Slots = append(rec.Slots, slot)
		if _, err := tx.NewUpdate().
			Model(&rec).
			Column("slots", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("append slot to day %s: %w", dateKey, err)
		}
		return nil
	})
}

func lockDay(ctx context.Context, tx bun.Tx, dateKey string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", dateKey).Exec(ctx)
	return err
}

// retryableTxError matches serialization_failure and deadlock_detected,
// which postgres raises for transient transaction ordering conflicts.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
