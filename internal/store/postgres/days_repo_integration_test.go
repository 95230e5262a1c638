package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"apptbook/backend/internal/domain"
	"apptbook/backend/internal/store"
)

func integrationRepo(t *testing.T) *DayRepo {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("APPTBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("APPTBOOK_TEST_DATABASE_URL not set")
	}

	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	return NewDayRepo(db)
}

// testDateKey returns a key no other run can collide with and arranges for
// its row to be removed afterwards.
func testDateKey(t *testing.T, repo *DayRepo) string {
	t.Helper()

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	key := "it-" + hex.EncodeToString(b)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = repo.db.NewRaw("DELETE FROM day_records WHERE date_key = ?", key).Exec(ctx)
	})

	return key
}

func testSlot(t *testing.T, start time.Time, d time.Duration) domain.BookingSlot {
	t.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("uuid.NewV7 error: %v", err)
	}
	return domain.BookingSlot{
		ID:        id,
		StartTime: start.UTC(),
		EndTime:   start.Add(d).UTC(),
		Params:    json.RawMessage(`{"source":"integration"}`),
		CreatedAt: time.Now().UTC(),
	}
}

func TestPostgresIntegration_DayLifecycle(t *testing.T) {
	repo := integrationRepo(t)
	key := testDateKey(t, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := repo.GetDay(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetDay on missing key = %v, want store.ErrNotFound", err)
	}

	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	first := testSlot(t, start, 30*time.Minute)
	if err := repo.AppendSlot(ctx, key, first); err != nil {
		t.Fatalf("AppendSlot (new day) error: %v", err)
	}

	rec, err := repo.GetDay(ctx, key)
	if err != nil {
		t.Fatalf("GetDay error: %v", err)
	}
	if len(rec.Slots) != 1 || rec.Slots[0].ID != first.ID {
		t.Fatalf("day = %+v, want the single appended slot", rec)
	}
	if !rec.Slots[0].StartTime.Equal(first.StartTime) || !rec.Slots[0].EndTime.Equal(first.EndTime) {
		t.Fatalf("stored interval = %v-%v, want %v-%v",
			rec.Slots[0].StartTime, rec.Slots[0].EndTime, first.StartTime, first.EndTime)
	}

	dup := testSlot(t, start, 30*time.Minute)
	if err := repo.AppendSlot(ctx, key, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate AppendSlot = %v, want store.ErrConflict", err)
	}

	second := testSlot(t, start.Add(30*time.Minute), 30*time.Minute)
	if err := repo.AppendSlot(ctx, key, second); err != nil {
		t.Fatalf("back-to-back AppendSlot error: %v", err)
	}

	rec, err = repo.GetDay(ctx, key)
	if err != nil {
		t.Fatalf("GetDay error: %v", err)
	}
	if len(rec.Slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(rec.Slots))
	}
	if rec.Slots[0].ID != first.ID || rec.Slots[1].ID != second.ID {
		t.Fatalf("slot order lost: %v", []uuid.UUID{rec.Slots[0].ID, rec.Slots[1].ID})
	}

	replacement := domain.DayRecord{DateKey: key, Slots: []domain.BookingSlot{first}}
	if err := repo.PutDay(ctx, replacement); err != nil {
		t.Fatalf("PutDay error: %v", err)
	}
	rec, err = repo.GetDay(ctx, key)
	if err != nil {
		t.Fatalf("GetDay error: %v", err)
	}
	if len(rec.Slots) != 1 {
		t.Fatalf("len(slots) after PutDay = %d, want 1", len(rec.Slots))
	}
}

func TestPostgresIntegration_ConcurrentAppendsAdmitExactlyOne(t *testing.T) {
	repo := integrationRepo(t)
	key := testDateKey(t, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)

	const workers = 8
	slots := make([]domain.BookingSlot, workers)
	for i := range slots {
		slots[i] = testSlot(t, start, 30*time.Minute)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.AppendSlot(ctx, key, slots[i])
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("ok = %d, conflicts = %d, want 1 and %d", ok, conflicts, workers-1)
	}

	rec, err := repo.GetDay(ctx, key)
	if err != nil {
		t.Fatalf("GetDay error: %v", err)
	}
	if len(rec.Slots) != 1 {
		t.Fatalf("len(slots) = %d, want exactly one committed booking", len(rec.Slots))
	}
}
