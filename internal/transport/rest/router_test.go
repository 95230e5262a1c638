package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"apptbook/backend/internal/metrics"
	"apptbook/backend/internal/service/scheduling"
)

func newTestRouter(t *testing.T, svc schedulingService, healthCheck func(ctx context.Context) error, limiter *RateLimiter) http.Handler {
	t.Helper()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	return NewRouter(RouterDeps{
		Appointments:   NewAppointmentsHandler(svc, collector, nil),
		HealthCheck:    healthCheck,
		Limiter:        limiter,
		MetricsHandler: metrics.Handler(registry),
		Metrics:        collector,
		RequestTimeout: 5 * time.Second,
	})
}

func okService() *fakeService {
	return &fakeService{
		freeSlotsFn: func(ctx context.Context, date, timezone string) ([]time.Time, error) {
			return []time.Time{}, nil
		},
		bookFn: func(ctx context.Context, in scheduling.BookInput) error {
			return nil
		},
		eventsBetweenFn: func(ctx context.Context, startDate, endDate string) ([]scheduling.Event, error) {
			return []scheduling.Event{}, nil
		},
	}
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, okService(), nil, nil)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/appointment/freeSlots?date=2024-01-10&timezone=UTC", http.StatusOK},
		{http.MethodPost, "/appointment/bookSlots", http.StatusOK},
		{http.MethodGet, "/appointment/getEvents?startDate=2024-01-09&endDate=2024-01-11", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/appointment/nope", http.StatusNotFound},
		{http.MethodDelete, "/appointment/freeSlots", http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		var body io.Reader
		if tc.method == http.MethodPost {
			body = strings.NewReader(`{"date":"2024-01-10","time":"09:00","timezone":"UTC","duration":30}`)
		}
		req := httptest.NewRequest(tc.method, tc.path, body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
	}
}

func TestRouter_HealthzReportsStorageOutage(t *testing.T) {
	router := newTestRouter(t, okService(), func(ctx context.Context) error {
		return errors.New("connection refused")
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestRouter_RateLimitAppliesToAppointmentRoutesOnly(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	defer limiter.Stop()

	router := newTestRouter(t, okService(), nil, limiter)

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:50000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if got := do("/appointment/freeSlots?date=2024-01-10&timezone=UTC"); got != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", got)
	}
	if got := do("/appointment/freeSlots?date=2024-01-10&timezone=UTC"); got != http.StatusTooManyRequests {
		t.Fatalf("burst-exceeding request: status = %d, want 429", got)
	}
	if got := do("/healthz"); got != http.StatusOK {
		t.Fatalf("/healthz throttled: status = %d, want 200", got)
	}
}

func TestRateLimiter_TracksClientsSeparately(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	defer limiter.Stop()

	if !limiter.allow("10.0.0.1") {
		t.Fatalf("first request for client A should pass")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatalf("second immediate request for client A should be throttled")
	}
	if !limiter.allow("10.0.0.2") {
		t.Fatalf("client B must not share client A's bucket")
	}
}

func TestRouter_PanicRecoversTo500(t *testing.T) {
	svc := okService()
	svc.freeSlotsFn = func(ctx context.Context, date, timezone string) ([]time.Time, error) {
		panic("boom")
	}
	router := newTestRouter(t, svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/appointment/freeSlots?date=2024-01-10&timezone=UTC", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestTimeoutMiddleware_AddsDeadline(t *testing.T) {
	var hadDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
	})

	handler := TimeoutMiddleware(time.Second)(inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !hadDeadline {
		t.Fatalf("expected request context to carry a deadline")
	}
}
