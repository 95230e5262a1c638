package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"apptbook/backend/internal/metrics"
	"apptbook/backend/internal/service/scheduling"
	"apptbook/backend/internal/store"
)

// maxBookingBodyBytes caps booking payloads; metadata beyond this is abuse.
const maxBookingBodyBytes = 64 << 10

type schedulingService interface {
	FreeSlots(ctx context.Context, date, timezone string) ([]time.Time, error)
	Book(ctx context.Context, in scheduling.BookInput) error
	EventsBetween(ctx context.Context, startDate, endDate string) ([]scheduling.Event, error)
}

type AppointmentsHandler struct {
	svc     schedulingService
	metrics metrics.Recorder
	log     *slog.Logger
}

func NewAppointmentsHandler(svc schedulingService, rec metrics.Recorder, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsHandler{
		svc:     svc,
		metrics: rec,
		log:     log.With(slog.String("component", "rest.appointments")),
	}
}

func (h *AppointmentsHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "FreeSlots"))

	q := r.URL.Query()
	date := q.Get("date")
	timezone := q.Get("timezone")

	slots, err := h.svc.FreeSlots(r.Context(), date, timezone)
	if err != nil {
		var vErr *scheduling.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("date", date), slog.String("timezone", timezone))
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		log.Error("free slots failed", slog.Any("err", err), slog.String("date", date))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.RecordFreeSlotQuery()

	out := make([]string, len(slots))
	for i, t := range slots {
		out[i] = t.Format(time.RFC3339)
	}

	log.Debug("free slots listed", slog.String("date", date), slog.String("timezone", timezone), slog.Int("count", len(out)))
	writeJSON(w, http.StatusOK, out)
}

type bookRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Duration int    `json:"duration"`
}

func (h *AppointmentsHandler) BookSlots(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "BookSlots"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBookingBodyBytes))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "unreadable_body"), slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var req bookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn("invalid request", slog.String("reason", "malformed_json"), slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	err = h.svc.Book(r.Context(), scheduling.BookInput{
		Date:     req.Date,
		Time:     req.Time,
		Timezone: req.Timezone,
		Duration: req.Duration,
		Params:   json.RawMessage(body),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			h.metrics.RecordBookingConflict()
			log.Info("booking conflict", slog.String("date", req.Date), slog.String("time", req.Time))
			writeError(w, http.StatusUnprocessableEntity, "AlreadyExists")
			return
		case errors.Is(err, scheduling.ErrOutOfHours):
			log.Info("booking outside working hours", slog.String("date", req.Date), slog.String("time", req.Time))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var vErr *scheduling.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("date", req.Date), slog.String("time", req.Time))
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		log.Error("booking failed", slog.Any("err", err), slog.String("date", req.Date), slog.String("time", req.Time))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.RecordBooking()
	log.Info("slot booked",
		slog.String("date", req.Date),
		slog.String("time", req.Time),
		slog.String("timezone", req.Timezone),
		slog.Int("duration_minutes", req.Duration),
	)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *AppointmentsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "GetEvents"))

	q := r.URL.Query()
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")

	events, err := h.svc.EventsBetween(r.Context(), startDate, endDate)
	if err != nil {
		var vErr *scheduling.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("start_date", startDate), slog.String("end_date", endDate))
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		log.Error("events list failed", slog.Any("err", err), slog.String("start_date", startDate), slog.String("end_date", endDate))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Debug("events listed", slog.String("start_date", startDate), slog.String("end_date", endDate), slog.Int("count", len(events)))
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
