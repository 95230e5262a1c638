// Package metrics collects and exposes prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the recording interface used by the transport layer.
type Recorder interface {
	RecordFreeSlotQuery()
	RecordBooking()
	RecordBookingConflict()
	RecordHTTPStatus(statusCode int)
}

// Collector is the prometheus-backed Recorder implementation.
type Collector struct {
	freeSlotQueries  prometheus.Counter
	bookings         prometheus.Counter
	bookingConflicts prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		freeSlotQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apptbook_free_slot_queries_total",
			Help: "Total number of successful free-slot queries.",
		}),
		bookings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apptbook_bookings_total",
			Help: "Total number of successfully booked slots.",
		}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apptbook_booking_conflicts_total",
			Help: "Total number of bookings rejected because the slot was taken.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apptbook_http_status_total",
			Help: "Responses by HTTP status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.freeSlotQueries,
		c.bookings,
		c.bookingConflicts,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordFreeSlotQuery() {
	c.freeSlotQueries.Inc()
}

func (c *Collector) RecordBooking() {
	c.bookings.Inc()
}

func (c *Collector) RecordBookingConflict() {
	c.bookingConflicts.Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the HTTP handler serving the prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
