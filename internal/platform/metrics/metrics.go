// Package metrics owns the prometheus registry shared by the event bus and
// the record store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	EventsPublished    *prometheus.CounterVec
	EventHandlerErrors *prometheus.CounterVec
	StoreWrites        *prometheus.CounterVec
	StoreReadFailures  *prometheus.CounterVec
}

// New registers every collector on a fresh registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "events_published_total",
			Help:      "Events published on the in-process bus, by kind.",
		}, []string{"kind"}),
		EventHandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "event_handler_errors_total",
			Help:      "Subscriber handlers that returned an error, by kind.",
		}, []string{"kind"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "record_store_writes_total",
			Help:      "Record store writes, by key family and operation.",
		}, []string{"family", "op"}),
		StoreReadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "record_store_read_failures_total",
			Help:      "Persisted values that could not be decoded and were treated as absent.",
		}, []string{"family"}),
	}

	reg.MustRegister(m.EventsPublished, m.EventHandlerErrors, m.StoreWrites, m.StoreReadFailures)
	return m
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
