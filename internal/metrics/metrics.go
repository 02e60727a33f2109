// Package metrics exposes engine activity as Prometheus counters.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/conteo/internal/ir"
)

// Namespace prefixes every metric name.
const Namespace = "conteo"

// Metrics counts engine events on its own registry.
// It implements engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal          *prometheus.CounterVec
	ScanDuplicatesTotal prometheus.Counter
	HistoryTotal        *prometheus.CounterVec
	HistoryFailures     prometheus.Counter
	FinalizationsTotal  prometheus.Counter
	DiscrepanciesTotal  *prometheus.CounterVec
}

// New creates and registers the counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scan_events_total",
				Help:      "Accepted scan and adjust events",
			},
			[]string{"kind"},
		),
		ScanDuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scan_duplicates_total",
				Help:      "Retried scan submissions collapsed onto an existing event",
			},
		),
		HistoryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "history_entries_total",
				Help:      "History entries written",
			},
			[]string{"operation"},
		),
		HistoryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "history_failures_total",
				Help:      "History entries that could not be written",
			},
		),
		FinalizationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "finalizations_total",
				Help:      "Counts finalized",
			},
		),
		DiscrepanciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "discrepancies_total",
				Help:      "Discrepancy records produced at finalization",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.ScansTotal,
		m.ScanDuplicatesTotal,
		m.HistoryTotal,
		m.HistoryFailures,
		m.FinalizationsTotal,
		m.DiscrepanciesTotal,
	)
	return m
}

// Registry returns the registry holding every counter.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every counter to path in the Prometheus text format,
// for the node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// ScanAccepted counts a stored scan or adjust event.
func (m *Metrics) ScanAccepted(kind ir.EventKind) {
	m.ScansTotal.WithLabelValues(string(kind)).Inc()
}

// ScanDuplicate counts a retried scan that matched an existing event.
func (m *Metrics) ScanDuplicate() {
	m.ScanDuplicatesTotal.Inc()
}

// HistoryRecorded counts a history entry by operation.
func (m *Metrics) HistoryRecorded(op ir.Operation) {
	m.HistoryTotal.WithLabelValues(string(op)).Inc()
}

// HistoryFailed counts a history entry that could not be written.
func (m *Metrics) HistoryFailed() {
	m.HistoryFailures.Inc()
}

// Finalized counts a finalization and its discrepancies by kind.
func (m *Metrics) Finalized(records []ir.Discrepancy) {
	m.FinalizationsTotal.Inc()
	for _, d := range records {
		m.DiscrepanciesTotal.WithLabelValues(string(d.Kind)).Inc()
	}
}
