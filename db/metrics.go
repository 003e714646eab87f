package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Statement operations recorded in Metrics.
const (
	OpCreateTable = "create_table"
	OpInsert      = "insert"
	OpSelect      = "select"
	OpCount       = "count"
	OpUpdate      = "update"
	OpDelete      = "delete"
)

// Metrics provides Prometheus metrics for a Session. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	statements        *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	transactions      *prometheus.CounterVec
	openConnections   prometheus.Gauge
}

// NewMetrics creates the collectors for a Session and registers them with reg.
// If reg is nil, the collectors are created but not registered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Total number of statements executed",
			},
			[]string{"operation", "status"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Duration of statement execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions ended",
			},
			[]string{"outcome"},
		),
		openConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_connections",
				Help:      "Current number of connections held by the session",
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.statements, m.statementDuration, m.transactions, m.openConnections} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// RecordStatement records the execution of one statement.
func (m *Metrics) RecordStatement(operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.statements.WithLabelValues(operation, status).Inc()
	m.statementDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordTransaction records the end of a transaction. outcome is "commit" or
// "rollback".
func (m *Metrics) RecordTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.openConnections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.openConnections.Dec()
}
