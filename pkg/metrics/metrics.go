package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "orderfill"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Orders    = "orders"
	Job       = "job"
	Publisher = "publisher"
	Mirror    = "mirror"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple indexer instances.
type Labels struct {
	ChainID       string // Cosmos chain ID (e.g., "osmosis-1")
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.ChainID != "" {
		labels["chain_id"] = l.ChainID
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Watermark state
	watermark prometheus.Gauge

	// Ingestion job
	jobRuns     *prometheus.CounterVec
	jobDuration prometheus.Histogram

	// Order counters
	ordersFetched    prometheus.Counter
	ordersInserted   prometheus.Counter
	ordersDuplicate  prometheus.Counter
	ordersFailed     prometheus.Counter
	rawResponsesSent prometheus.Counter
	txsMalformed     prometheus.Counter

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge

	// Fan-out publishing
	published       *prometheus.CounterVec
	publishDuration prometheus.Histogram

	// Mirror consumer
	mirrored       *prometheus.CounterVec
	mirrorDuration prometheus.Histogram
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., chain_id), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "watermark",
			Help:      "Highest block height stored, read at the start of each ingestion run",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Job,
			Name:      "runs_total",
			Help:      "Total ingestion runs by status",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Job,
			Name:      "duration_seconds",
			Help:      "Time to run one ingestion cycle end-to-end",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		ordersFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "fetched_total",
			Help:      "Total order records mapped from fetched transactions",
		}),
		ordersInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "inserted_total",
			Help:      "Total order records persisted",
		}),
		ordersDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "duplicate_total",
			Help:      "Total order records rejected because the tx hash was already stored",
		}),
		ordersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "failed_total",
			Help:      "Total order records that failed to persist",
		}),
		rawResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "raw_responses_total",
			Help:      "Total raw transaction responses written to the audit table",
		}),
		txsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Orders,
			Name:      "malformed_transactions_total",
			Help:      "Total fetched transactions skipped because a fill_order could not be decoded",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			// LCD tx search is slow compared to JSON-RPC; buckets run up to 30s.
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Publisher,
			Name:      "messages_total",
			Help:      "Total order messages published by status",
		}, []string{"status"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Publisher,
			Name:      "duration_seconds",
			Help:      "Time to publish one order message",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		mirrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Mirror,
			Name:      "messages_total",
			Help:      "Total order messages consumed by the mirror by status",
		}, []string{"status"}),
		mirrorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Mirror,
			Name:      "process_duration_seconds",
			Help:      "Time to store one consumed order message",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	err := errors.Join(
		reg.Register(m.watermark),
		reg.Register(m.jobRuns),
		reg.Register(m.jobDuration),
		reg.Register(m.ordersFetched),
		reg.Register(m.ordersInserted),
		reg.Register(m.ordersDuplicate),
		reg.Register(m.ordersFailed),
		reg.Register(m.rawResponsesSent),
		reg.Register(m.txsMalformed),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
		reg.Register(m.published),
		reg.Register(m.publishDuration),
		reg.Register(m.mirrored),
		reg.Register(m.mirrorDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// SetWatermark records the watermark observed at the start of a run.
func (m *Metrics) SetWatermark(height uint64) {
	if m == nil {
		return
	}
	m.watermark.Set(float64(height))
}

// RecordJobRun records one ingestion run outcome with its duration.
func (m *Metrics) RecordJobRun(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(status(err)).Inc()
	m.jobDuration.Observe(durationSeconds)
}

// AddOrdersFetched records order records mapped in a run.
func (m *Metrics) AddOrdersFetched(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersFetched.Add(float64(count))
}

// IncOrdersInserted increments the persisted order counter.
func (m *Metrics) IncOrdersInserted() {
	if m == nil {
		return
	}
	m.ordersInserted.Inc()
}

// IncOrdersDuplicate increments the duplicate order counter.
func (m *Metrics) IncOrdersDuplicate() {
	if m == nil {
		return
	}
	m.ordersDuplicate.Inc()
}

// IncOrdersFailed increments the failed order counter.
func (m *Metrics) IncOrdersFailed() {
	if m == nil {
		return
	}
	m.ordersFailed.Inc()
}

// IncRawResponses increments the audit row counter.
func (m *Metrics) IncRawResponses() {
	if m == nil {
		return
	}
	m.rawResponsesSent.Inc()
}

// IncMalformed increments the skipped malformed transaction counter.
func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	m.txsMalformed.Inc()
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, status(err)).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordPublish records an order publish attempt with duration.
// Pass nil error for successful publishes, non-nil for failures.
func (m *Metrics) RecordPublish(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(status(err)).Inc()
	m.publishDuration.Observe(durationSeconds)
}

// RecordMirrored records one consumed message outcome with its processing time.
func (m *Metrics) RecordMirrored(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.mirrored.WithLabelValues(status(err)).Inc()
	m.mirrorDuration.Observe(durationSeconds)
}
