// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcript_editor"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsLoaded   prometheus.Counter
	SessionsReset    prometheus.Counter
	LoadDuration     prometheus.Histogram
	ConfirmsTotal    *prometheus.CounterVec
	UnsavedSegments  prometheus.Gauge
	WebsocketClients prometheus.Gauge

	// Edit metrics
	EditsTotal     *prometheus.CounterVec
	EditsRejected  *prometheus.CounterVec
	UndoTotal      prometheus.Counter
	RedoTotal      prometheus.Counter
	SavesTotal     *prometheus.CounterVec
	CommitFailures *prometheus.CounterVec

	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Playback metrics
	PlaybackTicks    prometheus.Counter
	ResolveLatency   prometheus.Histogram
	ResolverDropped  prometheus.Counter
	ResolverStale    prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_loaded_total",
			Help:      "Total number of transcripts loaded into an editor session",
		}),
		SessionsReset: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reset_total",
			Help:      "Total number of editor session resets",
		}),
		LoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to fetch and index a transcript",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		ConfirmsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirms_total",
			Help:      "Total number of transcript confirmations",
		}, []string{"result"}),
		UnsavedSegments: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsaved_segments",
			Help:      "Number of segments with changes not yet persisted",
		}),
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected session websocket clients",
		}),

		// Edit metrics
		EditsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Total number of committed edits",
		}, []string{"edit_type"}),
		EditsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_rejected_total",
			Help:      "Total number of edits rejected before reaching the backend",
		}, []string{"edit_type"}),
		UndoTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_total",
			Help:      "Total number of undo operations applied",
		}),
		RedoTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redo_total",
			Help:      "Total number of redo operations applied",
		}),
		SavesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Total number of segment saves",
		}, []string{"result"}),
		CommitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Total number of backend commits that failed",
		}, []string{"operation", "kind"}),

		// Backend metrics
		BackendRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend requests",
		}, []string{"operation", "status"}),
		BackendLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"operation"}),

		// Playback metrics
		PlaybackTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_ticks_total",
			Help:      "Total number of playback ticks processed",
		}),
		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_latency_seconds",
			Help:      "Time to resolve a playback time to a word",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		ResolverDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_dropped_total",
			Help:      "Total number of queued resolve requests dropped for newer ones",
		}),
		ResolverStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_stale_total",
			Help:      "Total number of resolve responses discarded as stale",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordLoad records a transcript load.
func (m *Metrics) RecordLoad(durationSeconds float64) {
	m.SessionsLoaded.Inc()
	m.LoadDuration.Observe(durationSeconds)
}

// RecordReset records a session reset.
func (m *Metrics) RecordReset() {
	m.SessionsReset.Inc()
	m.UnsavedSegments.Set(0)
}

// RecordConfirm records a confirm attempt.
func (m *Metrics) RecordConfirm(err error) {
	m.ConfirmsTotal.WithLabelValues(result(err)).Inc()
}

// SetUnsaved records the current unsaved segment count.
func (m *Metrics) SetUnsaved(n int) {
	m.UnsavedSegments.Set(float64(n))
}

// SetWebsocketClients records the number of connected page clients.
func (m *Metrics) SetWebsocketClients(n int) {
	m.WebsocketClients.Set(float64(n))
}

// RecordEdit records a committed edit.
func (m *Metrics) RecordEdit(editType string) {
	m.EditsTotal.WithLabelValues(editType).Inc()
}

// RecordEditRejected records an edit that failed local validation.
func (m *Metrics) RecordEditRejected(editType string) {
	m.EditsRejected.WithLabelValues(editType).Inc()
}

// RecordUndo records an undo.
func (m *Metrics) RecordUndo() {
	m.UndoTotal.Inc()
}

// RecordRedo records a redo.
func (m *Metrics) RecordRedo() {
	m.RedoTotal.Inc()
}

// RecordSave records a segment save.
func (m *Metrics) RecordSave(err error) {
	m.SavesTotal.WithLabelValues(result(err)).Inc()
}

// RecordCommitFailure records a failed backend commit.
func (m *Metrics) RecordCommitFailure(operation, kind string) {
	m.CommitFailures.WithLabelValues(operation, kind).Inc()
}

// RecordBackendRequest records a backend round trip.
func (m *Metrics) RecordBackendRequest(operation, status string, latencySeconds float64) {
	m.BackendRequests.WithLabelValues(operation, status).Inc()
	m.BackendLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// RecordTick records a processed playback tick.
func (m *Metrics) RecordTick() {
	m.PlaybackTicks.Inc()
}

// RecordResolve records a completed resolve.
func (m *Metrics) RecordResolve(latencySeconds float64) {
	m.ResolveLatency.Observe(latencySeconds)
}

// RecordResolverDropped records a queued request superseded before it ran.
func (m *Metrics) RecordResolverDropped() {
	m.ResolverDropped.Inc()
}

// RecordResolverStale records a response discarded by sequence check.
func (m *Metrics) RecordResolverStale() {
	m.ResolverStale.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
