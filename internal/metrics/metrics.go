// Package metrics provides Prometheus metrics for the transcription pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livetranscribe"

// Metrics holds all collectors for the service. Every Record method is safe
// to call on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	Registry *prometheus.Registry

	// Connection metrics
	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	ConnectionDuration prometheus.Histogram
	ConnectionsStopped *prometheus.CounterVec

	// Audio metrics
	AudioChunksReceived prometheus.Counter
	AudioBytesReceived  prometheus.Counter
	QueueDepth          prometheus.Histogram

	// Recognition metrics
	AttemptsStarted prometheus.Counter
	Restarts        *prometheus.CounterVec
	ResultsEmitted  *prometheus.CounterVec
	ErrorEvents     *prometheus.CounterVec

	// Translation metrics
	Translations       *prometheus.CounterVec
	TranslationLatency prometheus.Histogram
}

// New creates a registry and registers every collector on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of client streaming connections accepted",
		}),
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open client streaming connections",
		}),
		ConnectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of client streaming connections in seconds",
			Buckets:   []float64{1, 5, 30, 60, 240, 600, 1800, 3600, 7200},
		}),
		ConnectionsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_stopped_total",
			Help:      "Client connections closed, by stop reason",
		}, []string{"reason"}),

		AudioChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio frames received from clients",
		}),
		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received from clients",
		}),
		QueueDepth: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_queue_depth",
			Help:      "Buffered audio chunks observed after each push",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),

		AttemptsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_attempts_total",
			Help:      "Total recognition sessions opened against the backend",
		}),
		Restarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_restarts_total",
			Help:      "Recognition session restarts, by reason",
		}, []string{"reason"}),
		ResultsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_emitted_total",
			Help:      "Transcript events sent to clients, by backend finality",
		}, []string{"backend_final"}),
		ErrorEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_events_total",
			Help:      "Error events sent to clients, by classification",
		}, []string{"class"}),

		Translations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translation requests, by outcome",
		}, []string{"outcome"}),
		TranslationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translation round-trip latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
}

func (m *Metrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) RecordConnectionClosed(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(durationSeconds)
	m.ConnectionsStopped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordAudioChunk(bytes int, queueDepth int) {
	if m == nil {
		return
	}
	m.AudioChunksReceived.Inc()
	m.AudioBytesReceived.Add(float64(bytes))
	m.QueueDepth.Observe(float64(queueDepth))
}

func (m *Metrics) RecordAttemptStarted() {
	if m == nil {
		return
	}
	m.AttemptsStarted.Inc()
}

func (m *Metrics) RecordRestart(reason string) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordResult(backendFinal bool) {
	if m == nil {
		return
	}
	m.ResultsEmitted.WithLabelValues(strconv.FormatBool(backendFinal)).Inc()
}

func (m *Metrics) RecordErrorEvent(class string) {
	if m == nil {
		return
	}
	m.ErrorEvents.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordTranslation(outcome string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.Translations.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.TranslationLatency.Observe(latencySeconds)
	}
}
