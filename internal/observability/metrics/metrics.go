// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_voice_command"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Transcript metrics
	TranscriptsReceived *prometheus.CounterVec
	TranscriptsPartial  prometheus.Counter

	// Pipeline metrics
	PipelineOutcomes *prometheus.CounterVec
	PipelineInFlight prometheus.Gauge
	PipelineDuration prometheus.Histogram
	StageLatency     *prometheus.HistogramVec
	StageFailures    *prometheus.CounterVec
	CommandsExecuted *prometheus.CounterVec

	// Utterance metrics
	UtterancesTotal    prometheus.Counter
	UtterancesDropped  *prometheus.CounterVec
	UtteranceLimitHits *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// STT metrics
	STTErrors        *prometheus.CounterVec
	STTStreamsActive prometheus.Gauge
	STTRPCLatency    *prometheus.HistogramVec

	// Telemetry sink metrics
	TelemetryWrites       *prometheus.CounterVec
	TelemetryWriteErrors  *prometheus.CounterVec
	TelemetryWriteLatency *prometheus.HistogramVec
	TelemetryInvalid      *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TranscriptsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_received_total",
			Help:      "Total number of final transcripts handed to the pipeline",
		}, []string{"source"}),
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcripts received",
		}),

		PipelineOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Total number of pipeline runs by terminal outcome",
		}, []string{"outcome"}),
		PipelineInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_in_flight",
			Help:      "Number of stage chains currently running",
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a full stage chain in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of individual pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline stage failures",
		}, []string{"stage"}),
		CommandsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_executed_total",
			Help:      "Total number of executed commands by intent",
		}, []string{"intent"}),

		UtterancesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterance boundaries detected",
		}),
		UtterancesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Total number of utterances dropped without a final transcript",
		}, []string{"reason"}),
		UtteranceLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterance_limit_exceeded_total",
			Help:      "Total number of times utterance limits were exceeded",
		}, []string{"limit_type"}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes forwarded to the recognizer",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames forwarded to the recognizer",
		}),

		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of recognition stream errors",
		}, []string{"provider", "code"}),
		STTStreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stt_streams_active",
			Help:      "Number of open recognizer gRPC streams",
		}),
		STTRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_rpc_duration_seconds",
			Help:      "Duration of recognizer gRPC calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		}, []string{"method", "code"}),

		TelemetryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_writes_total",
			Help:      "Total number of telemetry write attempts",
		}, []string{"backend"}),
		TelemetryWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_write_errors_total",
			Help:      "Total number of dropped telemetry records",
		}, []string{"backend"}),
		TelemetryWriteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telemetry_write_latency_seconds",
			Help:      "Telemetry write latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend"}),
		TelemetryInvalid: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_invalid_records_total",
			Help:      "Total number of records written despite failing validation",
		}, []string{"backend"}),
	}
}

// RecordTranscript records a final transcript entering the pipeline.
func (m *Metrics) RecordTranscript(source string) {
	m.TranscriptsReceived.WithLabelValues(source).Inc()
}

// RecordPartialTranscript records an interim transcript.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordChainStart records a stage chain starting.
func (m *Metrics) RecordChainStart() {
	m.PipelineInFlight.Inc()
}

// RecordChainEnd records a stage chain reaching its terminal outcome.
func (m *Metrics) RecordChainEnd(outcome string, durationSeconds float64) {
	m.PipelineInFlight.Dec()
	m.PipelineDuration.Observe(durationSeconds)
	m.PipelineOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStage records one stage call.
func (m *Metrics) RecordStage(stage string, err error, latencySeconds float64) {
	m.StageLatency.WithLabelValues(stage).Observe(latencySeconds)
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordCommand records an executed command.
func (m *Metrics) RecordCommand(intent string) {
	m.CommandsExecuted.WithLabelValues(intent).Inc()
}

// RecordUtterance records an utterance boundary detection.
func (m *Metrics) RecordUtterance() {
	m.UtterancesTotal.Inc()
}

// RecordUtteranceDropped records an utterance being dropped.
func (m *Metrics) RecordUtteranceDropped(reason string) {
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordLimitExceeded records when an utterance limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.UtteranceLimitHits.WithLabelValues(limitType).Inc()
}

// RecordAudioReceived records audio bytes and frames forwarded.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordSTTError records a recognition stream error.
func (m *Metrics) RecordSTTError(provider, code string) {
	m.STTErrors.WithLabelValues(provider, code).Inc()
}

// RecordTelemetryWrite records a telemetry write attempt.
func (m *Metrics) RecordTelemetryWrite(backend string, err error, latencySeconds float64) {
	m.TelemetryWrites.WithLabelValues(backend).Inc()
	m.TelemetryWriteLatency.WithLabelValues(backend).Observe(latencySeconds)
	if err != nil {
		m.TelemetryWriteErrors.WithLabelValues(backend).Inc()
	}
}

// RecordTelemetryInvalid records a record that failed validation.
func (m *Metrics) RecordTelemetryInvalid(backend string) {
	m.TelemetryInvalid.WithLabelValues(backend).Inc()
}
