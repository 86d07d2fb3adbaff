package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-command-service/internal/models"
	"ai-voice-command-service/internal/observability/logging"
	"ai-voice-command-service/internal/observability/metrics"
	"ai-voice-command-service/internal/schema"
)

// DefaultHostTag is stamped when no host tag is configured.
const DefaultHostTag = "local"

// Recorder writes one record per call and never reports failure to the caller.
type Recorder struct {
	sink      Sink
	host      string
	timeout   time.Duration
	validator *schema.Validator
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// NewRecorder wraps sink. host is the tag stamped on every record, empty
// selects DefaultHostTag; timeout bounds each write (0 disables).
func NewRecorder(sink Sink, host string, timeout time.Duration, m *metrics.Metrics) *Recorder {
	if host == "" {
		host = DefaultHostTag
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Recorder{
		sink:      sink,
		host:      host,
		timeout:   timeout,
		validator: schema.New(),
		metrics:   m,
		log:       logging.WithComponent("telemetry"),
		now:       time.Now,
	}
}

// Record stamps, validates and writes rec. A record that fails validation is
// logged and still written. Write failures are logged as TelemetryWriteFailed,
// counted and dropped. No retry.
func (r *Recorder) Record(ctx context.Context, rec models.TelemetryRecord) {
	rec.Host = r.host
	rec.RecordedAt = r.now()

	if err := r.validator.Validate(rec); err != nil {
		r.metrics.RecordTelemetryInvalid(r.sink.Name())
		r.log.Warn().Err(err).
			Str("backend", r.sink.Name()).
			Str("eventId", rec.EventID).
			Str("outcome", rec.Outcome).
			Msg("Writing incomplete telemetry record")
	}

	start := time.Now()
	err := r.write(ctx, rec)
	r.metrics.RecordTelemetryWrite(r.sink.Name(), err, time.Since(start).Seconds())
	if err != nil {
		r.log.Error().Err(err).
			Str("backend", r.sink.Name()).
			Str("eventId", rec.EventID).
			Str("outcome", rec.Outcome).
			Msg("TelemetryWriteFailed")
	}
}

func (r *Recorder) write(ctx context.Context, rec models.TelemetryRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrWriteFailed, p)
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.sink.Write(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// EnsureSchema prepares the backend.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	return r.sink.EnsureSchema(ctx)
}

// Close closes the backend.
func (r *Recorder) Close() error {
	return r.sink.Close()
}
