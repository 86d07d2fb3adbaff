package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"ai-voice-command-service/internal/models"
	"ai-voice-command-service/internal/observability/logging"
)

// Log writes records as structured log lines only.
type Log struct {
	log zerolog.Logger
}

// NewLog creates a log-only sink.
func NewLog() *Log {
	return &Log{log: logging.WithComponent("telemetry.log")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) EnsureSchema(context.Context) error { return nil }

func (l *Log) Write(_ context.Context, rec models.TelemetryRecord) error {
	l.log.Info().
		Str("eventId", rec.EventID).
		Str("command", rec.Command).
		Str("response", rec.Response).
		Str("host", rec.Host).
		Str("outcome", rec.Outcome).
		Str("intent", rec.Intent).
		Time("recordedAt", rec.RecordedAt).
		Msg("Command recorded")
	return nil
}

func (l *Log) Close() error { return nil }
