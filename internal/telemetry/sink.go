// Package telemetry records one command record per pipeline run.
//
// A Sink is a storage backend; the Recorder in front of it stamps, validates
// and writes records and swallows write failures after logging them.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"ai-voice-command-service/internal/config"
	"ai-voice-command-service/internal/models"
)

// ErrWriteFailed marks a record that could not be stored. It is logged and dropped.
var ErrWriteFailed = errors.New("TelemetryWriteFailed")

// Sink stores telemetry records. Implementations accept concurrent writers.
type Sink interface {
	// Name is the backend label used in logs and metrics.
	Name() string
	// EnsureSchema creates the bucket, table or topic when it is missing.
	EnsureSchema(ctx context.Context) error
	Write(ctx context.Context, rec models.TelemetryRecord) error
	Close() error
}

// NewSink builds the backend selected by cfg.Backend.
func NewSink(cfg config.TelemetryConfig) (Sink, error) {
	switch cfg.Backend {
	case "influx", "":
		return NewInflux(InfluxConfig{
			URL:     cfg.Host,
			Token:   cfg.Token,
			Org:     cfg.Org,
			Bucket:  cfg.Database,
			Timeout: cfg.Timeout,
		}), nil
	case "postgres":
		return NewPostgres(cfg.DSN)
	case "kafka":
		return NewKafka(&KafkaConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Enabled: len(cfg.Brokers) > 0,
		}), nil
	case "log":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("unknown telemetry backend %q", cfg.Backend)
	}
}
