package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/rs/zerolog/log"

	"ai-voice-command-service/internal/models"
)

// Measurement is the InfluxDB measurement holding command records.
const Measurement = "commands"

// InfluxConfig holds the InfluxDB v2 settings.
type InfluxConfig struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Influx writes records as points: tags host, outcome and intent; fields
// command, response and eventId.
type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	cfg    InfluxConfig
}

// NewInflux creates the sink. No connection is made until first use.
func NewInflux(cfg InfluxConfig) *Influx {
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(timeoutSeconds(cfg.Timeout))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	log.Info().
		Str("url", cfg.URL).
		Str("org", cfg.Org).
		Str("bucket", cfg.Bucket).
		Msg("InfluxDB telemetry sink initialized")

	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:    cfg,
	}
}

func (s *Influx) Name() string { return "influx" }

// EnsureSchema checks the server and creates the bucket when it is missing.
func (s *Influx) EnsureSchema(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return errors.New("influx ping: server not ready")
	}

	buckets := s.client.BucketsAPI()
	_, err = buckets.FindBucketByName(ctx, s.cfg.Bucket)
	if err == nil {
		return nil
	}
	if !bucketNotFound(err) {
		return fmt.Errorf("influx find bucket %q: %w", s.cfg.Bucket, err)
	}

	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.cfg.Org)
	if err != nil {
		return fmt.Errorf("influx find org %q: %w", s.cfg.Org, err)
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, s.cfg.Bucket); err != nil {
		return fmt.Errorf("influx create bucket %q: %w", s.cfg.Bucket, err)
	}
	log.Info().Str("bucket", s.cfg.Bucket).Msg("InfluxDB bucket created")
	return nil
}

// timeoutSeconds rounds d up to whole seconds, the client's resolution.
func timeoutSeconds(d time.Duration) uint {
	return uint((d + time.Second - 1) / time.Second)
}

// bucketNotFound reports whether a FindBucketByName error means the bucket
// does not exist, as opposed to an auth or transport failure. The client
// answers an empty lookup with a plain "not found" error.
func bucketNotFound(err error) bool {
	var herr *ihttp.Error
	if errors.As(err, &herr) {
		return herr.StatusCode == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "not found")
}

// Write stores one point.
func (s *Influx) Write(ctx context.Context, rec models.TelemetryRecord) error {
	p := influxdb2.NewPoint(Measurement,
		map[string]string{
			"host":    rec.Host,
			"outcome": rec.Outcome,
			"intent":  rec.Intent,
		},
		map[string]interface{}{
			"command":  rec.Command,
			"response": rec.Response,
			"eventId":  rec.EventID,
		},
		rec.RecordedAt,
	)
	return s.writer.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *Influx) Close() error {
	s.client.Close()
	return nil
}
