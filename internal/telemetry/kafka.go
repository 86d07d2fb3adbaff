package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-voice-command-service/internal/models"
)

// KafkaConfig holds Kafka sink configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Kafka publishes records as JSON keyed by event ID.
// Without brokers it runs in log-only mode.
type Kafka struct {
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	brokers []string
	topic   string
	enabled bool
}

// NewKafka creates the sink.
func NewKafka(cfg *KafkaConfig) *Kafka {
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Kafka{enabled: false}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Kafka{
			topic:   cfg.Topic,
			enabled: false,
		}
	}

	// Longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka telemetry sink initialized")

	return &Kafka{
		writer:  writer,
		dialer:  dialer,
		brokers: cfg.Brokers,
		topic:   cfg.Topic,
		enabled: true,
	}
}

func (k *Kafka) Name() string { return "kafka" }

// EnsureSchema creates the topic through the cluster controller. An existing
// topic is fine.
func (k *Kafka) EnsureSchema(ctx context.Context) error {
	if !k.enabled {
		return nil
	}

	conn, err := k.dialer.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cc, err := k.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka dial controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             k.topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka create topic %q: %w", k.topic, err)
	}
	return nil
}

// Write publishes one record.
func (k *Kafka) Write(ctx context.Context, rec models.TelemetryRecord) error {
	msg, err := newMessage(rec)
	if err != nil {
		return err
	}

	log.Debug().
		Str("topic", k.topic).
		Str("key", rec.EventID).
		RawJSON("payload", msg.Value).
		Msg("Publishing command record")

	if !k.enabled || k.writer == nil {
		return nil
	}
	return k.writer.WriteMessages(ctx, msg)
}

// newMessage keys rec by event ID so one event always lands on one partition.
func newMessage(rec models.TelemetryRecord) (kafka.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal record: %w", err)
	}
	return kafka.Message{
		Key:   []byte(rec.EventID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(rec.Outcome)},
			{Key: "host", Value: []byte(rec.Host)},
		},
	}, nil
}

// Close closes the writer.
func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
