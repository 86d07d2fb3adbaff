// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service         ServiceConfig
	STT             STTConfig
	Audio           AudioConfig
	Translation     TranslationConfig
	Completion      CompletionConfig
	Telemetry       TelemetryConfig
	Pipeline        PipelineConfig
	UtteranceLimits UtteranceLimitsConfig
	Observability   ObservabilityConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Name     string
	HTTPAddr string
	Env      string
}

// STTConfig selects and tunes the speech recognizer.
type STTConfig struct {
	Provider       string // google, mock
	Endpoint       string // SPEECH_SERVICE_ENDPOINT, empty uses the client default
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	MockInterval   time.Duration // mock script step interval when no audio source is configured
	MockLoop       bool
}

// AudioConfig selects the capture source feeding the recognizer.
type AudioConfig struct {
	Source string // pulse, wav, none
	Device string
	File   string
}

// TranslationConfig holds the translator credentials and languages.
type TranslationConfig struct {
	APIKey         string
	Endpoint       string
	SourceLanguage string
	PivotLanguage  string
	Timeout        time.Duration
}

// CompletionConfig holds the completion service settings.
type CompletionConfig struct {
	APIKey    string
	Endpoint  string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// TelemetryConfig selects the telemetry backend.
type TelemetryConfig struct {
	Backend  string // influx, postgres, kafka, log
	Host     string // TELEMETRY_HOST, server address of the store
	HostTag  string
	Token    string
	Org      string
	Database string
	DSN      string
	Brokers  []string
	Topic    string
	Timeout  time.Duration
}

// PipelineConfig bounds concurrent command processing.
type PipelineConfig struct {
	MaxInFlight  int
	StreamBuffer int
}

// UtteranceLimitsConfig guards per-utterance audio resources.
type UtteranceLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment.
// Unparseable values fall back to their defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Name:     envOrDefault("SERVICE_NAME", "ai-voice-command-service"),
			HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),
			Env:      os.Getenv("ENV"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			Endpoint:       os.Getenv("SPEECH_SERVICE_ENDPOINT"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "pt-BR"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", false),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			MockInterval:   envOrDefaultDuration("STT_MOCK_INTERVAL", 3*time.Second),
			MockLoop:       envOrDefaultBool("STT_MOCK_LOOP", false),
		},
		Audio: AudioConfig{
			Source: envOrDefault("AUDIO_SOURCE", "none"),
			Device: envOrDefault("AUDIO_DEVICE", "default"),
			File:   os.Getenv("AUDIO_FILE"),
		},
		Translation: TranslationConfig{
			APIKey:         os.Getenv("TRANSLATION_API_KEY"),
			Endpoint:       os.Getenv("TRANSLATION_ENDPOINT"),
			SourceLanguage: envOrDefault("SOURCE_LANGUAGE", "pt"),
			PivotLanguage:  envOrDefault("PIVOT_LANGUAGE", "en"),
			Timeout:        envOrDefaultDuration("TRANSLATION_TIMEOUT", 10*time.Second),
		},
		Completion: CompletionConfig{
			APIKey:    os.Getenv("COMPLETION_API_KEY"),
			Endpoint:  os.Getenv("COMPLETION_ENDPOINT"),
			Model:     envOrDefault("COMPLETION_MODEL", "gemini-2.0-flash"),
			MaxTokens: envOrDefaultInt("COMPLETION_MAX_TOKENS", 150),
			Timeout:   envOrDefaultDuration("COMPLETION_TIMEOUT", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			Backend:  envOrDefault("TELEMETRY_BACKEND", "influx"),
			Host:     envOrDefault("TELEMETRY_HOST", "http://localhost:8086"),
			HostTag:  envOrDefault("TELEMETRY_HOST_TAG", "local"),
			Token:    os.Getenv("TELEMETRY_TOKEN"),
			Org:      envOrDefault("TELEMETRY_ORG", "superalgos"),
			Database: envOrDefault("TELEMETRY_DATABASE", "superalgos_db"),
			DSN:      os.Getenv("TELEMETRY_DSN"),
			Brokers:  envList("TELEMETRY_KAFKA_BROKERS"),
			Topic:    envOrDefault("TELEMETRY_KAFKA_TOPIC", "voice.commands"),
			Timeout:  envOrDefaultDuration("TELEMETRY_TIMEOUT", 5*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxInFlight:  envOrDefaultInt("PIPELINE_MAX_IN_FLIGHT", 8),
			StreamBuffer: envOrDefaultInt("PIPELINE_STREAM_BUFFER", 16),
		},
		UtteranceLimits: UtteranceLimitsConfig{
			MaxAudioBytes: envOrDefaultInt64("UTTERANCE_MAX_AUDIO_BYTES", 5*1024*1024),
			MaxDuration:   envOrDefaultDuration("UTTERANCE_MAX_DURATION", 5*time.Minute),
			MaxPartials:   envOrDefaultInt("UTTERANCE_MAX_PARTIALS", 500),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// Validate reports settings that make the selected providers unusable.
// Credentials have no defaults and must come from the environment.
func (c *Configuration) Validate() error {
	var errs []error
	if c.Translation.APIKey == "" {
		errs = append(errs, errors.New("TRANSLATION_API_KEY is required"))
	}
	if c.Completion.APIKey == "" {
		errs = append(errs, errors.New("COMPLETION_API_KEY is required"))
	}
	if c.Completion.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("COMPLETION_MAX_TOKENS must be positive, got %d", c.Completion.MaxTokens))
	}
	if c.Pipeline.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("PIPELINE_MAX_IN_FLIGHT must be positive, got %d", c.Pipeline.MaxInFlight))
	}
	switch c.STT.Provider {
	case "google", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", c.STT.Provider))
	}
	switch c.Audio.Source {
	case "pulse", "none":
	case "wav":
		if c.Audio.File == "" {
			errs = append(errs, errors.New("AUDIO_FILE is required when AUDIO_SOURCE=wav"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIO_SOURCE %q", c.Audio.Source))
	}
	switch c.Telemetry.Backend {
	case "influx", "log":
	case "postgres":
		if c.Telemetry.DSN == "" {
			errs = append(errs, errors.New("TELEMETRY_DSN is required when TELEMETRY_BACKEND=postgres"))
		}
	case "kafka":
	default:
		errs = append(errs, fmt.Errorf("unknown TELEMETRY_BACKEND %q", c.Telemetry.Backend))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
