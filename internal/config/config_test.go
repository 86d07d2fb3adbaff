package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_NAME", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	"STT_PROVIDER", "SPEECH_SERVICE_ENDPOINT", "STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ",
	"STT_INTERIM_RESULTS", "STT_AUDIO_ENCODING", "STT_MOCK_INTERVAL", "STT_MOCK_LOOP",
	"AUDIO_SOURCE", "AUDIO_DEVICE", "AUDIO_FILE",
	"TRANSLATION_API_KEY", "TRANSLATION_ENDPOINT", "SOURCE_LANGUAGE", "PIVOT_LANGUAGE", "TRANSLATION_TIMEOUT",
	"COMPLETION_API_KEY", "COMPLETION_ENDPOINT", "COMPLETION_MODEL", "COMPLETION_MAX_TOKENS", "COMPLETION_TIMEOUT",
	"TELEMETRY_BACKEND", "TELEMETRY_HOST", "TELEMETRY_HOST_TAG", "TELEMETRY_DSN",
	"TELEMETRY_KAFKA_BROKERS", "TELEMETRY_KAFKA_TOPIC",
	"PIPELINE_MAX_IN_FLIGHT", "PIPELINE_STREAM_BUFFER",
	"UTTERANCE_MAX_AUDIO_BYTES", "UTTERANCE_MAX_DURATION", "UTTERANCE_MAX_PARTIALS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr ':8080', got %s", cfg.Service.HTTPAddr)
	}

	// STT defaults: LINEAR16, 16kHz, pt-BR, final results only
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "pt-BR" {
		t.Errorf("expected default language 'pt-BR', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults {
		t.Errorf("expected default interim results false, got %v", cfg.STT.InterimResults)
	}
	if cfg.STT.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.STT.AudioEncoding)
	}
	if cfg.STT.MockInterval != 3*time.Second || cfg.STT.MockLoop {
		t.Errorf("expected mock 3s without loop, got %v loop=%v", cfg.STT.MockInterval, cfg.STT.MockLoop)
	}

	if cfg.Translation.SourceLanguage != "pt" || cfg.Translation.PivotLanguage != "en" {
		t.Errorf("expected pt/en languages, got %s/%s", cfg.Translation.SourceLanguage, cfg.Translation.PivotLanguage)
	}
	if cfg.Translation.APIKey != "" {
		t.Errorf("expected no default translation key, got %q", cfg.Translation.APIKey)
	}
	if cfg.Completion.MaxTokens != 150 {
		t.Errorf("expected default max tokens 150, got %d", cfg.Completion.MaxTokens)
	}

	if cfg.Telemetry.Backend != "influx" {
		t.Errorf("expected default telemetry backend 'influx', got %s", cfg.Telemetry.Backend)
	}
	if cfg.Telemetry.HostTag != "local" {
		t.Errorf("expected default host tag 'local', got %s", cfg.Telemetry.HostTag)
	}
	if cfg.Telemetry.Database != "superalgos_db" {
		t.Errorf("expected default database 'superalgos_db', got %s", cfg.Telemetry.Database)
	}

	if cfg.Pipeline.MaxInFlight != 8 {
		t.Errorf("expected default max in flight 8, got %d", cfg.Pipeline.MaxInFlight)
	}

	if cfg.UtteranceLimits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes 5MB, got %d", cfg.UtteranceLimits.MaxAudioBytes)
	}
	if cfg.UtteranceLimits.MaxDuration != 5*time.Minute {
		t.Errorf("expected default max duration 5m, got %v", cfg.UtteranceLimits.MaxDuration)
	}
	if cfg.UtteranceLimits.MaxPartials != 500 {
		t.Errorf("expected default max partials 500, got %d", cfg.UtteranceLimits.MaxPartials)
	}

	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSLATION_API_KEY", "tr-key")
	t.Setenv("COMPLETION_API_KEY", "cp-key")
	t.Setenv("SPEECH_SERVICE_ENDPOINT", "speech.example.com:443")
	t.Setenv("TELEMETRY_HOST", "http://influx:8086")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	t.Setenv("STT_INTERIM_RESULTS", "true")
	t.Setenv("COMPLETION_MAX_TOKENS", "64")
	t.Setenv("TELEMETRY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("UTTERANCE_MAX_DURATION", "10m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.Translation.APIKey != "tr-key" {
		t.Errorf("expected translation key 'tr-key', got %s", cfg.Translation.APIKey)
	}
	if cfg.Completion.APIKey != "cp-key" {
		t.Errorf("expected completion key 'cp-key', got %s", cfg.Completion.APIKey)
	}
	if cfg.STT.Endpoint != "speech.example.com:443" {
		t.Errorf("expected speech endpoint, got %s", cfg.STT.Endpoint)
	}
	if cfg.Telemetry.Host != "http://influx:8086" {
		t.Errorf("expected telemetry host, got %s", cfg.Telemetry.Host)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if !cfg.STT.InterimResults {
		t.Errorf("expected interim results true, got %v", cfg.STT.InterimResults)
	}
	if cfg.Completion.MaxTokens != 64 {
		t.Errorf("expected max tokens 64, got %d", cfg.Completion.MaxTokens)
	}
	if len(cfg.Telemetry.Brokers) != 2 || cfg.Telemetry.Brokers[1] != "k2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Telemetry.Brokers)
	}
	if cfg.UtteranceLimits.MaxDuration != 10*time.Minute {
		t.Errorf("expected max duration 10m, got %v", cfg.UtteranceLimits.MaxDuration)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	t.Setenv("STT_INTERIM_RESULTS", "invalid")
	t.Setenv("COMPLETION_MAX_TOKENS", "many")
	t.Setenv("UTTERANCE_MAX_AUDIO_BYTES", "invalid")
	t.Setenv("UTTERANCE_MAX_DURATION", "invalid")

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults {
		t.Errorf("expected default interim results on invalid input, got %v", cfg.STT.InterimResults)
	}
	if cfg.Completion.MaxTokens != 150 {
		t.Errorf("expected default max tokens on invalid input, got %d", cfg.Completion.MaxTokens)
	}
	if cfg.UtteranceLimits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("expected default max audio bytes on invalid input, got %d", cfg.UtteranceLimits.MaxAudioBytes)
	}
	if cfg.UtteranceLimits.MaxDuration != 5*time.Minute {
		t.Errorf("expected default max duration on invalid input, got %v", cfg.UtteranceLimits.MaxDuration)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	for _, want := range []string{"TRANSLATION_API_KEY", "COMPLETION_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}

	cfg.Translation.APIKey = "k"
	cfg.Completion.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Telemetry.Backend = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "TELEMETRY_DSN") {
		t.Errorf("expected missing DSN error, got %v", err)
	}

	cfg.Telemetry.Backend = "log"
	cfg.Audio.Source = "wav"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "AUDIO_FILE") {
		t.Errorf("expected missing AUDIO_FILE error, got %v", err)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envValue)

			got := envOrDefaultBool("TEST_BOOL_VAR", tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
