package schema

import (
	"errors"
	"testing"
	"time"

	"ai-voice-command-service/internal/models"
)

func validRecord() models.TelemetryRecord {
	return models.TelemetryRecord{
		EventID:    "ev-1",
		Command:    "analisar dados",
		Response:   "Análise de dados executada",
		Host:       "local",
		Outcome:    "Success",
		Intent:     "analyze_data",
		RecordedAt: time.Now(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.TelemetryRecord)
		wantErr bool
	}{
		{"valid", func(*models.TelemetryRecord) {}, false},
		{"missing event id", func(r *models.TelemetryRecord) { r.EventID = "" }, true},
		{"blank command", func(r *models.TelemetryRecord) { r.Command = "  " }, true},
		{"blank response", func(r *models.TelemetryRecord) { r.Response = "" }, true},
		{"missing host", func(r *models.TelemetryRecord) { r.Host = "" }, true},
		{"unknown outcome", func(r *models.TelemetryRecord) { r.Outcome = "Maybe" }, true},
		{"zero time", func(r *models.TelemetryRecord) { r.RecordedAt = time.Time{} }, true},
		{"failure outcome", func(r *models.TelemetryRecord) { r.Outcome = "TranslationFailed" }, false},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := v.Validate(rec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Errorf("expected ErrInvalidRecord, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
