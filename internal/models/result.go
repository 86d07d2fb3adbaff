package models

import "time"

// PipelineResult describes how one TranscriptEvent went through the stage chain.
// FinalText is empty when the chain stopped before back-translation finished.
type PipelineResult struct {
	EventID      string
	OriginalText string
	FinalText    string
	Intent       Intent
	Outcome      Outcome
	Response     string
	Err          error
	Duration     time.Duration
}

// TelemetryRecord is the append-only record written once per TranscriptEvent.
type TelemetryRecord struct {
	EventID    string    `json:"eventId"`
	Command    string    `json:"command"`
	Response   string    `json:"response"`
	Host       string    `json:"host"`
	Outcome    string    `json:"outcome"`
	Intent     string    `json:"intent"`
	RecordedAt time.Time `json:"recordedAt"`
}

// RecordFromResult builds the telemetry record for a finished pipeline run.
// Host and RecordedAt are stamped by the recorder.
func RecordFromResult(r PipelineResult) TelemetryRecord {
	return TelemetryRecord{
		EventID:  r.EventID,
		Command:  r.OriginalText,
		Response: r.Response,
		Outcome:  r.Outcome.String(),
		Intent:   r.Intent.String(),
	}
}
