// Package models defines the data structures that flow through the command pipeline.
package models

import "time"

// TranscriptEvent is one final transcript handed to the pipeline.
// It is consumed exactly once and never persisted.
type TranscriptEvent struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"` // stt provider or "http"
	ReceivedAt time.Time `json:"receivedAt"`
}
