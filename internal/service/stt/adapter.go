// Package stt defines the interface for Speech-to-Text adapters.
package stt

import "context"

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnEndOfUtterance is called when the provider closes an utterance.
	OnEndOfUtterance()

	// OnError is called when the recognition stream reports an error.
	OnError(err error)
}

// Adapter defines the interface for STT providers.
type Adapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Done is closed when the provider will deliver no more results.
	Done() <-chan struct{}

	// Close ends the session and releases resources.
	Close() error
}
