// Package transcript provides the typed stream of final transcripts consumed by the pipeline.
//
// A Stream is a bounded queue with an explicit termination signal. Producers
// (the recognizer callback, the ops HTTP endpoint) block in Push while the
// queue is full, which propagates backpressure from the pipeline back to the
// recognizer. Close ends the stream; the consumer sees Events() closed and
// reads the terminal cause from Err().
package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-voice-command-service/internal/models"
	"ai-voice-command-service/internal/observability/metrics"
)

var (
	// ErrStreamClosed is returned by Push after Close.
	ErrStreamClosed = errors.New("transcript stream closed")
	// ErrEmptyTranscript is returned by Push for blank text.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrRecognitionStream marks errors reported by the recognizer session.
	ErrRecognitionStream = errors.New("recognition stream error")
)

// Stream is a bounded, closable stream of TranscriptEvents. Safe for concurrent producers.
type Stream struct {
	events  chan models.TranscriptEvent
	done    chan struct{}
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	err    error

	closeOnce sync.Once
	now       func() time.Time
}

// NewStream creates a stream buffering up to buffer events.
func NewStream(buffer int, m *metrics.Metrics) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		events:  make(chan models.TranscriptEvent, buffer),
		done:    make(chan struct{}),
		metrics: m,
		now:     time.Now,
	}
}

// Events returns the receive side of the stream. It is closed after Close.
func (s *Stream) Events() <-chan models.TranscriptEvent {
	return s.events
}

// Done is closed when the stream terminates.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal cause passed to Close, nil for a clean end.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Push appends one final transcript, blocking while the buffer is full.
// It returns ErrStreamClosed once the stream has terminated, or ctx.Err().
func (s *Stream) Push(ctx context.Context, text string, confidence float64, source string) (models.TranscriptEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.TranscriptEvent{}, ErrEmptyTranscript
	}

	ev := models.TranscriptEvent{
		ID:         uuid.NewString(),
		Text:       text,
		Confidence: confidence,
		Source:     source,
		ReceivedAt: s.now(),
	}

	// The read lock keeps Close from closing events under a pending send;
	// Close unblocks us through done first.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.TranscriptEvent{}, ErrStreamClosed
	}

	select {
	case s.events <- ev:
		if s.metrics != nil {
			s.metrics.RecordTranscript(source)
		}
		return ev, nil
	case <-s.done:
		return models.TranscriptEvent{}, ErrStreamClosed
	case <-ctx.Done():
		return models.TranscriptEvent{}, ctx.Err()
	}
}

// Submit pushes operator-provided text with full confidence.
func (s *Stream) Submit(ctx context.Context, text, source string) (models.TranscriptEvent, error) {
	return s.Push(ctx, text, 1, source)
}

// Close terminates the stream with cause (nil for a clean end). Idempotent;
// only the first cause is kept. Buffered events stay readable.
func (s *Stream) Close(cause error) {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		s.err = cause
		close(s.events)
		s.mu.Unlock()

		if cause != nil {
			log.Error().Err(cause).Msg("Transcript stream terminated")
		} else {
			log.Info().Msg("Transcript stream closed")
		}
	})
}
