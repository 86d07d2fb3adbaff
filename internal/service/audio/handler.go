// Package audio provides the recognizer session handler that turns captured
// audio into final transcripts on the transcript stream.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-command-service/internal/config"
	"ai-voice-command-service/internal/observability/logging"
	"ai-voice-command-service/internal/observability/metrics"
	"ai-voice-command-service/internal/service/stt"
	"ai-voice-command-service/internal/service/transcript"
	"ai-voice-command-service/internal/service/utterance"
)

// ErrLimitExceeded is returned when an utterance exceeds one of its limits.
var ErrLimitExceeded = errors.New("utterance limit exceeded")

// Limits defines per-utterance guardrails.
type Limits struct {
	MaxAudioBytes int64         // Max audio forwarded per utterance
	MaxDuration   time.Duration // Max utterance duration
	MaxPartials   int           // Max interim transcripts per utterance
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~160 seconds at 16kHz 16-bit mono)
		MaxDuration:   5 * time.Minute,
		MaxPartials:   500,
	}
}

// LimitsFromConfig converts the configured limits.
func LimitsFromConfig(c config.UtteranceLimitsConfig) Limits {
	return Limits{
		MaxAudioBytes: c.MaxAudioBytes,
		MaxDuration:   c.MaxDuration,
		MaxPartials:   c.MaxPartials,
	}
}

// Handler manages one recognizer session.
// It implements stt.Callback, pushes one TranscriptEvent per final transcript
// and tracks each utterance through utterance.Lifecycle.
// Recognition errors drop the current utterance but never end the session;
// the transcript stream is closed once the recognizer itself is done.
type Handler struct {
	adapter   stt.Adapter
	stream    *transcript.Stream
	seq       *utterance.Sequence
	lifecycle *utterance.Lifecycle
	limits    Limits
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu             sync.RWMutex
	ctx            context.Context
	startedAt      time.Time
	audioBytes     int64
	partialCount   int
	utteranceCount int
	lastErr        error
	started        bool
	closing        bool

	watchDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewHandler creates a handler feeding stream from adapter.
func NewHandler(adapter stt.Adapter, stream *transcript.Stream, seq *utterance.Sequence, limits Limits, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	first := seq.Next()
	return &Handler{
		adapter:   adapter,
		stream:    stream,
		seq:       seq,
		lifecycle: utterance.NewLifecycle(first),
		limits:    limits,
		metrics:   m,
		log:       logging.WithUtterance(seq.SessionId(), first, adapter.Name()),
		ctx:       context.Background(),
		startedAt: time.Now(),
		watchDone: make(chan struct{}),
	}
}

// Start opens the recognizer session with this handler as the callback receiver.
// Pushes into the transcript stream outlive ctx, so finals flushed while
// shutting down still reach the pipeline; closing the stream unblocks them.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = context.WithoutCancel(ctx)
	h.startedAt = time.Now()
	h.mu.Unlock()

	if err := h.adapter.Start(ctx, h); err != nil {
		h.stream.Close(fmt.Errorf("%w: %v", transcript.ErrRecognitionStream, err))
		close(h.watchDone)
		return err
	}

	h.mu.Lock()
	h.started = true
	h.mu.Unlock()

	go h.watch()
	h.log.Info().Msg("Recognizer session started")
	return nil
}

// watch closes the transcript stream when the recognizer ends. No reconnect.
func (h *Handler) watch() {
	defer close(h.watchDone)
	<-h.adapter.Done()

	h.mu.RLock()
	cause := h.lastErr
	closing := h.closing
	h.mu.RUnlock()

	if closing {
		cause = nil
	}
	h.stream.Close(cause)
}

// Pump forwards frames to the recognizer until frames is closed or ctx ends.
// Limit violations drop the current utterance and audio keeps flowing.
func (h *Handler) Pump(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.adapter.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := h.SendAudio(ctx, frame); err != nil && !errors.Is(err, ErrLimitExceeded) {
				return err
			}
		}
	}
}

// SendAudio forwards audio bytes to the recognizer.
// Returns ErrLimitExceeded when this frame caused the utterance to be dropped.
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	h.mu.Lock()
	h.audioBytes += int64(len(audio))
	currentBytes := h.audioBytes
	startedAt := h.startedAt
	h.mu.Unlock()

	var limitErr error
	if h.limits.MaxAudioBytes > 0 && currentBytes > h.limits.MaxAudioBytes {
		limitErr = h.exceed("audio_bytes", fmt.Sprintf("max audio bytes exceeded: %d > %d", currentBytes, h.limits.MaxAudioBytes))
	} else if h.limits.MaxDuration > 0 && time.Since(startedAt) > h.limits.MaxDuration {
		limitErr = h.exceed("duration", fmt.Sprintf("max duration exceeded: %v > %v", time.Since(startedAt).Round(time.Millisecond), h.limits.MaxDuration))
	}

	if err := h.adapter.SendAudio(ctx, audio); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	h.metrics.RecordAudioReceived(len(audio))
	return limitErr
}

// exceed drops the utterance once per limit violation.
func (h *Handler) exceed(limitType, reason string) error {
	if !h.DropUtterance(reason) {
		return nil
	}
	h.metrics.RecordLimitExceeded(limitType)
	return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
}

// Close ends the recognizer session and waits for the transcript stream to
// close. Finals the recognizer flushes while closing are still delivered.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closing = true
		started := h.started
		h.mu.Unlock()

		h.closeErr = h.adapter.Close()
		if started {
			<-h.watchDone
		} else {
			h.stream.Close(nil)
		}
		h.lifecycle.Close()
	})
	return h.closeErr
}

// UtteranceId returns the current utterance ID.
func (h *Handler) UtteranceId() string {
	return h.lifecycle.UtteranceId()
}

// UtteranceState returns the current utterance lifecycle state.
func (h *Handler) UtteranceState() utterance.State {
	return h.lifecycle.State()
}

// UtteranceCount returns the number of completed utterances.
func (h *Handler) UtteranceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.utteranceCount
}

// --- stt.Callback implementation ---

// OnPartial is called when an interim transcript is received.
func (h *Handler) OnPartial(text string) {
	if err := h.lifecycle.Partial(); err != nil {
		h.log.Debug().Err(err).Str("state", h.lifecycle.State().String()).Msg("Interim transcript ignored")
		return
	}

	h.mu.Lock()
	h.partialCount++
	count := h.partialCount
	h.mu.Unlock()

	if h.limits.MaxPartials > 0 && count > h.limits.MaxPartials {
		h.exceed("partials", fmt.Sprintf("max partials exceeded: %d > %d", count, h.limits.MaxPartials))
		return
	}

	h.metrics.RecordPartialTranscript()
	h.log.Debug().Str("text", text).Msg("Interim transcript")
}

// OnFinal is called when a final transcript is received.
// At most one final per utterance reaches the transcript stream.
func (h *Handler) OnFinal(text string, confidence float64) {
	if err := h.lifecycle.Finalize(); err != nil {
		h.log.Warn().Err(err).
			Str("utteranceId", h.lifecycle.UtteranceId()).
			Str("state", h.lifecycle.State().String()).
			Msg("Final transcript ignored")
		return
	}

	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()

	ev, err := h.stream.Push(ctx, text, confidence, h.adapter.Name())
	if err != nil {
		h.log.Warn().Err(err).Str("utteranceId", h.lifecycle.UtteranceId()).Msg("Final transcript not delivered")
		return
	}

	h.log.Info().
		Str("utteranceId", h.lifecycle.UtteranceId()).
		Str("eventId", ev.ID).
		Float64("confidence", confidence).
		Msg("Final transcript")
}

// OnEndOfUtterance closes the current utterance and opens the next one.
func (h *Handler) OnEndOfUtterance() {
	oldId := h.lifecycle.UtteranceId()
	oldState := h.lifecycle.State()
	h.lifecycle.Close()

	h.mu.Lock()
	h.utteranceCount++
	count := h.utteranceCount
	oldBytes := h.audioBytes
	oldPartials := h.partialCount
	oldDuration := time.Since(h.startedAt)
	h.audioBytes = 0
	h.partialCount = 0
	h.startedAt = time.Now()
	h.mu.Unlock()

	newId := h.seq.Next()
	h.lifecycle.Reset(newId)
	h.metrics.RecordUtterance()

	h.log.Info().
		Str("utteranceId", oldId).
		Str("state", oldState.String()).
		Str("nextUtteranceId", newId).
		Int("utterance", count).
		Int64("bytes", oldBytes).
		Int("partials", oldPartials).
		Dur("duration", oldDuration.Round(time.Millisecond)).
		Msg("End of utterance")
}

// OnError is called when the recognizer reports an error.
// The current utterance is dropped; the session keeps running.
func (h *Handler) OnError(err error) {
	err = fmt.Errorf("%w: %v", transcript.ErrRecognitionStream, err)

	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()

	utteranceId := h.lifecycle.UtteranceId()
	oldState := h.lifecycle.State()
	if h.lifecycle.Drop() {
		h.metrics.RecordUtteranceDropped("recognition_error")
	}

	h.log.Error().Err(err).
		Str("utteranceId", utteranceId).
		Str("previousState", oldState.String()).
		Msg("RecognitionStreamError")
}

// DropUtterance abandons the current utterance without a final transcript.
// Returns false if the utterance was already closed or dropped.
func (h *Handler) DropUtterance(reason string) bool {
	utteranceId := h.lifecycle.UtteranceId()
	oldState := h.lifecycle.State()

	if !h.lifecycle.Drop() {
		return false
	}
	h.metrics.RecordUtteranceDropped("limit")

	h.log.Warn().
		Str("utteranceId", utteranceId).
		Str("previousState", oldState.String()).
		Str("reason", reason).
		Msg("Utterance dropped")
	return true
}

// UtteranceMetrics holds current utterance usage.
type UtteranceMetrics struct {
	AudioBytes   int64
	PartialCount int
	Duration     time.Duration
}

// CurrentMetrics returns usage of the current utterance.
func (h *Handler) CurrentMetrics() UtteranceMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return UtteranceMetrics{
		AudioBytes:   h.audioBytes,
		PartialCount: h.partialCount,
		Duration:     time.Since(h.startedAt),
	}
}
