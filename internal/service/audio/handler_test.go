package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-voice-command-service/internal/service/stt"
	"ai-voice-command-service/internal/service/transcript"
	"ai-voice-command-service/internal/service/utterance"
)

// testAdapter implements stt.Adapter for testing
type testAdapter struct {
	mu      sync.Mutex
	started bool
	closed  bool
	audio   [][]byte
	cb      stt.Callback
	done    chan struct{}
	once    sync.Once
}

func newTestAdapter() *testAdapter {
	return &testAdapter{done: make(chan struct{})}
}

func (m *testAdapter) Name() string { return "test" }

func (m *testAdapter) Start(ctx context.Context, cb stt.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.cb = cb
	return nil
}

func (m *testAdapter) SendAudio(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, audio)
	return nil
}

func (m *testAdapter) Done() <-chan struct{} { return m.done }

func (m *testAdapter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.end()
	return nil
}

func (m *testAdapter) end() {
	m.once.Do(func() { close(m.done) })
}

func (m *testAdapter) frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

func newHandler(t *testing.T, adapter *testAdapter, limits Limits) (*Handler, *transcript.Stream) {
	t.Helper()
	stream := transcript.NewStream(8, nil)
	h := NewHandler(adapter, stream, utterance.NewSequence("sess-1"), limits, nil)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return h, stream
}

func TestHandler_MaxAudioBytesLimit(t *testing.T) {
	adapter := newTestAdapter()
	limits := Limits{
		MaxAudioBytes: 100, // 100 bytes max
		MaxDuration:   time.Hour,
		MaxPartials:   1000,
	}
	handler, _ := newHandler(t, adapter, limits)
	defer handler.Close()

	ctx := context.Background()

	// Send 50 bytes - should succeed
	if err := handler.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("First send should succeed: %v", err)
	}

	// Send 60 more bytes (total 110) - should fail
	err := handler.SendAudio(ctx, make([]byte, 60))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Expected ErrLimitExceeded, got %v", err)
	}
	if handler.UtteranceState() != utterance.StateDropped {
		t.Error("Utterance should be dropped after exceeding limit")
	}

	// Audio keeps flowing to the recognizer, the drop is reported once
	if err := handler.SendAudio(ctx, make([]byte, 10)); err != nil {
		t.Errorf("Expected no error after the drop, got %v", err)
	}
	if n := adapter.frames(); n != 3 {
		t.Errorf("Expected 3 frames forwarded, got %d", n)
	}
}

func TestHandler_MaxPartialsLimit(t *testing.T) {
	adapter := newTestAdapter()
	limits := Limits{
		MaxAudioBytes: 1024 * 1024,
		MaxDuration:   time.Hour,
		MaxPartials:   3, // 3 partials max
	}
	handler, _ := newHandler(t, adapter, limits)
	defer handler.Close()

	for i := 0; i < 3; i++ {
		handler.OnPartial("analisar")
	}
	if handler.UtteranceState() == utterance.StateDropped {
		t.Error("Utterance should not be dropped after 3 partials")
	}

	// 4th partial should cause drop
	handler.OnPartial("one too many")
	if handler.UtteranceState() != utterance.StateDropped {
		t.Error("Utterance should be dropped after exceeding max partials")
	}
}

func TestHandler_MaxDurationLimit(t *testing.T) {
	adapter := newTestAdapter()
	limits := Limits{
		MaxAudioBytes: 1024 * 1024,
		MaxDuration:   50 * time.Millisecond, // 50ms max
		MaxPartials:   1000,
	}
	handler, _ := newHandler(t, adapter, limits)
	defer handler.Close()

	ctx := context.Background()
	if err := handler.SendAudio(ctx, []byte("audio")); err != nil {
		t.Fatalf("First send should succeed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if err := handler.SendAudio(ctx, []byte("audio")); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Expected ErrLimitExceeded, got %v", err)
	}
	if handler.UtteranceState() != utterance.StateDropped {
		t.Error("Utterance should be dropped after exceeding duration limit")
	}
}

func TestHandler_FinalPushesEvent(t *testing.T) {
	adapter := newTestAdapter()
	handler, stream := newHandler(t, adapter, DefaultLimits())
	defer handler.Close()

	handler.OnFinal("  analisar dados ", 0.93)

	select {
	case ev := <-stream.Events():
		if ev.Text != "analisar dados" {
			t.Errorf("Expected trimmed text, got %q", ev.Text)
		}
		if ev.Source != "test" {
			t.Errorf("Expected source test, got %q", ev.Source)
		}
		if ev.Confidence != 0.93 {
			t.Errorf("Expected confidence 0.93, got %f", ev.Confidence)
		}
		if ev.ID == "" {
			t.Error("Expected an event ID")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an event on the stream")
	}
}

func TestHandler_OneFinalPerUtterance(t *testing.T) {
	adapter := newTestAdapter()
	handler, stream := newHandler(t, adapter, DefaultLimits())
	defer handler.Close()

	handler.OnFinal("gerar relatório", 0.9)
	handler.OnFinal("gerar relatório de novo", 0.9)
	handler.OnEndOfUtterance()
	handler.OnFinal("atualizar dados", 0.9)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-stream.Events():
			got = append(got, ev.Text)
		case <-time.After(time.Second):
			t.Fatalf("Expected 2 events, got %v", got)
		}
	}
	if got[0] != "gerar relatório" || got[1] != "atualizar dados" {
		t.Errorf("Unexpected events: %v", got)
	}
	select {
	case ev := <-stream.Events():
		t.Errorf("Unexpected extra event %q", ev.Text)
	default:
	}
}

func TestHandler_ErrorDropsUtteranceNotSession(t *testing.T) {
	adapter := newTestAdapter()
	handler, stream := newHandler(t, adapter, DefaultLimits())
	defer handler.Close()

	handler.OnPartial("consultar")
	handler.OnError(errors.New("deadline exceeded"))
	if handler.UtteranceState() != utterance.StateDropped {
		t.Fatal("Utterance should be dropped after a recognition error")
	}

	// A final for the dropped utterance is discarded
	handler.OnFinal("consultar histórico", 0.8)
	select {
	case ev := <-stream.Events():
		t.Fatalf("Unexpected event %q from a dropped utterance", ev.Text)
	default:
	}

	// The next utterance still flows
	handler.OnEndOfUtterance()
	handler.OnFinal("consultar histórico", 0.8)
	select {
	case ev := <-stream.Events():
		if ev.Text != "consultar histórico" {
			t.Errorf("Unexpected text %q", ev.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the next utterance to reach the stream")
	}
}

func TestHandler_RecognizerEndClosesStream(t *testing.T) {
	adapter := newTestAdapter()
	handler, stream := newHandler(t, adapter, DefaultLimits())

	handler.OnError(errors.New("stream reset"))
	adapter.end()

	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the transcript stream to close")
	}
	if !errors.Is(stream.Err(), transcript.ErrRecognitionStream) {
		t.Errorf("Expected ErrRecognitionStream cause, got %v", stream.Err())
	}
	handler.Close()
}

func TestHandler_FinalAfterCancelStillDelivered(t *testing.T) {
	adapter := newTestAdapter()
	stream := transcript.NewStream(8, nil)
	handler := NewHandler(adapter, stream, utterance.NewSequence("sess-1"), DefaultLimits(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := handler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	for i := 0; i < 5; i++ {
		handler.OnFinal("gerar relatório", 0.9)
		handler.OnEndOfUtterance()
	}
	handler.Close()

	got := 0
	for range stream.Events() {
		got++
	}
	if got != 5 {
		t.Errorf("Expected 5 events after cancel, got %d", got)
	}
}

func TestHandler_CloseEndsStreamCleanly(t *testing.T) {
	adapter := newTestAdapter()
	handler, stream := newHandler(t, adapter, DefaultLimits())

	handler.OnError(errors.New("transient"))
	if err := handler.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-stream.Done():
	default:
		t.Fatal("Expected stream closed after Close")
	}
	if stream.Err() != nil {
		t.Errorf("Expected clean end on Close, got %v", stream.Err())
	}
}

func TestHandler_Pump(t *testing.T) {
	adapter := newTestAdapter()
	handler, _ := newHandler(t, adapter, DefaultLimits())
	defer handler.Close()

	frames := make(chan []byte, 3)
	frames <- make([]byte, 320)
	frames <- make([]byte, 320)
	frames <- make([]byte, 320)
	close(frames)

	if err := handler.Pump(context.Background(), frames); err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if n := adapter.frames(); n != 3 {
		t.Errorf("Expected 3 frames forwarded, got %d", n)
	}
}

func TestHandler_MetricsReset(t *testing.T) {
	adapter := newTestAdapter()
	handler, _ := newHandler(t, adapter, DefaultLimits())
	defer handler.Close()

	ctx := context.Background()
	handler.SendAudio(ctx, make([]byte, 100))
	handler.OnPartial("partial 1")
	handler.OnPartial("partial 2")

	metrics := handler.CurrentMetrics()
	if metrics.AudioBytes != 100 {
		t.Errorf("Expected 100 audio bytes, got %d", metrics.AudioBytes)
	}
	if metrics.PartialCount != 2 {
		t.Errorf("Expected 2 partials, got %d", metrics.PartialCount)
	}

	firstId := handler.UtteranceId()
	handler.OnEndOfUtterance()

	metrics = handler.CurrentMetrics()
	if metrics.AudioBytes != 0 {
		t.Errorf("Expected 0 audio bytes after reset, got %d", metrics.AudioBytes)
	}
	if metrics.PartialCount != 0 {
		t.Errorf("Expected 0 partials after reset, got %d", metrics.PartialCount)
	}
	if handler.UtteranceId() == firstId {
		t.Error("Expected a new utterance ID")
	}
	if handler.UtteranceCount() != 1 {
		t.Errorf("Expected 1 utterance, got %d", handler.UtteranceCount())
	}
}

func TestHandler_DefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	if limits.MaxAudioBytes != 5*1024*1024 {
		t.Errorf("Expected default max audio bytes to be 5MB, got %d", limits.MaxAudioBytes)
	}
	if limits.MaxDuration != 5*time.Minute {
		t.Errorf("Expected default max duration to be 5min, got %v", limits.MaxDuration)
	}
	if limits.MaxPartials != 500 {
		t.Errorf("Expected default max partials to be 500, got %d", limits.MaxPartials)
	}
}
