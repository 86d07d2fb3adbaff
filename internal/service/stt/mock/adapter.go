// Package mock provides a scripted STT adapter for running without cloud credentials.
// It replays spoken commands as progressive interim transcripts, exactly one
// final transcript per utterance, and an utterance boundary after each final.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-voice-command-service/internal/service/stt"
)

const providerName = "mock"

// Utterance is one scripted command.
type Utterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances covers every known command plus one unrecognised phrase.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"analisar", "analisar da"},
		Final:      "analisar dados",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"consultar", "consultar histórico"},
		Final:      "consultar histórico de vendas",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"gerar", "gerar relatório"},
		Final:      "gerar relatório mensal",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"atualizar", "atualizar dados"},
		Final:      "atualizar dados do cliente",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"abrir", "abrir a"},
		Final:      "abrir a janela",
		Confidence: 0.97,
	},
}

// Option configures the mock adapter.
type Option func(*Adapter)

// WithUtterances replaces the script.
func WithUtterances(u []Utterance) Option {
	return func(a *Adapter) { a.script = u }
}

// WithFramesPerStep sets how many audio frames advance the script by one step.
func WithFramesPerStep(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.framesPerStep = n
		}
	}
}

// WithAutoplay advances the script on a timer instead of on audio frames.
// Without loop the adapter finishes after the last utterance.
func WithAutoplay(interval time.Duration, loop bool) Option {
	return func(a *Adapter) {
		a.autoplay = interval
		a.loop = loop
	}
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	script        []Utterance
	framesPerStep int
	autoplay      time.Duration
	loop          bool

	mu            sync.Mutex
	cb            stt.Callback
	audioReceived int // frames since the last step
	heard         bool
	current       int
	partialIndex  int
	closed        bool

	done     chan struct{}
	doneOnce sync.Once
	stopPlay chan struct{}
	wg       sync.WaitGroup
}

// New creates a new mock STT adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		script:        DefaultUtterances,
		framesPerStep: 1,
		done:          make(chan struct{}),
		stopPlay:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return providerName
}

// Start begins a mock transcription session.
func (a *Adapter) Start(_ context.Context, cb stt.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()

	if a.autoplay > 0 {
		a.wg.Add(1)
		go a.play()
	}
	return nil
}

// SendAudio advances the script every framesPerStep frames.
func (a *Adapter) SendAudio(_ context.Context, _ []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil || len(a.script) == 0 {
		a.mu.Unlock()
		return nil
	}
	a.heard = true
	a.audioReceived++
	if a.audioReceived < a.framesPerStep {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived = 0
	emit := a.stepLocked()
	a.mu.Unlock()

	emit()
	return nil
}

// Done is closed when the session ends.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Close ends the mock session. An utterance that had audio but no final yet
// is flushed with its final transcript first.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.stopPlay)

	var flush func()
	if a.heard && a.cb != nil && len(a.script) > 0 {
		cb := a.cb
		utt := a.script[a.current]
		flush = func() {
			cb.OnFinal(utt.Final, utt.Confidence)
			cb.OnEndOfUtterance()
		}
	}
	a.mu.Unlock()

	a.wg.Wait()
	if flush != nil {
		flush()
	}
	a.finish()
	return nil
}

func (a *Adapter) play() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.autoplay)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopPlay:
			return
		case <-ticker.C:
			a.mu.Lock()
			if a.closed || len(a.script) == 0 {
				a.mu.Unlock()
				return
			}
			a.heard = true
			emit := a.stepLocked()
			last := !a.loop && a.current == 0 && a.partialIndex == 0
			a.mu.Unlock()

			emit()
			if last {
				a.mu.Lock()
				a.heard = false
				a.mu.Unlock()
				a.finish()
				return
			}
		}
	}
}

// stepLocked advances one step and returns the callbacks to run after the
// lock is released.
func (a *Adapter) stepLocked() func() {
	cb := a.cb
	utt := a.script[a.current]

	if a.partialIndex < len(utt.Partials) {
		text := utt.Partials[a.partialIndex]
		a.partialIndex++
		return func() { cb.OnPartial(text) }
	}

	a.partialIndex = 0
	a.heard = false
	a.current = (a.current + 1) % len(a.script)
	return func() {
		cb.OnFinal(utt.Final, utt.Confidence)
		cb.OnEndOfUtterance()
	}
}

func (a *Adapter) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}
