// Package pipeline runs the per-event stage chain: translate, complete,
// back-translate, classify, execute, record.
//
// Each event is isolated. A failing stage ends that event's chain with a
// terminal outcome, one telemetry record and one log line, and the
// orchestrator keeps consuming the next events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"ai-voice-command-service/internal/models"
	"ai-voice-command-service/internal/observability/logging"
	"ai-voice-command-service/internal/observability/metrics"
)

// Responses recorded for each terminal outcome that has no executor response.
const (
	ResponseTranslationFailed     = "Falha na tradução do comando"
	ResponseCompletionFailed      = "Falha na geração da resposta"
	ResponseBackTranslationFailed = "Falha na tradução da resposta"
	ResponseUnknownCommand        = "Comando desconhecido"
	// ResponseExecuted stands in for an action that answered with blank text.
	ResponseExecuted = "Comando executado"
)

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Completer produces a reply to a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Classifier maps text to an intent.
type Classifier interface {
	Classify(text string) models.Intent
}

// Executor performs the command for a known intent.
type Executor interface {
	Execute(ctx context.Context, intent models.Intent, text string) (string, error)
}

// Recorder stores the telemetry record of a finished chain. It must not fail.
type Recorder interface {
	Record(ctx context.Context, rec models.TelemetryRecord)
}

// Stages are the capabilities the orchestrator drives.
type Stages struct {
	Translator Translator
	Completer  Completer
	Classifier Classifier
	Executor   Executor
	Recorder   Recorder
}

// Options tunes the chain.
type Options struct {
	SourceLanguage string
	PivotLanguage  string
	MaxTokens      int
	MaxInFlight    int
}

// DefaultOptions returns Portuguese input with an English pivot.
func DefaultOptions() Options {
	return Options{
		SourceLanguage: "pt",
		PivotLanguage:  "en",
		MaxTokens:      150,
		MaxInFlight:    8,
	}
}

// Orchestrator consumes TranscriptEvents and runs one chain per event.
type Orchestrator struct {
	stages  Stages
	opts    Options
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates an orchestrator. Zero options fall back to DefaultOptions.
func New(stages Stages, opts Options, m *metrics.Metrics) *Orchestrator {
	def := DefaultOptions()
	if opts.SourceLanguage == "" {
		opts.SourceLanguage = def.SourceLanguage
	}
	if opts.PivotLanguage == "" {
		opts.PivotLanguage = def.PivotLanguage
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = def.MaxInFlight
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Orchestrator{
		stages:  stages,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxInFlight)),
		metrics: m,
		log:     logging.WithComponent("pipeline"),
	}
}

// Run dispatches every event from events until the channel closes, then
// waits for in-flight chains. Cancelling ctx does not drop accepted events:
// Run keeps draining until the producer closes events, so the owner of the
// stream must close it on shutdown.
func (o *Orchestrator) Run(ctx context.Context, events <-chan models.TranscriptEvent) error {
	defer o.Wait()
	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("Intake stopping, draining buffered transcripts")
			return o.drain(ctx, events)
		case ev, ok := <-events:
			if !ok {
				o.log.Info().Msg("Transcript stream ended")
				return nil
			}
			o.OnTranscript(ctx, ev)
		}
	}
}

func (o *Orchestrator) drain(ctx context.Context, events <-chan models.TranscriptEvent) error {
	n := 0
	for ev := range events {
		o.OnTranscript(ctx, ev)
		n++
	}
	o.log.Info().Int("drained", n).Msg("Transcript stream ended")
	return nil
}

// OnTranscript starts the chain for ev in its own goroutine. It blocks while
// MaxInFlight chains are running. An accepted event always runs to its
// terminal outcome, cancellation of ctx included.
func (o *Orchestrator) OnTranscript(ctx context.Context, ev models.TranscriptEvent) {
	ctx = context.WithoutCancel(ctx)
	if err := o.sem.Acquire(ctx, 1); err != nil {
		// Acquire only fails once ctx is done, which WithoutCancel rules out.
		o.Handle(ctx, ev)
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.sem.Release(1)
		o.Handle(ctx, ev)
	}()
}

// Wait blocks until every started chain has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Handle runs the chain for ev synchronously and returns its result. Exactly
// one telemetry record is written, whatever the outcome. An event without an
// ID is given one.
func (o *Orchestrator) Handle(ctx context.Context, ev models.TranscriptEvent) models.PipelineResult {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	start := time.Now()
	o.metrics.RecordChainStart()

	res := o.chain(ctx, ev)
	res.Duration = time.Since(start)

	o.record(ctx, res)
	o.metrics.RecordChainEnd(res.Outcome.String(), res.Duration.Seconds())
	o.logResult(res)
	return res
}

func (o *Orchestrator) chain(ctx context.Context, ev models.TranscriptEvent) models.PipelineResult {
	res := models.PipelineResult{
		EventID:      ev.ID,
		OriginalText: ev.Text,
	}

	translated, err := o.text(ev.ID, StageTranslate, func() (string, error) {
		return o.stages.Translator.Translate(ctx, ev.Text, o.opts.SourceLanguage, o.opts.PivotLanguage)
	})
	if err != nil {
		return fail(res, StageTranslate, models.OutcomeTranslationFailed, ResponseTranslationFailed, err)
	}

	reply, err := o.text(ev.ID, StageComplete, func() (string, error) {
		return o.stages.Completer.Complete(ctx, translated, o.opts.MaxTokens)
	})
	if err != nil {
		return fail(res, StageComplete, models.OutcomeCompletionFailed, ResponseCompletionFailed, err)
	}

	final, err := o.text(ev.ID, StageBackTranslate, func() (string, error) {
		return o.stages.Translator.Translate(ctx, reply, o.opts.PivotLanguage, o.opts.SourceLanguage)
	})
	if err != nil {
		return fail(res, StageBackTranslate, models.OutcomeBackTranslationFailed, ResponseBackTranslationFailed, err)
	}
	res.FinalText = final

	intent := models.IntentUnknown
	_ = o.guard(ev.ID, StageClassify, func() error {
		intent = o.stages.Classifier.Classify(final)
		return nil
	})
	res.Intent = intent
	if !intent.Known() {
		return fail(res, StageClassify, models.OutcomeUnknownCommand, ResponseUnknownCommand, ErrUnknownCommand)
	}

	var response string
	err = o.guard(ev.ID, StageExecute, func() error {
		var err error
		response, err = o.stages.Executor.Execute(ctx, intent, final)
		return err
	})
	if err != nil {
		return fail(res, StageExecute, models.OutcomeUnknownCommand, ResponseUnknownCommand, err)
	}

	if strings.TrimSpace(response) == "" {
		response = ResponseExecuted
	}
	res.Outcome = models.OutcomeSuccess
	res.Response = response
	return res
}

// text runs a text-producing stage; an error, a panic or a blank result fails it.
func (o *Orchestrator) text(eventId, stage string, fn func() (string, error)) (string, error) {
	var out string
	err := o.guard(eventId, stage, func() error {
		var err error
		out, err = fn()
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrBlankResult
		}
		return err
	})
	return out, err
}

// guard runs fn, turning a panic into an error, and records stage metrics.
func (o *Orchestrator) guard(eventId, stage string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		latency := time.Since(start)
		o.metrics.RecordStage(stage, err, latency.Seconds())
		if err != nil {
			l := logging.WithStage(eventId, stage)
			l.Debug().Err(err).Dur("latency", latency).Msg("Stage failed")
		}
	}()
	return fn()
}

func fail(res models.PipelineResult, stage string, outcome models.Outcome, response string, err error) models.PipelineResult {
	res.Outcome = outcome
	res.Response = response
	res.Err = &StageError{Stage: stage, Outcome: outcome, Err: err}
	return res
}

func (o *Orchestrator) record(ctx context.Context, res models.PipelineResult) {
	defer func() {
		if p := recover(); p != nil {
			o.log.Error().Str("eventId", res.EventID).Interface("panic", p).Msg("TelemetryWriteFailed")
		}
	}()
	o.stages.Recorder.Record(ctx, models.RecordFromResult(res))
}

func (o *Orchestrator) logResult(res models.PipelineResult) {
	l := logging.WithEvent(res.EventID)
	e := l.Info()
	if res.Outcome.Failed() {
		e = l.Warn()
	}

	var se *StageError
	if errors.As(res.Err, &se) {
		e = e.Str("stage", se.Stage).AnErr("cause", se.Err)
	}

	e.Str("outcome", res.Outcome.String()).
		Str("intent", res.Intent.String()).
		Str("command", res.OriginalText).
		Str("response", res.Response).
		Dur("duration", res.Duration).
		Msg("Command processed")
}
