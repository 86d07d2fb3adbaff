package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-voice-command-service/internal/capture"
	"ai-voice-command-service/internal/config"
	ophttp "ai-voice-command-service/internal/http"
	"ai-voice-command-service/internal/observability"
	"ai-voice-command-service/internal/observability/logging"
	"ai-voice-command-service/internal/observability/metrics"
	"ai-voice-command-service/internal/service/audio"
	"ai-voice-command-service/internal/service/command"
	"ai-voice-command-service/internal/service/completion"
	"ai-voice-command-service/internal/service/pipeline"
	"ai-voice-command-service/internal/service/stt"
	"ai-voice-command-service/internal/service/stt/google"
	"ai-voice-command-service/internal/service/stt/mock"
	"ai-voice-command-service/internal/service/transcript"
	"ai-voice-command-service/internal/service/translation"
	"ai-voice-command-service/internal/service/utterance"
	"ai-voice-command-service/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Metrics     *metrics.Metrics

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice command service application created")
	return a
}

// setupLogger configures zerolog for the service.
// ZEROLOG_LOG_LEVEL overrides LOG_LEVEL; ENV=dev forces console output.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	lc.Service = a.Cfg.Service.Name
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		lc.Level = envLevel
	}
	if a.Cfg.Service.Env == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = logging.WithComponent("application")
	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Ready reports whether the session is running.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Run builds the pipeline and runs the session until ctx ends or the
// recognizer stream terminates.
func (a *Application) Run(ctx context.Context) error {
	cfg := a.Cfg
	a.StartupTime = time.Now().UTC()
	runLogger := a.Logger.With().Str("method", "Run").Logger()
	runLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", cfg.STT.Provider).
		Str("audioSource", cfg.Audio.Source).
		Str("telemetryBackend", cfg.Telemetry.Backend).
		Msg("Voice command service starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Telemetry
	sink, err := telemetry.NewSink(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	recorder := telemetry.NewRecorder(sink, cfg.Telemetry.HostTag, cfg.Telemetry.Timeout, a.Metrics)
	defer recorder.Close()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := recorder.EnsureSchema(schemaCtx); err != nil {
		runLogger.Warn().Err(err).Str("backend", sink.Name()).Msg("Telemetry schema not ready, records may be dropped")
	}
	schemaCancel()

	// Stages
	translator, err := translation.New(ctx, translation.Config{
		APIKey:   cfg.Translation.APIKey,
		Endpoint: cfg.Translation.Endpoint,
		Timeout:  cfg.Translation.Timeout,
	})
	if err != nil {
		return err
	}
	completer, err := completion.New(ctx, completion.Config{
		APIKey:   cfg.Completion.APIKey,
		Endpoint: cfg.Completion.Endpoint,
		Model:    cfg.Completion.Model,
		Timeout:  cfg.Completion.Timeout,
	}, nil)
	if err != nil {
		return err
	}

	orch := pipeline.New(pipeline.Stages{
		Translator: translator,
		Completer:  completer,
		Classifier: command.NewClassifier(nil),
		Executor:   command.NewExecutor(nil, a.Metrics),
		Recorder:   recorder,
	}, pipeline.Options{
		SourceLanguage: cfg.Translation.SourceLanguage,
		PivotLanguage:  cfg.Translation.PivotLanguage,
		MaxTokens:      cfg.Completion.MaxTokens,
		MaxInFlight:    cfg.Pipeline.MaxInFlight,
	}, a.Metrics)

	// Transcript source
	stream := transcript.NewStream(cfg.Pipeline.StreamBuffer, a.Metrics)

	adapter, err := a.newAdapter(ctx)
	if err != nil {
		stream.Close(err)
		return err
	}

	sessionId := uuid.NewString()
	handler := audio.NewHandler(adapter, stream, utterance.NewSequence(sessionId),
		audio.LimitsFromConfig(cfg.UtteranceLimits), a.Metrics)
	if err := handler.Start(ctx); err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}

	source, err := capture.Open(ctx, cfg.Audio, cfg.STT.SampleRateHz)
	if err != nil {
		handler.Close()
		return fmt.Errorf("audio capture: %w", err)
	}

	// Ops HTTP
	server := observability.NewServer(cfg.Service.HTTPAddr, ophttp.NewRouter(stream, a.Ready))
	if err := server.Start(); err != nil {
		if source != nil {
			source.Close()
		}
		handler.Close()
		return err
	}

	a.ready.Store(true)
	runLogger.Info().Str("sessionId", sessionId).Msg("Voice command session ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The session ends when the transcript stream ends.
		defer cancel()
		return orch.Run(gctx, stream.Events())
	})
	if source != nil {
		g.Go(func() error {
			err := handler.Pump(gctx, source.Chunks())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err == nil {
				runLogger.Info().Msg("Audio source finished, closing recognizer")
				return handler.Close()
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.ready.Store(false)
		if source != nil {
			source.Close()
		}
		err := handler.Close()
		// Run drains what is buffered and returns once the stream is closed.
		stream.Close(nil)
		return err
	})

	runErr := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		runLogger.Error().Err(err).Msg("Ops HTTP server shutdown failed")
	}

	if runErr != nil {
		return runErr
	}
	if cause := stream.Err(); cause != nil {
		return fmt.Errorf("transcript stream: %w", cause)
	}
	return nil
}

func (a *Application) newAdapter(ctx context.Context) (stt.Adapter, error) {
	cfg := a.Cfg.STT
	switch cfg.Provider {
	case "google":
		return google.New(ctx, google.Config{
			Endpoint:       cfg.Endpoint,
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   cfg.SampleRateHz,
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
		}, a.Metrics)
	case "mock":
		if a.Cfg.Audio.Source == "none" {
			return mock.New(mock.WithAutoplay(cfg.MockInterval, cfg.MockLoop)), nil
		}
		// One script step per 500ms of 20ms frames.
		return mock.New(mock.WithFramesPerStep(25)), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	shutdownLogger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Voice command service shutting down")
}
