// Package translation translates text through the Google Cloud Translation v2 API.
package translation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	"ai-voice-command-service/internal/observability/logging"
)

// ErrNoTranslation is returned when the service answers without a translation.
var ErrNoTranslation = errors.New("translation: empty response")

// Config holds the translator settings.
type Config struct {
	APIKey   string
	Endpoint string        // empty uses the public endpoint
	Timeout  time.Duration // per call, 0 disables
}

// Translator calls Translation v2 with plain-text format.
type Translator struct {
	svc     *translate.Service
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a Translator.
func New(ctx context.Context, cfg Config) (*Translator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("translation: API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("translation: create service: %w", err)
	}

	return &Translator{
		svc:     svc,
		timeout: cfg.Timeout,
		log:     logging.WithComponent("translation"),
	}, nil
}

// Translate converts text from source to target language.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := t.svc.Translations.List([]string{text}, target).
		Source(source).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("translation %s->%s: %w", source, target, err)
	}
	if len(resp.Translations) == 0 || resp.Translations[0] == nil {
		return "", ErrNoTranslation
	}

	out := resp.Translations[0].TranslatedText
	t.log.Debug().
		Str("source", source).
		Str("target", target).
		Dur("latency", time.Since(start)).
		Msg("Translated")
	return out, nil
}
