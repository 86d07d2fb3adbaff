// Package completion generates replies through the Gemini API.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"ai-voice-command-service/internal/observability/logging"
)

// ErrEmptyCompletion is returned when the model answers without text.
var ErrEmptyCompletion = errors.New("completion: empty response")

// Config holds the completion settings.
type Config struct {
	APIKey   string
	Endpoint string // empty uses the public endpoint
	Model    string
	Timeout  time.Duration // per call, 0 disables
}

// Completer sends one prompt per call, no conversation state.
type Completer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a Completer. httpClient may be nil.
func New(ctx context.Context, cfg Config, httpClient *http.Client) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("completion: model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("completion: create client: %w", err)
	}

	return &Completer{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		log:     logging.WithComponent("completion"),
	}, nil
}

// Complete returns the model's reply to prompt, capped at maxTokens output tokens.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("completion %s: %w", c.model, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}

	c.log.Debug().
		Str("model", c.model).
		Int("maxTokens", maxTokens).
		Dur("latency", time.Since(start)).
		Msg("Completion received")
	return text, nil
}
