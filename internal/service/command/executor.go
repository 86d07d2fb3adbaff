package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ai-voice-command-service/internal/models"
	"ai-voice-command-service/internal/observability/logging"
	"ai-voice-command-service/internal/observability/metrics"
)

// UnknownResponse is the reply for text matching no command.
const UnknownResponse = "Comando desconhecido"

// ErrUnknownIntent is returned for an intent without an action.
var ErrUnknownIntent = errors.New("unknown intent")

// Action performs one command and returns its response text.
type Action interface {
	Run(ctx context.Context, text string) (string, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, text string) (string, error)

// Run calls f.
func (f ActionFunc) Run(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// logAction logs what it is doing and answers with a fixed response.
type logAction struct {
	intent   models.Intent
	activity string
	response string
	log      zerolog.Logger
}

func (a logAction) Run(_ context.Context, text string) (string, error) {
	a.log.Info().Str("intent", a.intent.String()).Str("text", text).Msg(a.activity)
	return a.response, nil
}

// DefaultActions returns the built-in command actions.
func DefaultActions() map[models.Intent]Action {
	l := logging.WithComponent("executor")
	return map[models.Intent]Action{
		models.IntentAnalyzeData: logAction{
			intent: models.IntentAnalyzeData, activity: "Executando análise de dados...",
			response: "Análise de dados executada", log: l,
		},
		models.IntentQueryHistory: logAction{
			intent: models.IntentQueryHistory, activity: "Consultando histórico...",
			response: "Histórico consultado", log: l,
		},
		models.IntentGenerateReport: logAction{
			intent: models.IntentGenerateReport, activity: "Gerando relatório...",
			response: "Relatório gerado", log: l,
		},
		models.IntentUpdateData: logAction{
			intent: models.IntentUpdateData, activity: "Atualizando dados...",
			response: "Dados atualizados", log: l,
		},
	}
}

// Executor dispatches an intent to its action.
type Executor struct {
	actions map[models.Intent]Action
	metrics *metrics.Metrics
}

// NewExecutor creates an executor. Nil actions selects DefaultActions.
func NewExecutor(actions map[models.Intent]Action, m *metrics.Metrics) *Executor {
	if actions == nil {
		actions = DefaultActions()
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Executor{actions: actions, metrics: m}
}

// Execute runs the action for intent. IntentUnknown and intents without an
// action return ErrUnknownIntent.
func (e *Executor) Execute(ctx context.Context, intent models.Intent, text string) (string, error) {
	if !intent.Known() {
		return "", ErrUnknownIntent
	}
	action, ok := e.actions[intent]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownIntent, intent)
	}

	resp, err := action.Run(ctx, text)
	if err != nil {
		return "", fmt.Errorf("execute %s: %w", intent, err)
	}
	e.metrics.RecordCommand(intent.String())
	return resp, nil
}
