package pipeline

import (
	"errors"
	"fmt"

	"ai-voice-command-service/internal/models"
)

// Stage names used in logs, metrics and StageError.
const (
	StageTranslate     = "translate"
	StageComplete      = "complete"
	StageBackTranslate = "back_translate"
	StageClassify      = "classify"
	StageExecute       = "execute"
)

// Per-event failures. They end one chain and never the session.
var (
	ErrTranslationFailed     = errors.New("TranslationFailed")
	ErrCompletionFailed      = errors.New("CompletionFailed")
	ErrBackTranslationFailed = errors.New("BackTranslationFailed")
	ErrUnknownCommand        = errors.New("UnknownCommand")

	// ErrBlankResult is the cause when a stage returns only whitespace.
	ErrBlankResult = errors.New("blank result")
)

// StageError is the error of a chain that stopped at Stage.
type StageError struct {
	Stage   string
	Outcome models.Outcome
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Outcome, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the outcome.
func (e *StageError) Is(target error) bool {
	return target == sentinel(e.Outcome)
}

func sentinel(o models.Outcome) error {
	switch o {
	case models.OutcomeTranslationFailed:
		return ErrTranslationFailed
	case models.OutcomeCompletionFailed:
		return ErrCompletionFailed
	case models.OutcomeBackTranslationFailed:
		return ErrBackTranslationFailed
	case models.OutcomeUnknownCommand:
		return ErrUnknownCommand
	default:
		return nil
	}
}
