// Package schema validates telemetry records before they are written.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"ai-voice-command-service/internal/models"
)

// ErrInvalidRecord wraps every validation failure.
var ErrInvalidRecord = errors.New("invalid telemetry record")

var outcomes = map[string]bool{
	models.OutcomeSuccess.String():               true,
	models.OutcomeTranslationFailed.String():     true,
	models.OutcomeCompletionFailed.String():      true,
	models.OutcomeBackTranslationFailed.String(): true,
	models.OutcomeUnknownCommand.String():        true,
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the fields every backend needs.
func (v *Validator) Validate(rec models.TelemetryRecord) error {
	var problems []string
	if rec.EventID == "" {
		problems = append(problems, "eventId is empty")
	}
	if strings.TrimSpace(rec.Command) == "" {
		problems = append(problems, "command is empty")
	}
	if strings.TrimSpace(rec.Response) == "" {
		problems = append(problems, "response is empty")
	}
	if rec.Host == "" {
		problems = append(problems, "host is empty")
	}
	if !outcomes[rec.Outcome] {
		problems = append(problems, fmt.Sprintf("unknown outcome %q", rec.Outcome))
	}
	if rec.RecordedAt.IsZero() {
		problems = append(problems, "recordedAt is zero")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(problems, "; "))
	}
	return nil
}
