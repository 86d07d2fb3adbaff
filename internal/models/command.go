package models

import "fmt"

// Intent is the closed set of command categories recognised by keyword classification.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentAnalyzeData
	IntentQueryHistory
	IntentGenerateReport
	IntentUpdateData
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	switch i {
	case IntentUnknown:
		return "unknown"
	case IntentAnalyzeData:
		return "analyze_data"
	case IntentQueryHistory:
		return "query_history"
	case IntentGenerateReport:
		return "generate_report"
	case IntentUpdateData:
		return "update_data"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// Known reports whether the intent maps to an executable command.
func (i Intent) Known() bool {
	return i >= IntentAnalyzeData && i <= IntentUpdateData
}

// Outcome is the terminal classification of one pipeline run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTranslationFailed
	OutcomeCompletionFailed
	OutcomeBackTranslationFailed
	OutcomeUnknownCommand
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeTranslationFailed:
		return "TranslationFailed"
	case OutcomeCompletionFailed:
		return "CompletionFailed"
	case OutcomeBackTranslationFailed:
		return "BackTranslationFailed"
	case OutcomeUnknownCommand:
		return "UnknownCommand"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Failed reports whether the outcome stopped the chain before classification.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeTranslationFailed, OutcomeCompletionFailed, OutcomeBackTranslationFailed:
		return true
	default:
		return false
	}
}
