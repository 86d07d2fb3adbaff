// Package command maps reply text to a known command and executes it.
package command

import (
	"strings"

	"ai-voice-command-service/internal/models"
)

// Rule maps a keyword to an intent.
type Rule struct {
	Keyword string
	Intent  models.Intent
}

// DefaultRules are the Portuguese command keywords, in match order.
var DefaultRules = []Rule{
	{Keyword: "analisar dados", Intent: models.IntentAnalyzeData},
	{Keyword: "consultar histórico", Intent: models.IntentQueryHistory},
	{Keyword: "gerar relatório", Intent: models.IntentGenerateReport},
	{Keyword: "atualizar dados", Intent: models.IntentUpdateData},
}

// Classifier matches text against an ordered rule table.
// Matching is a case-sensitive substring test and the first match wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules. Nil rules selects DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Classify returns the intent of the first rule whose keyword occurs in text,
// or IntentUnknown.
func (c *Classifier) Classify(text string) models.Intent {
	for _, r := range c.rules {
		if r.Keyword != "" && strings.Contains(text, r.Keyword) {
			return r.Intent
		}
	}
	return models.IntentUnknown
}
