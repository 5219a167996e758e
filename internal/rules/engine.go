package rules

import (
	"fmt"
	"strings"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/model"
)

// Engine classifies a message from its sender, subject and body snippet.
// Evaluation is pure and case-insensitive; pattern lists are ordered
// lowercase substrings supplied by configuration.
type Engine struct {
	ignoreSenders  []string
	ignoreSubjects []string
	actionKeywords []string
	useSnippet     bool
}

func NewEngine(cfg config.RulesConfig, useSnippet bool) *Engine {
	return &Engine{
		ignoreSenders:  cfg.IgnoreSenders,
		ignoreSubjects: cfg.IgnoreSubjects,
		actionKeywords: cfg.ActionKeywords,
		useSnippet:     useSnippet,
	}
}

// Classify applies the rules in strict priority order: sender suppression
// beats everything, bulk detection beats action keywords, and the question
// heuristic on the snippet is the weakest signal.
func (e *Engine) Classify(from, subject, snippet string) model.Classification {
	fromLower := strings.ToLower(from)
	subjectLower := strings.ToLower(subject)

	for _, p := range e.ignoreSenders {
		if strings.Contains(fromLower, p) {
			return model.Classification{Category: model.CategoryInfoOnly, Reason: "no-reply sender"}
		}
	}

	for _, p := range e.ignoreSubjects {
		if strings.Contains(subjectLower, p) {
			return model.Classification{Category: model.CategoryInfoOnly, Reason: "bulk/newsletter pattern"}
		}
	}

	for _, p := range e.actionKeywords {
		if strings.Contains(subjectLower, p) {
			return model.Classification{
				Category: model.CategoryActionRequired,
				Reason:   fmt.Sprintf("keyword: %s", p),
			}
		}
	}

	if e.useSnippet && snippet != "" && strings.Contains(snippet, "?") {
		return model.Classification{Category: model.CategoryActionRequired, Reason: "question in body"}
	}

	return model.Classification{Category: model.CategoryInfoOnly, Reason: "no action signals"}
}
