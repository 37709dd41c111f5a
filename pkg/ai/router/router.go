package router

import (
	"fmt"

	"literature-agent-be/internal/pkg/logger"
)

const logModule = "Router"

// GenerationTrigger describes an explicit document-generation command
type GenerationTrigger struct {
	Kind    Intent // IntentReport or IntentPPT
	Trigger string
	Prompt  string // instruction text without the slash prefix
	Figures []int  // figures named in the command, first-appearance order
}

// Decision is the routing outcome for one query
type Decision struct {
	Intent     Intent
	Query      string
	References *ReferenceParseResult
	Generation *GenerationTrigger
}

// RequiresDocument reports whether the intent cannot run without a loaded document
func (d *Decision) RequiresDocument() bool {
	return d.Intent != IntentQA
}

// RoutingError is returned when the selected intent needs a document and none is loaded
type RoutingError struct {
	Intent Intent
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("please upload a PDF first: %s needs a loaded document", e.Intent)
}

// Classify maps a query onto exactly one intent. First match wins:
//  1. explicit generation command → report / ppt
//  2. any subfigure reference or the all-figures trigger → subfigure-analysis
//  3. whole-figure references only → subfigure-analysis
//  4. otherwise → qa
func Classify(query string) *Decision {
	refs := ParseReferences(query)
	decision := &Decision{
		Intent:     IntentQA,
		Query:      query,
		References: refs,
	}

	if parsed := Parse(query); parsed.Generation != "" {
		decision.Intent = parsed.Generation
		decision.Generation = &GenerationTrigger{
			Kind:    parsed.Generation,
			Trigger: parsed.Trigger,
			Prompt:  parsed.CleanPrompt,
			Figures: figureNumbers(refs),
		}
		return decision
	}

	if refs.HasSubfigure() || refs.AllFigures {
		decision.Intent = IntentSubfigure
		return decision
	}

	if refs.HasRefs {
		decision.Intent = IntentSubfigure
	}
	return decision
}

func figureNumbers(refs *ReferenceParseResult) []int {
	seen := make(map[int]struct{})
	numbers := make([]int, 0, len(refs.References))
	for _, ref := range refs.References {
		if ref.Figure <= 0 {
			continue
		}
		if _, ok := seen[ref.Figure]; ok {
			continue
		}
		seen[ref.Figure] = struct{}{}
		numbers = append(numbers, ref.Figure)
	}
	return numbers
}

// Router classifies queries against the current session state
type Router struct {
	logger logger.ILogger
}

// NewRouter creates a new intent router
func NewRouter(log logger.ILogger) *Router {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Router{logger: log}
}

// Route classifies the query and checks that the chosen intent can run.
// Chit-chat (qa) is allowed without a document; every other intent
// fails with *RoutingError when hasDocument is false.
func (r *Router) Route(query string, hasDocument bool) (*Decision, error) {
	decision := Classify(query)

	r.logger.Debug(logModule, "Query classified", map[string]interface{}{
		"intent":      string(decision.Intent),
		"references":  len(decision.References.References),
		"allFigures":  decision.References.AllFigures,
		"generation":  decision.Generation != nil,
		"hasDocument": hasDocument,
		"query":       truncateLog(query, 50),
	})

	if decision.RequiresDocument() && !hasDocument {
		return decision, &RoutingError{Intent: decision.Intent}
	}
	return decision, nil
}

// truncateLog truncates a string for logging purposes
func truncateLog(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
