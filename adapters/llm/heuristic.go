package llm

import (
	"context"
	"strings"
	"unicode"

	"metriscope/ports"
)

// HeuristicEnhancer is the offline rewriter used when no model endpoint
// is configured. It only tidies punctuation and casing, keeping every
// fact literally intact.
type HeuristicEnhancer struct{}

// NewHeuristicEnhancer creates the deterministic fallback rewriter
func NewHeuristicEnhancer() *HeuristicEnhancer {
	return &HeuristicEnhancer{}
}

// Rewrite applies the deterministic polish to every text
func (e *HeuristicEnhancer) Rewrite(_ context.Context, req ports.RewriteRequest) (*ports.RewriteResponse, error) {
	resp := &ports.RewriteResponse{
		Hypotheses: make([]string, len(req.Hypotheses)),
		Decisions:  make([]string, len(req.Decisions)),
	}
	for i, text := range req.Hypotheses {
		resp.Hypotheses[i] = polish(text)
	}
	for i, text := range req.Decisions {
		resp.Decisions[i] = polish(text)
	}
	return resp, nil
}

// polish collapses whitespace, uppercases the first letter, and closes
// the sentence
func polish(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}
	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	text = string(runes)
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		text += "."
	}
	return text
}

var _ ports.Enhancer = (*HeuristicEnhancer)(nil)
