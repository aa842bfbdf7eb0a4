package ports

import "context"

// RewriteRequest carries the deterministic texts to polish plus enough
// context for the rewriter to stay factual
type RewriteRequest struct {
	DatasetSummary string   `json:"dataset_summary"`
	Hypotheses     []string `json:"hypotheses"`
	Decisions      []string `json:"decisions"`
}

// RewriteResponse returns the polished texts in the same order and
// length as the request slices
type RewriteResponse struct {
	Hypotheses []string `json:"hypotheses"`
	Decisions  []string `json:"decisions"`
}

// Enhancer rewrites hypothesis and decision wording after the report is
// finalized. Implementations only touch text: confidence tiers,
// evidence, and ordering are fixed by the rule engine and must pass
// through unchanged. Callers fall back to the original text on any
// error.
type Enhancer interface {
	Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error)
}
