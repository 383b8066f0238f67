package pack

import (
	"fmt"
	"time"
)

// Source is the closed set of candidate origins.
type Source string

const (
	SourceGraph         Source = "graph"
	SourceGlobalMemory  Source = "global_memory"
	SourceAgentMemory   Source = "agent_memory"
	SourceSessionMemory Source = "session_memory"
	SourceDiff          Source = "diff"
	SourceTrace         Source = "trace"
)

// Candidate is one piece of content competing for budget. Ref names the file
// or symbol the content is about; the ranker looks it up in the impact set.
// Tokens <= 0 means the packer counts the content itself. An empty
// Fingerprint is derived from the content bytes.
type Candidate struct {
	Source      Source    `json:"source"`
	Ref         string    `json:"ref"`
	Content     string    `json:"content"`
	Tokens      int       `json:"tokens,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	Frequency   float64   `json:"frequency,omitempty"`
	Persona     float64   `json:"persona,omitempty"`
}

// Scores is the per-candidate relevance vector, kept alongside the weighted
// total so manifests explain why a candidate ranked where it did.
type Scores struct {
	Impact    float64 `json:"impact"`
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Persona   float64 `json:"persona"`
	Total     float64 `json:"total"`
}

// Weights are the four ranking coefficients.
type Weights struct {
	Impact    float64 `json:"impact" yaml:"impact"`
	Recency   float64 `json:"recency" yaml:"recency"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Persona   float64 `json:"persona" yaml:"persona"`
}

func DefaultWeights() Weights {
	return Weights{Impact: 0.5, Recency: 0.2, Frequency: 0.2, Persona: 0.1}
}

// Entry is a candidate that made it into the pack.
type Entry struct {
	Source      Source  `json:"source"`
	Ref         string  `json:"ref"`
	Content     string  `json:"content"`
	Tokens      int     `json:"tokens"`
	Fingerprint string  `json:"fingerprint"`
	Scores      Scores  `json:"scores"`
}

// Reason is the closed set of exclusion causes recorded in the manifest.
type Reason string

const (
	// ReasonDuplicate marks a candidate that shared a fingerprint with a
	// higher-scoring representative.
	ReasonDuplicate Reason = "duplicate"
	// ReasonLowerScore marks a candidate that would have fit an empty budget
	// but lost its room to higher-scoring candidates.
	ReasonLowerScore Reason = "lower_score"
	// ReasonBudgetExhausted marks a candidate too large for the whole budget.
	ReasonBudgetExhausted Reason = "budget_exhausted"
)

// Exclusion is one manifest line: which candidate was left out and why.
type Exclusion struct {
	Source      Source  `json:"source"`
	Ref         string  `json:"ref"`
	Fingerprint string  `json:"fingerprint"`
	Tokens      int     `json:"tokens"`
	Score       float64 `json:"score"`
	Reason      Reason  `json:"reason"`
}

// Pack is the final budget-constrained bundle: selected entries in rank
// order, the cumulative cost, and a manifest covering every candidate that
// was considered but excluded.
type Pack struct {
	Entries     []Entry     `json:"entries"`
	TotalTokens int         `json:"total_tokens"`
	Budget      int         `json:"budget"`
	Considered  int         `json:"considered"`
	Excluded    []Exclusion `json:"excluded,omitempty"`
	Tokenizer   string      `json:"tokenizer"`
	Version     uint64      `json:"version"`
}

// BudgetError reports an invalid or unsatisfiable budget: non-positive, or
// below the configured minimum pack size floor.
type BudgetError struct {
	Budget      int
	MinPackSize int
}

func (e *BudgetError) Error() string {
	if e.Budget <= 0 {
		return fmt.Sprintf("budget %d tokens is not positive", e.Budget)
	}
	return fmt.Sprintf("budget %d tokens is below the minimum pack size %d", e.Budget, e.MinPackSize)
}
