package pack

import (
	"time"

	"github.com/packrat-dev/packrat/internal/impact"
	"github.com/packrat-dev/packrat/internal/tokenizer"
)

// Request carries everything one pack assembly needs. Budget is the hard
// token ceiling; MinPackSize is the configured floor below which a degraded
// pack is not worth attempting. A zero Now is taken from the clock, so tests
// pin it for byte-identical output.
type Request struct {
	Candidates  []Candidate
	Impact      []impact.Node
	Budget      int
	MinPackSize int
	Weights     Weights
	Counter     tokenizer.Counter
	Now         time.Time
	Version     uint64
}

// Build ranks, dedupes, and greedily fills the budget. Candidates that do
// not fit the remaining budget are skipped, never substituted; smaller
// candidates after them may still land. The result never exceeds the budget,
// and an empty pack is valid output, not an error.
func Build(req Request) (*Pack, error) {
	if req.Budget <= 0 || req.Budget < req.MinPackSize {
		return nil, &BudgetError{Budget: req.Budget, MinPackSize: req.MinPackSize}
	}
	if req.Counter == nil {
		req.Counter = tokenizer.Heuristic()
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	if req.Weights == (Weights{}) {
		req.Weights = DefaultWeights()
	}

	candidates := make([]Candidate, len(req.Candidates))
	copy(candidates, req.Candidates)
	for i := range candidates {
		if candidates[i].Tokens <= 0 {
			candidates[i].Tokens = req.Counter.Count(candidates[i].Content)
		}
	}

	proximity := Proximity(req.Impact)
	ranked, excluded := rank(candidates, proximity, req.Weights, req.Now)

	result := &Pack{
		Entries:    make([]Entry, 0, len(ranked)),
		Budget:     req.Budget,
		Considered: len(req.Candidates),
		Excluded:   excluded,
		Tokenizer:  req.Counter.Name(),
		Version:    req.Version,
	}

	remaining := req.Budget
	for _, entry := range ranked {
		if entry.Tokens > remaining {
			reason := ReasonLowerScore
			if entry.Tokens > req.Budget {
				reason = ReasonBudgetExhausted
			}
			result.Excluded = append(result.Excluded, Exclusion{
				Source:      entry.Source,
				Ref:         entry.Ref,
				Fingerprint: entry.Fingerprint,
				Tokens:      entry.Tokens,
				Score:       entry.Scores.Total,
				Reason:      reason,
			})
			continue
		}
		remaining -= entry.Tokens
		result.TotalTokens += entry.Tokens
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}
