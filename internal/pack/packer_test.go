package pack

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packrat-dev/packrat/internal/impact"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func candidate(ref string, tokens int, content string) Candidate {
	return Candidate{
		Source:    SourceGraph,
		Ref:       ref,
		Content:   content,
		Tokens:    tokens,
		CreatedAt: testNow,
	}
}

func TestBuildRejectsInvalidBudget(t *testing.T) {
	var budgetErr *BudgetError

	_, err := Build(Request{Budget: 0})
	require.ErrorAs(t, err, &budgetErr)

	_, err = Build(Request{Budget: -10})
	require.ErrorAs(t, err, &budgetErr)

	_, err = Build(Request{Budget: 100, MinPackSize: 256})
	require.ErrorAs(t, err, &budgetErr)
	assert.Contains(t, budgetErr.Error(), "minimum pack size")
}

func TestBuildNeverExceedsBudget(t *testing.T) {
	result, err := Build(Request{
		Candidates: []Candidate{
			candidate("a", 40, "alpha"),
			candidate("b", 40, "bravo"),
			candidate("c", 40, "charlie"),
		},
		Budget: 100,
		Now:    testNow,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, result.TotalTokens, result.Budget)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 3, result.Considered)
}

func TestBuildGreedySkipsThenFitsSmaller(t *testing.T) {
	proximity := []impact.Node{
		{SymbolID: "big", File: "big.py", Distance: 0, Confidence: 1.0},
		{SymbolID: "medium", File: "medium.py", Distance: 1, Confidence: 0.8},
		{SymbolID: "small", File: "small.py", Distance: 2, Confidence: 0.64},
	}
	result, err := Build(Request{
		Candidates: []Candidate{
			candidate("big", 80, "the big one"),
			candidate("medium", 50, "the medium one"),
			candidate("small", 15, "the small one"),
		},
		Impact: proximity,
		Budget: 100,
		Now:    testNow,
	})
	require.NoError(t, err)

	// big (80) lands first, medium (50) does not fit the remaining 20,
	// small (15) still does: skip, not substitute.
	refs := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		refs = append(refs, entry.Ref)
	}
	assert.Equal(t, []string{"big", "small"}, refs)
	assert.Equal(t, 95, result.TotalTokens)

	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "medium", result.Excluded[0].Ref)
	assert.Equal(t, ReasonLowerScore, result.Excluded[0].Reason)
}

func TestBuildGreedyCorrectness(t *testing.T) {
	candidates := []Candidate{
		candidate("a", 30, "aaa"),
		candidate("b", 25, "bbb"),
		candidate("c", 60, "ccc"),
		candidate("d", 10, "ddd"),
	}
	result, err := Build(Request{Candidates: candidates, Budget: 70, Now: testNow})
	require.NoError(t, err)

	// No excluded-for-budget candidate may fit the budget left after the
	// last accepted one.
	remaining := result.Budget - result.TotalTokens
	for _, excl := range result.Excluded {
		if excl.Reason == ReasonLowerScore || excl.Reason == ReasonBudgetExhausted {
			assert.Greater(t, excl.Tokens, remaining)
		}
	}
}

func TestBuildOversizedCandidateReason(t *testing.T) {
	result, err := Build(Request{
		Candidates: []Candidate{candidate("huge", 500, "way too much text")},
		Budget:     100,
		Now:        testNow,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Entries)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, ReasonBudgetExhausted, result.Excluded[0].Reason)
}

func TestBuildEmptyPackIsValid(t *testing.T) {
	result, err := Build(Request{Budget: 50, Now: testNow})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Zero(t, result.TotalTokens)
}

func TestBuildDedupInvariant(t *testing.T) {
	dup1 := candidate("notes/one", 20, "shared content")
	dup1.Source = SourceSessionMemory
	dup2 := candidate("notes/two", 20, "shared content")
	dup2.Source = SourceGlobalMemory

	result, err := Build(Request{
		Candidates: []Candidate{dup1, dup2, candidate("other", 20, "different content")},
		Budget:     1000,
		Now:        testNow,
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, entry := range result.Entries {
		assert.False(t, seen[entry.Fingerprint], "duplicate fingerprint %s in pack", entry.Fingerprint)
		seen[entry.Fingerprint] = true
	}
	require.Len(t, result.Entries, 2)

	var duplicates int
	for _, excl := range result.Excluded {
		if excl.Reason == ReasonDuplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, duplicates)
}

func TestBuildImpactProximityOrdersEntries(t *testing.T) {
	nodes := []impact.Node{
		{SymbolID: "hot.py|func|f", File: "hot.py", Distance: 0, Confidence: 1.0},
	}
	hot := candidate("hot.py|func|f", 10, "changed function body")
	cold := candidate("unrelated", 10, "stale note about deployment")

	result, err := Build(Request{
		Candidates: []Candidate{cold, hot},
		Impact:     nodes,
		Budget:     1000,
		Now:        testNow,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "hot.py|func|f", result.Entries[0].Ref)
	assert.Equal(t, 1.0, result.Entries[0].Scores.Impact)
	// Unrelated candidates keep a floor score, never zero.
	assert.Equal(t, floorProximity, result.Entries[1].Scores.Impact)
	assert.Greater(t, result.Entries[1].Scores.Total, 0.0)
}

func TestBuildCountsTokensWhenUnset(t *testing.T) {
	cand := Candidate{Source: SourceDiff, Ref: "diff", Content: "0123456789abcdef"}
	result, err := Build(Request{Candidates: []Candidate{cand}, Budget: 100, Now: testNow})
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	// Heuristic counter: len/4.
	assert.Equal(t, 4, result.Entries[0].Tokens)
	assert.Equal(t, "heuristic", result.Tokenizer)
}

func TestBuildDeterministic(t *testing.T) {
	req := Request{
		Candidates: []Candidate{
			candidate("a", 30, "alpha content"),
			candidate("b", 30, "bravo content"),
			candidate("c", 30, "charlie content"),
		},
		Impact: []impact.Node{{SymbolID: "b", File: "b.py", Distance: 1, Confidence: 0.8}},
		Budget: 70,
		Now:    testNow,
	}

	first, err := Build(req)
	require.NoError(t, err)
	second, err := Build(req)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestRecencyDecay(t *testing.T) {
	fresh := recency(testNow, testNow)
	weekOld := recency(testNow.Add(-7*24*time.Hour), testNow)
	monthOld := recency(testNow.Add(-28*24*time.Hour), testNow)

	assert.Equal(t, 1.0, fresh)
	assert.InDelta(t, 0.5, weekOld, 1e-9)
	assert.Greater(t, weekOld, monthOld)
	// Records with no timestamp score as fresh rather than ancient.
	assert.Equal(t, 1.0, recency(time.Time{}, testNow))
}
