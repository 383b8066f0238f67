package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packrat-dev/packrat/internal/pack"
)

func TestAppendAndRecords(t *testing.T) {
	store := Open(t.TempDir(), ScopeSession)

	require.NoError(t, store.Append(Record{Content: "auth module uses JWT tokens", Ref: "auth.py"}))
	require.NoError(t, store.Append(Record{Content: "billing runs nightly at 02:00"}))

	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].CreatedAt.IsZero())
	assert.Equal(t, "auth.py", records[0].Ref)
}

func TestRecordsMissingFileIsEmpty(t *testing.T) {
	store := Open(t.TempDir(), ScopeGlobal)
	records, err := store.Records()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	store := Open(t.TempDir(), ScopeAgent)
	require.Error(t, store.Append(Record{}))
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	store := Open(t.TempDir(), ScopeGlobal)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(Record{ID: "r1", Content: "invoice totals include tax", CreatedAt: now}))
	require.NoError(t, store.Append(Record{ID: "r2", Content: "invoice tax rate is configured per invoice region", CreatedAt: now}))
	require.NoError(t, store.Append(Record{ID: "r3", Content: "deployment uses blue green rollout", CreatedAt: now}))

	candidates, err := store.Retrieve("invoice tax", 10)
	require.NoError(t, err)

	require.Len(t, candidates, 2, "unrelated records must not surface")
	for _, cand := range candidates {
		assert.Equal(t, pack.SourceGlobalMemory, cand.Source)
		assert.NotEmpty(t, cand.Fingerprint)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	store := Open(t.TempDir(), ScopeSession)
	require.NoError(t, store.Append(Record{Content: "something"}))

	candidates, err := store.Retrieve("", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRetrieveLimit(t *testing.T) {
	store := Open(t.TempDir(), ScopeSession)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(Record{
			ID:      string(rune('a' + i)),
			Content: "parser handles nested classes",
		}))
	}

	candidates, err := store.Retrieve("parser nested", 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestTouchBumpsUses(t *testing.T) {
	store := Open(t.TempDir(), ScopeAgent)
	require.NoError(t, store.Append(Record{ID: "r1", Content: "scanner skips vendored trees"}))
	require.NoError(t, store.Append(Record{ID: "r2", Content: "tokenizer defaults to the heuristic"}))

	require.NoError(t, store.Touch("r1"))
	require.NoError(t, store.Touch("r1"))

	records, err := store.Records()
	require.NoError(t, err)
	byID := make(map[string]Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	assert.Equal(t, 2, byID["r1"].Uses)
	assert.Equal(t, 0, byID["r2"].Uses)
}

func TestTouchByFingerprintFeedsFrequency(t *testing.T) {
	store := Open(t.TempDir(), ScopeGlobal)
	require.NoError(t, store.Append(Record{Content: "scanner skips vendored trees"}))
	require.NoError(t, store.Append(Record{Content: "unrelated deployment note"}))

	before, err := store.Retrieve("vendored trees", 10)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Zero(t, before[0].Frequency)

	require.NoError(t, store.TouchByFingerprint(before[0].Fingerprint))

	after, err := store.Retrieve("vendored trees", 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Greater(t, after[0].Frequency, 0.0)

	records, err := store.Records()
	require.NoError(t, err)
	for _, rec := range records {
		if rec.Content == "unrelated deployment note" {
			assert.Zero(t, rec.Uses, "untouched records keep their counter")
		}
	}
}

func TestFrequencySaturates(t *testing.T) {
	assert.Equal(t, 0.0, frequency(0))
	assert.Less(t, frequency(1), frequency(10))
	assert.Less(t, frequency(10), 1.0)
}

func TestScopesUseSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	session := Open(dir, ScopeSession)
	global := Open(dir, ScopeGlobal)

	require.NoError(t, session.Append(Record{Content: "session only note"}))

	records, err := global.Records()
	require.NoError(t, err)
	assert.Empty(t, records)
}
