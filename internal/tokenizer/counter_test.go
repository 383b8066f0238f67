package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicCount(t *testing.T) {
	counter := Heuristic()
	assert.Equal(t, "heuristic", counter.Name())
	assert.Equal(t, 0, counter.Count(""))
	assert.Equal(t, 4, counter.Count("0123456789abcdef"))
	assert.Equal(t, 3, counter.Count("0123456789abcde"))
}

func TestHeuristicDeterministic(t *testing.T) {
	counter := Heuristic()
	text := "def f():\n    return 1\n"
	assert.Equal(t, counter.Count(text), counter.Count(text))
}

func TestForName(t *testing.T) {
	counter, err := ForName("")
	require.NoError(t, err)
	assert.Equal(t, "heuristic", counter.Name())

	counter, err = ForName("heuristic")
	require.NoError(t, err)
	assert.Equal(t, "heuristic", counter.Name())

	_, err = ForName("gpt-nonsense")
	require.Error(t, err)
}
