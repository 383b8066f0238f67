package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the heuristic ratio used when no model tokenizer is
// configured. Budget exactness is defined relative to whichever counter a
// run uses; a run never mixes counters.
const charsPerToken = 4.0

const defaultEncoding = "cl100k_base"

// Counter turns text into a token cost. Implementations must be
// deterministic for identical input.
type Counter interface {
	Count(text string) int
	Name() string
}

type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return int(float64(len(text)) / charsPerToken)
}

func (heuristicCounter) Name() string { return "heuristic" }

// Heuristic returns the default character-ratio counter. It needs no model
// data and is the deterministic default.
func Heuristic() Counter {
	return heuristicCounter{}
}

type tiktokenCounter struct {
	encoding string
	encoder  *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

func (c *tiktokenCounter) Name() string { return "tiktoken:" + c.encoding }

// Tiktoken returns a model-accurate counter backed by a BPE encoding.
func Tiktoken(encoding string) (Counter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &tiktokenCounter{encoding: encoding, encoder: encoder}, nil
}

// ForName resolves a configured counter name: "heuristic" or
// "tiktoken[:encoding]".
func ForName(name string) (Counter, error) {
	switch {
	case name == "" || name == "heuristic":
		return Heuristic(), nil
	case name == "tiktoken":
		return Tiktoken("")
	case strings.HasPrefix(name, "tiktoken:"):
		return Tiktoken(strings.TrimPrefix(name, "tiktoken:"))
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}
