package pack

import (
	"math"
	"sort"
	"time"

	"github.com/packrat-dev/packrat/internal/fileutil"
	"github.com/packrat-dev/packrat/internal/impact"
)

// floorProximity is the impact score given to candidates unrelated to the
// impact set. Never zero, so globally relevant memory can still surface.
const floorProximity = 0.05

// recencyHalfLife is how long a candidate takes to lose half its recency
// signal.
const recencyHalfLife = 7 * 24 * time.Hour

// Proximity folds impact nodes into a confidence lookup keyed by both symbol
// ID and file path, keeping the strongest signal per key.
func Proximity(nodes []impact.Node) map[string]float64 {
	out := impact.FileConfidence(nodes)
	for _, node := range nodes {
		if existing, ok := out[node.SymbolID]; !ok || node.Confidence > existing {
			out[node.SymbolID] = node.Confidence
		}
	}
	return out
}

func score(cand Candidate, proximity map[string]float64, weights Weights, now time.Time) Scores {
	s := Scores{
		Impact:    floorProximity,
		Recency:   recency(cand.CreatedAt, now),
		Frequency: clamp01(cand.Frequency),
		Persona:   clamp01(cand.Persona),
	}
	if conf, ok := proximity[cand.Ref]; ok && conf > s.Impact {
		s.Impact = conf
	}
	s.Total = weights.Impact*s.Impact +
		weights.Recency*s.Recency +
		weights.Frequency*s.Frequency +
		weights.Persona*s.Persona
	return s
}

func recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || !createdAt.Before(now) {
		return 1.0
	}
	age := now.Sub(createdAt)
	return math.Pow(0.5, float64(age)/float64(recencyHalfLife))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rank scores every candidate, collapses duplicate fingerprints down to the
// best representative, and returns survivors sorted by descending score.
// Ties break on fingerprint then ref so identical inputs always rank
// identically.
func rank(candidates []Candidate, proximity map[string]float64, weights Weights, now time.Time) ([]Entry, []Exclusion) {
	scored := make([]Entry, 0, len(candidates))
	for _, cand := range candidates {
		fingerprint := cand.Fingerprint
		if fingerprint == "" {
			fingerprint = fileutil.HashBytes([]byte(cand.Content))
		}
		scored = append(scored, Entry{
			Source:      cand.Source,
			Ref:         cand.Ref,
			Content:     cand.Content,
			Tokens:      cand.Tokens,
			Fingerprint: fingerprint,
			Scores:      score(cand, proximity, weights, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Scores.Total != scored[j].Scores.Total {
			return scored[i].Scores.Total > scored[j].Scores.Total
		}
		if scored[i].Fingerprint != scored[j].Fingerprint {
			return scored[i].Fingerprint < scored[j].Fingerprint
		}
		return scored[i].Ref < scored[j].Ref
	})

	// First occurrence in rank order wins its duplicate group.
	seen := make(map[string]bool, len(scored))
	entries := make([]Entry, 0, len(scored))
	excluded := make([]Exclusion, 0)
	for _, entry := range scored {
		if seen[entry.Fingerprint] {
			excluded = append(excluded, Exclusion{
				Source:      entry.Source,
				Ref:         entry.Ref,
				Fingerprint: entry.Fingerprint,
				Tokens:      entry.Tokens,
				Score:       entry.Scores.Total,
				Reason:      ReasonDuplicate,
			})
			continue
		}
		seen[entry.Fingerprint] = true
		entries = append(entries, entry)
	}
	return entries, excluded
}
