package memory

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

type scoredRecord struct {
	record Record
	score  float64
}

// searchRecords ranks records against the query with BM25 over record
// content and ref tokens. Zero-score records never surface.
func searchRecords(records []Record, query string, limit int) []Record {
	if len(records) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	queryTerms := uniqueTerms(tokenize(query))
	if len(queryTerms) == 0 {
		return nil
	}

	docs := make([]map[string]int, len(records))
	docFreq := make(map[string]int)
	totalLength := 0
	lengths := make([]int, len(records))
	for i, rec := range records {
		terms := make(map[string]int)
		addWeighted(terms, rec.Content, 1)
		addWeighted(terms, rec.Ref, 2)
		docs[i] = terms
		for term, count := range terms {
			docFreq[term]++
			lengths[i] += count
		}
		totalLength += lengths[i]
	}
	avgLen := float64(totalLength) / float64(len(records))
	if avgLen <= 0 {
		avgLen = 1
	}

	const k1, b = 1.2, 0.75
	n := float64(len(records))

	results := make([]scoredRecord, 0)
	for i, terms := range docs {
		score := 0.0
		docLen := float64(lengths[i])
		for _, term := range queryTerms {
			tf := float64(terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			score += idf * (tf * (k1 + 1.0)) / (tf + k1*(1.0-b+b*(docLen/avgLen)))
		}
		if score > 0 {
			results = append(results, scoredRecord{record: records[i], score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].record.ID < results[j].record.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]Record, len(results))
	for i, res := range results {
		out[i] = res.record
	}
	return out
}

func addWeighted(terms map[string]int, value string, weight int) {
	if weight <= 0 {
		return
	}
	for _, token := range tokenize(value) {
		terms[token] += weight
	}
}

func tokenize(value string) []string {
	value = strings.ToLower(value)
	if value == "" {
		return nil
	}
	return tokenPattern.FindAllString(value, -1)
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
