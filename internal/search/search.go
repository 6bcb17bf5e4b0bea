// Package search defines the full-text ranking capability used for note
// search. The contract is backend-agnostic so a dedicated index could
// replace the in-process ranker without touching callers: queries and
// documents are lowercased and tokenized on non-alphanumeric boundaries, a
// document matches when any query term occurs in it, and matches are ordered
// by descending relevance score with ties broken by ascending document id.
package search

import (
	"sort"
	"strings"
	"unicode"
)

// Document is a unit of searchable text.
type Document struct {
	ID      int64
	Title   string
	Content string
}

// Match is a ranked hit.
type Match struct {
	ID    int64
	Score float64
}

// Engine ranks documents against a query.
type Engine interface {
	Rank(query string, docs []Document) []Match
}

// titleWeight boosts title hits over content hits.
const titleWeight = 2.0

// TermFrequencyEngine scores by weighted term frequency across title and
// content.
type TermFrequencyEngine struct{}

var _ Engine = (*TermFrequencyEngine)(nil)

// NewTermFrequencyEngine returns the default in-process ranker.
func NewTermFrequencyEngine() *TermFrequencyEngine {
	return &TermFrequencyEngine{}
}

// Rank implements Engine. Documents with no matching term are excluded.
func (e *TermFrequencyEngine) Rank(query string, docs []Document) []Match {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		score := scoreTokens(tokenize(doc.Title), terms)*titleWeight + scoreTokens(tokenize(doc.Content), terms)
		if score > 0 {
			matches = append(matches, Match{ID: doc.ID, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

func scoreTokens(tokens, terms []string) float64 {
	var score float64
	for _, token := range tokens {
		for _, term := range terms {
			if token == term {
				score++
			}
		}
	}
	return score
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
