package analysis

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are common words that carry no signal for file matching.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "should": true, "when": true, "then": true,
	"what": true, "which": true, "where": true, "have": true, "has": true,
	"are": true, "was": true, "were": true, "will": true, "can": true,
	"not": true, "but": true, "all": true, "its": true, "into": true,
	"add": true, "fix": true, "use": true, "new": true,
}

// Keywords extracts lowercase search keywords from free text: words of at
// least three characters, stopwords removed, deduplicated, in first-seen
// order.
func Keywords(text string) []string {
	var words []string
	seen := map[string]bool{}

	current := strings.Builder{}
	flush := func() {
		if current.Len() == 0 {
			return
		}
		w := current.String()
		current.Reset()
		if len(w) < 3 || stopwords[w] || seen[w] {
			return
		}
		seen[w] = true
		words = append(words, w)
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return words
}

// OverlapRatio returns the fraction of keywords that appear as substrings of
// at least one candidate name. Zero keywords means zero overlap.
func OverlapRatio(keywords []string, candidates []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}

	matched := 0
	for _, kw := range keywords {
		for _, c := range lowered {
			if strings.Contains(c, kw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(keywords))
}

// Ranked pairs an item with its overlap score.
type Ranked struct {
	Index int
	Score float64
}

// RankByOverlap scores every candidate set against the keywords and returns
// the indexes of sets with a positive score, best first. Ties keep input
// order.
func RankByOverlap(keywords []string, candidateSets [][]string) []Ranked {
	var ranked []Ranked
	for i, set := range candidateSets {
		score := OverlapRatio(keywords, set)
		if score > 0 {
			ranked = append(ranked, Ranked{Index: i, Score: score})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}
