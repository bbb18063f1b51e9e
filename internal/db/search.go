package db

import (
	"sort"

	"golang.org/x/text/unicode/norm"
)

// SearchThreshold is the similarity a field must exceed (strictly) to count
// towards a document's search score.
const SearchThreshold = 50.0

// Similarity returns the percentage (0-100) of characters a and b have in
// common, found by recursively matching the longest common substring and the
// pieces to its left and right. Both inputs are NFC-normalized first.
func Similarity(a, b string) float64 {
	ra := []rune(norm.NFC.String(a))
	rb := []rune(norm.NFC.String(b))
	if len(ra)+len(rb) == 0 {
		return 0
	}
	return float64(commonChars(ra, rb)) * 2 * 100 / float64(len(ra)+len(rb))
}

func commonChars(a, b []rune) int {
	pos1, pos2, max := longestCommon(a, b)
	if max == 0 {
		return 0
	}
	sum := max
	if pos1 > 0 && pos2 > 0 {
		sum += commonChars(a[:pos1], b[:pos2])
	}
	if pos1+max < len(a) && pos2+max < len(b) {
		sum += commonChars(a[pos1+max:], b[pos2+max:])
	}
	return sum
}

// longestCommon finds the first longest common substring of a and b.
func longestCommon(a, b []rune) (pos1, pos2, max int) {
	for p := 0; p < len(a); p++ {
		for q := 0; q < len(b); q++ {
			l := 0
			for p+l < len(a) && q+l < len(b) && a[p+l] == b[q+l] {
				l++
			}
			if l > max {
				pos1, pos2, max = p, q, l
			}
		}
	}
	return pos1, pos2, max
}

// qualifies reports whether a similarity counts towards a score.
func qualifies(similarity float64) bool {
	return similarity > SearchThreshold
}

type scored struct {
	doc   Document
	score float64
}

// Rank scores every document against the search keyword and returns the ones
// with at least one qualifying field, best first. Fields that do not resolve
// or have no textual form are skipped for that document. Equal scores keep
// document order.
func Rank(docs []Document, search SearchOption) []Document {
	if len(docs) == 0 || search.Keyword == "" {
		return docs
	}

	var ranked []scored
	for _, doc := range docs {
		var score float64
		hit := false
		for _, field := range search.Fields {
			val, err := Resolve(field, doc)
			if err != nil {
				continue
			}
			text, ok := textOf(val)
			if !ok {
				continue
			}
			if sim := Similarity(text, search.Keyword); qualifies(sim) {
				score += sim
				hit = true
			}
		}
		if hit {
			ranked = append(ranked, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	results := make([]Document, len(ranked))
	for i, r := range ranked {
		results[i] = r.doc
	}
	return results
}
