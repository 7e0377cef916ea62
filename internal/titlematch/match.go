package titlematch

import (
	"github.com/hbollon/go-edlib"
)

// Candidate is one catalog entry offered for matching. Titles holds every
// known form of the name (romaji, english, synonyms) in catalog order.
type Candidate struct {
	Source string
	ID     string
	Titles []string
}

// Match pairs the winning candidate with the title that scored best.
type Match struct {
	Candidate Candidate
	Title     string
	Score     float64
}

// Score compares two raw titles and returns a similarity in [0, 1]. Equal
// normalized forms score 1.0. Otherwise the result is the better of a
// token-set overlap (robust to word order and extra words) and Jaro-Winkler
// similarity (robust to small spelling differences).
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	overlap := tokenOverlap(na, nb)
	jw := float64(edlib.JaroWinklerSimilarity(na, nb))
	if overlap >= jw {
		return overlap
	}
	return jw
}

// Best evaluates every title of every candidate against the query and
// returns the strongest match at or above threshold. Ties resolve
// deterministically: the candidate listed first wins, then the title listed
// first within it.
func Best(query string, candidates []Candidate, threshold float64) (Match, bool) {
	best := Match{Score: -1}
	found := false
	for _, candidate := range candidates {
		for _, title := range candidate.Titles {
			score := Score(query, title)
			if score < threshold || score <= best.Score {
				continue
			}
			best = Match{Candidate: candidate, Title: title, Score: score}
			found = true
		}
	}
	if !found {
		return Match{}, false
	}
	return best, true
}

func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
