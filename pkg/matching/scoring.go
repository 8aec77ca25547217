package matching

import "strings"

// Scorer provides the string comparison primitives used by the matcher.
// All functions are pure and deterministic.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// TokenSetSimilarity scores two ordered token sets between 0.0 and 1.0.
// Exact token matches score full credit. A single-letter token (an
// abbreviated first name) scores partial credit against an unmatched token
// sharing its initial, so "m salah" still lands close to "mohamed salah".
// When one set is fully contained in the other the score floors at 0.80:
// the stats feed often reports a surname alone, and a bare "salah" must
// stay in consideration against "mohamed salah".
func (s *Scorer) TokenSetSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	const (
		initialCredit    = 0.9
		containmentFloor = 0.80
	)

	bUsed := make([]bool, len(b))
	var credit float64

	// exact matches first
	exact := 0
	aMatched := make([]bool, len(a))
	for i, ta := range a {
		for j, tb := range b {
			if bUsed[j] || ta != tb {
				continue
			}
			aMatched[i] = true
			bUsed[j] = true
			credit += 1.0
			exact++
			break
		}
	}

	// abbreviated-initial matches against the leftovers
	for i, ta := range a {
		if aMatched[i] {
			continue
		}
		for j, tb := range b {
			if bUsed[j] {
				continue
			}
			if isInitialOf(ta, tb) || isInitialOf(tb, ta) {
				aMatched[i] = true
				bUsed[j] = true
				credit += initialCredit
				break
			}
		}
	}

	denom := float64(max(len(a), len(b)))
	score := credit / denom

	if exact == min(len(a), len(b)) && score < containmentFloor {
		return containmentFloor
	}
	return score
}

func isInitialOf(short, full string) bool {
	return len(short) == 1 && strings.HasPrefix(full, short)
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler scaling factor is typically 0.1
	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}
