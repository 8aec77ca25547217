// Package matching proposes canonical player candidates for unresolved
// source records using deterministic similarity scoring.
package matching

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
)

// component weights for the combined score
const (
	tokenWeight     = 0.70
	nameWeight      = 0.15
	teamWeight      = 0.15
	positionPenalty = 0.20
)

// Config holds the decision thresholds
type Config struct {
	// AutoThreshold is the minimum top score for an automatic link
	AutoThreshold float64
	// ConsiderThreshold is the minimum score for a candidate to be listed
	ConsiderThreshold float64
	// Margin is the minimum lead over the runner-up for an automatic link
	Margin float64
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		AutoThreshold:     0.85,
		ConsiderThreshold: 0.60,
		Margin:            0.05,
	}
}

// NewConfig builds thresholds from the application config
func NewConfig(cfg *config.Config) Config {
	return Config{
		AutoThreshold:     cfg.MatchAutoThreshold,
		ConsiderThreshold: cfg.MatchConsiderThreshold,
		Margin:            cfg.MatchMargin,
	}
}

// CandidateIdentity is one canonical player in the per-pass snapshot
type CandidateIdentity struct {
	CanonicalID   string
	NameTokens    []string
	TeamKey       string
	PositionClass models.PositionClass
}

// Matcher scores an unresolved identity against a snapshot of known
// canonical players
type Matcher struct {
	scorer *Scorer
	cfg    Config
}

// NewMatcher creates a matcher with the given thresholds
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{
		scorer: NewScorer(),
		cfg:    cfg,
	}
}

// Score computes the combined similarity between an identity and one
// candidate. Token-set overlap is the primary signal; Jaro-Winkler over the
// joined names separates candidates whose token sets tie; an exact team match
// is a bonus and a position disagreement a penalty.
func (m *Matcher) Score(id identity.NormalizedIdentity, candidate CandidateIdentity) float64 {
	tokenScore := m.scorer.TokenSetSimilarity(id.NameTokens, candidate.NameTokens)
	nameScore := m.scorer.JaroWinkler(strings.Join(id.NameTokens, " "), strings.Join(candidate.NameTokens, " "))

	score := tokenWeight*tokenScore + nameWeight*nameScore

	if id.TeamKey != "" && id.TeamKey == candidate.TeamKey {
		score += teamWeight
	}

	if id.PositionClass != string(models.PositionUnknown) &&
		candidate.PositionClass != models.PositionUnknown &&
		id.PositionClass != string(candidate.PositionClass) {
		score -= positionPenalty
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Match scores the identity against every known canonical player and applies
// the decision rule. Identical inputs always yield identical output and
// candidate ordering.
func (m *Matcher) Match(id identity.NormalizedIdentity, known []CandidateIdentity) models.MatchResult {
	candidates := make([]models.Candidate, 0, len(known))
	for _, c := range known {
		score := m.Score(id, c)
		if score >= m.cfg.ConsiderThreshold {
			candidates = append(candidates, models.Candidate{CanonicalID: c.CanonicalID, Score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CanonicalID < candidates[j].CanonicalID
	})

	if len(candidates) == 0 {
		return models.MatchResult{Status: models.MatchStatusNone}
	}

	top := candidates[0]
	lead := top.Score
	if len(candidates) > 1 {
		lead = top.Score - candidates[1].Score
	}

	if top.Score >= m.cfg.AutoThreshold && lead >= m.cfg.Margin {
		return models.MatchResult{
			Status:     models.MatchStatusAuto,
			Best:       top.CanonicalID,
			Candidates: candidates,
		}
	}

	return models.MatchResult{
		Status:     models.MatchStatusAmbiguous,
		Candidates: candidates,
	}
}
