package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestTokenSetSimilarity(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		a        []string
		b        []string
		expected float64
	}{
		{
			name:     "identical",
			a:        []string{"mohamed", "salah"},
			b:        []string{"mohamed", "salah"},
			expected: 1.0,
		},
		{
			name:     "abbreviated first name",
			a:        []string{"m", "salah"},
			b:        []string{"mohamed", "salah"},
			expected: 0.95,
		},
		{
			name:     "shared surname only",
			a:        []string{"mohamed", "elneny"},
			b:        []string{"mohamed", "salah"},
			expected: 0.5,
		},
		{
			name:     "bare surname contained in full name",
			a:        []string{"salah"},
			b:        []string{"mohamed", "salah"},
			expected: 0.8,
		},
		{
			name:     "full name contains bare surname",
			a:        []string{"mohamed", "salah"},
			b:        []string{"salah"},
			expected: 0.8,
		},
		{
			name:     "containment needs every token matched",
			a:        []string{"gabriel"},
			b:        []string{"harry", "kane"},
			expected: 0.0,
		},
		{
			name:     "disjoint",
			a:        []string{"harry", "kane"},
			b:        []string{"mohamed", "salah"},
			expected: 0.0,
		},
		{
			name:     "empty side",
			a:        nil,
			b:        []string{"salah"},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.TokenSetSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestJaroWinkler(t *testing.T) {
	scorer := NewScorer()

	assert.Equal(t, 1.0, scorer.JaroWinkler("salah", "salah"))
	assert.Equal(t, 0.0, scorer.JaroWinkler("", "salah"))
	assert.Greater(t, scorer.JaroWinkler("salah", "salan"), scorer.JaroWinkler("salah", "kane"))
}

func TestMatchAutoAbbreviatedName(t *testing.T) {
	// The stats feed reports "M. Salah" at "Liverpool"; the points feed
	// anchored the canonical player as "Mohamed Salah" at LIV.
	matcher := NewMatcher(DefaultConfig())

	id, err := identity.Normalize("M. Salah", "Liverpool", "MID")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c1", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
		{CanonicalID: "c2", NameTokens: []string{"harry", "kane"}, TeamKey: "TOT", PositionClass: models.PositionFWD},
	}

	result := matcher.Match(id, known)
	assert.Equal(t, models.MatchStatusAuto, result.Status)
	assert.Equal(t, "c1", result.Best)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "c1", result.Candidates[0].CanonicalID)
	assert.GreaterOrEqual(t, result.Candidates[0].Score, 0.85)
}

func TestMatchSurnameOnlyStaysConsidered(t *testing.T) {
	// The stats feed sometimes reports a surname alone. That is never
	// confident enough for an automatic link, but it must reach the review
	// queue as a listed candidate rather than vanish as NONE.
	matcher := NewMatcher(DefaultConfig())

	id, err := identity.Normalize("Salah", "Liverpool", "MID")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c1", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
	}

	result := matcher.Match(id, known)
	assert.Equal(t, models.MatchStatusAmbiguous, result.Status)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "c1", result.Candidates[0].CanonicalID)
	assert.GreaterOrEqual(t, result.Candidates[0].Score, 0.60)
}

func TestMatchAmbiguousWithinMargin(t *testing.T) {
	// Two candidates above the auto threshold separated by less than the
	// margin must come back ambiguous, both listed, score-descending.
	matcher := NewMatcher(Config{AutoThreshold: 0.85, ConsiderThreshold: 0.60, Margin: 0.05})

	id, err := identity.Normalize("Mohamed Salah", "LIV", "MID")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c9", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
		{CanonicalID: "c2", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
	}

	result := matcher.Match(id, known)
	assert.Equal(t, models.MatchStatusAmbiguous, result.Status)
	assert.Empty(t, result.Best)
	require.Len(t, result.Candidates, 2)
	// tie broken by canonical_id ascending
	assert.Equal(t, "c2", result.Candidates[0].CanonicalID)
	assert.Equal(t, "c9", result.Candidates[1].CanonicalID)
}

func TestMatchNone(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	id, err := identity.Normalize("Bukayo Saka", "ARS", "MID")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c1", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
	}

	result := matcher.Match(id, known)
	assert.Equal(t, models.MatchStatusNone, result.Status)
	assert.Empty(t, result.Candidates)
}

func TestMatchPositionDisagreementBlocksAuto(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	id, err := identity.Normalize("Mohamed Salah", "LIV", "FWD")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c1", NameTokens: []string{"mohamed", "salah"}, TeamKey: "LIV", PositionClass: models.PositionMID},
	}

	result := matcher.Match(id, known)
	assert.Equal(t, models.MatchStatusAmbiguous, result.Status)
}

func TestNewConfigBindsThresholds(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	c := NewConfig(cfg)
	assert.Equal(t, 0.85, c.AutoThreshold)
	assert.Equal(t, 0.60, c.ConsiderThreshold)
	assert.Equal(t, 0.05, c.Margin)
}

func TestMatchDeterministic(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	id, err := identity.Normalize("Son Heung-min", "Spurs", "MID")
	require.NoError(t, err)

	known := []CandidateIdentity{
		{CanonicalID: "c3", NameTokens: []string{"son", "heung", "min"}, TeamKey: "TOT", PositionClass: models.PositionMID},
		{CanonicalID: "c4", NameTokens: []string{"min", "jae", "kim"}, TeamKey: "TOT", PositionClass: models.PositionDEF},
	}

	first := matcher.Match(id, known)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, matcher.Match(id, known))
	}
}
