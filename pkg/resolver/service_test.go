package resolver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/testsupport"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fixture struct {
	canonical *testsupport.CanonicalStore
	links     *testsupport.LinkStore
	cases     *testsupport.CaseStore
	raw       *testsupport.RawStore
	merged    *testsupport.MergeStore
	svc       *Service
}

func newFixture() *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	canonical := testsupport.NewCanonicalStore()
	links := testsupport.NewLinkStore()
	cases := testsupport.NewCaseStore()
	raw := testsupport.NewRawStore(links)
	merged := testsupport.NewMergeStore()

	svc := NewService(
		Config{WorkerCount: 2},
		logger,
		matching.NewMatcher(matching.DefaultConfig()),
		merging.NewEngine(merging.DefaultPolicy()),
		Stores{
			Canonical: canonical,
			Links:     links,
			Cases:     cases,
			Raw:       raw,
			Merged:    merged,
		},
		nil,
		nil,
	)

	return &fixture{canonical: canonical, links: links, cases: cases, raw: raw, merged: merged, svc: svc}
}

func asOf(day int) time.Time {
	return time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
}

func primaryRecord(sourceID, name, team, position string, day int, fields string) models.RawPlayerRecord {
	return models.RawPlayerRecord{
		SourceKind:  models.SourceKindPrimary,
		SourceID:    sourceID,
		DisplayName: name,
		TeamRef:     team,
		PositionRef: position,
		AsOf:        asOf(day),
		Fields:      json.RawMessage(fields),
	}
}

func advancedRecord(sourceID, name, team, position string, day int, fields string) models.RawPlayerRecord {
	return models.RawPlayerRecord{
		SourceKind:  models.SourceKindAdvanced,
		SourceID:    sourceID,
		DisplayName: name,
		TeamRef:     team,
		PositionRef: position,
		AsOf:        asOf(day),
		Fields:      json.RawMessage(fields),
	}
}

func TestResolvePassCreatesCanonicalFromPrimary(t *testing.T) {
	f := newFixture()
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "LIV", "3", 1, `{"total_points": 211, "minutes": 2879}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewCanonical)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 0, report.Failed)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Mohamed Salah", players[0].DisplayName)
	assert.Equal(t, "mohamed salah", players[0].NameKey)
	assert.Equal(t, "LIV", players[0].TeamKey)
	assert.Equal(t, models.PositionMID, players[0].PositionClass)

	link, err := f.links.FindLink(context.Background(), models.SourceKindPrimary, "p101")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, players[0].CanonicalID, link.CanonicalID)
	assert.Equal(t, models.ProvenanceAutoMatched, link.Provenance)
	assert.Equal(t, 1.0, link.Confidence)
}

func TestResolvePassAutoMatchesAbbreviatedAdvancedName(t *testing.T) {
	f := newFixture()
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "LIV", "3", 1, `{"total_points": 211, "minutes": 2879}`))

	_, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	f.raw.Add(advancedRecord("a7", "M. Salah", "Liverpool", "MID", 2, `{"xg": 18.4, "xa": 9.1, "minutes": 2850}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.NewCanonical)
	assert.Equal(t, 1, report.AutoMatched)
	assert.Equal(t, 0, report.Ambiguous)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)

	merged, err := f.merged.Get(context.Background(), players[0].CanonicalID)
	require.NoError(t, err)
	require.NotNil(t, merged)

	fields, err := merged.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, float64(211), fields["total_points"])
	assert.Equal(t, 18.4, fields["xg"])
	// minutes is contested and the fantasy-points feed wins
	assert.Equal(t, float64(2879), fields["minutes"])

	provenance, err := merged.ProvenanceMap()
	require.NoError(t, err)
	assert.Equal(t, models.SourceKindPrimary, provenance["total_points"])
	assert.Equal(t, models.SourceKindAdvanced, provenance["xg"])
	assert.Equal(t, models.SourceKindPrimary, provenance["minutes"])
	assert.Equal(t, asOf(2), merged.MergedAt)
}

func TestResolvePassIdempotent(t *testing.T) {
	f := newFixture()
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "LIV", "3", 1, `{"total_points": 211, "minutes": 2879}`))
	f.raw.Add(advancedRecord("a7", "M. Salah", "Liverpool", "MID", 2, `{"xg": 18.4}`))

	_, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)
	first, err := f.merged.Get(context.Background(), players[0].CanonicalID)
	require.NoError(t, err)
	require.NotNil(t, first)

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.NewCanonical)
	assert.Equal(t, 0, report.AutoMatched)
	assert.Equal(t, 0, report.Merged)
	assert.Equal(t, 2, report.Unchanged)

	second, err := f.merged.Get(context.Background(), players[0].CanonicalID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, string(first.Fields), string(second.Fields))
}

func TestResolvePassAdvancedNeverSpawnsCanonical(t *testing.T) {
	f := newFixture()
	f.raw.Add(advancedRecord("a50", "Unknown Striker", "LIV", "FWD", 1, `{"xg": 2.0}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.NewCanonical)
	assert.Equal(t, 1, report.Unmatched)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, players)

	open, err := f.cases.List(context.Background(), models.AmbiguousCaseStatusOpen, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.SourceKindAdvanced, open[0].SourceKind)
	assert.Equal(t, "a50", open[0].SourceID)
}

func TestResolvePassAmbiguousOpensCase(t *testing.T) {
	f := newFixture()
	f.canonical.Seed(models.CanonicalPlayer{
		CanonicalID:   "00000000-0000-0000-0000-000000000002",
		DisplayName:   "Gabriel Jesus",
		NameKey:       "gabriel",
		TeamKey:       "ARS",
		PositionClass: models.PositionDEF,
	})
	f.canonical.Seed(models.CanonicalPlayer{
		CanonicalID:   "00000000-0000-0000-0000-000000000009",
		DisplayName:   "Gabriel Magalhaes",
		NameKey:       "gabriel",
		TeamKey:       "ARS",
		PositionClass: models.PositionDEF,
	})
	f.raw.Add(advancedRecord("a9", "Gabriel", "Arsenal", "DEF", 1, `{"xg": 1.1}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ambiguous)
	assert.Equal(t, 0, report.AutoMatched)

	open, err := f.cases.List(context.Background(), models.AmbiguousCaseStatusOpen, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	candidates, err := open[0].CandidateList()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	// equal scores order by canonical_id ascending
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", candidates[0].CanonicalID)
	assert.Equal(t, "00000000-0000-0000-0000-000000000009", candidates[1].CanonicalID)

	link, err := f.links.FindLink(context.Background(), models.SourceKindAdvanced, "a9")
	require.NoError(t, err)
	assert.Nil(t, link)

	// the review-queue gauge reflects the open case after the pass
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OpenCases))
}

func TestNewConfigUsesConfiguredWorkerCount(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, NewConfig(cfg).WorkerCount)
}

func TestResolvePassUnknownTeamSkipsRecord(t *testing.T) {
	f := newFixture()
	f.raw.Add(primaryRecord("p200", "Bruce Wayne", "Gotham City", "2", 1, `{"total_points": 12}`))
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "LIV", "3", 1, `{"total_points": 211}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.NewCanonical)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Mohamed Salah", players[0].DisplayName)
}

func TestResolvePassPrimaryIdentityUpdatePropagates(t *testing.T) {
	f := newFixture()
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "LIV", "3", 1, `{"total_points": 211}`))

	_, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	// transfer: same source id, new team
	f.raw.Add(primaryRecord("p101", "Mohamed Salah", "CHE", "3", 2, `{"total_points": 214}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.NewCanonical)
	assert.Equal(t, 1, report.Merged)

	players, err := f.canonical.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "CHE", players[0].TeamKey)
}

// conflictLinkStore simulates a link established between FindLink and
// LinkAuto, which is how a manual override surfaces as a conflict mid-pass.
type conflictLinkStore struct {
	existing models.SourceLink
}

func (s *conflictLinkStore) FindLink(ctx context.Context, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error) {
	return nil, nil
}

func (s *conflictLinkStore) LinkAuto(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string, confidence float64) (*models.SourceLink, error) {
	return nil, &models.LinkConflictError{
		SourceKind:  sourceKind,
		SourceID:    sourceID,
		AttemptedID: canonicalID,
		Existing:    &s.existing,
	}
}

func TestResolvePassLinkConflictRoutesToCase(t *testing.T) {
	f := newFixture()
	f.canonical.Seed(models.CanonicalPlayer{
		CanonicalID:   "00000000-0000-0000-0000-000000000007",
		DisplayName:   "Mohamed Salah",
		NameKey:       "mohamed salah",
		TeamKey:       "LIV",
		PositionClass: models.PositionMID,
	})

	existing := models.SourceLink{
		CanonicalID: "00000000-0000-0000-0000-000000000042",
		SourceKind:  models.SourceKindAdvanced,
		SourceID:    "a7",
		Confidence:  1.0,
		Provenance:  models.ProvenanceManualOverride,
	}
	f.svc.stores.Links = &conflictLinkStore{existing: existing}

	f.raw.Add(advancedRecord("a7", "M. Salah", "Liverpool", "MID", 1, `{"xg": 18.4}`))

	report, err := f.svc.ResolvePass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ambiguous)
	assert.Equal(t, 0, report.AutoMatched)
	assert.Equal(t, 0, report.Failed)

	open, err := f.cases.List(context.Background(), models.AmbiguousCaseStatusOpen, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	candidates, err := open[0].CandidateList()
	require.NoError(t, err)
	// both the attempted target and the current holder are listed
	ids := []string{candidates[0].CanonicalID}
	for _, c := range candidates[1:] {
		ids = append(ids, c.CanonicalID)
	}
	assert.Contains(t, ids, "00000000-0000-0000-0000-000000000007")
	assert.Contains(t, ids, "00000000-0000-0000-0000-000000000042")
}
