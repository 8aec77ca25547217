package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testsupport"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

type harness struct {
	canonical *testsupport.CanonicalStore
	links     *testsupport.LinkStore
	cases     *testsupport.CaseStore
	raw       *testsupport.RawStore
	merged    *testsupport.MergeStore
	svc       *resolver.Service
}

func newHarness() *harness {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	canonical := testsupport.NewCanonicalStore()
	links := testsupport.NewLinkStore()
	cases := testsupport.NewCaseStore()
	raw := testsupport.NewRawStore(links)
	merged := testsupport.NewMergeStore()

	svc := resolver.NewService(
		resolver.Config{WorkerCount: 4},
		logger,
		matching.NewMatcher(matching.DefaultConfig()),
		merging.NewEngine(merging.DefaultPolicy()),
		resolver.Stores{
			Canonical: canonical,
			Links:     links,
			Cases:     cases,
			Raw:       raw,
			Merged:    merged,
		},
		nil,
		nil,
	)

	return &harness{canonical: canonical, links: links, cases: cases, raw: raw, merged: merged, svc: svc}
}

func snapshot(kind models.SourceKind, sourceID, name, team, position string, asOf time.Time, fields string) models.RawPlayerRecord {
	return models.RawPlayerRecord{
		SourceKind:  kind,
		SourceID:    sourceID,
		DisplayName: name,
		TeamRef:     team,
		PositionRef: position,
		AsOf:        asOf,
		Fields:      json.RawMessage(fields),
	}
}

// Full season-start flow: the fantasy-points feed seeds identities, the
// expected-stats feed attaches by fuzzy name, and the golden records carry
// fields from both with provenance.
func TestFullSeasonIngestFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	day1 := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 16, 10, 0, 0, 0, time.UTC)

	h.raw.Add(
		snapshot(models.SourceKindPrimary, "p101", "Mohamed Salah", "LIV", "3", day1, `{"total_points": 211, "goals_scored": 18, "minutes": 2879, "now_cost": 131}`),
		snapshot(models.SourceKindPrimary, "p220", "Erling Haaland", "MCI", "4", day1, `{"total_points": 224, "goals_scored": 27, "minutes": 2760, "now_cost": 151}`),
		snapshot(models.SourceKindPrimary, "p305", "Martin Odegaard", "ARS", "3", day1, `{"total_points": 160, "goals_scored": 8, "minutes": 2910}`),
	)
	h.raw.Add(
		snapshot(models.SourceKindAdvanced, "a7", "M. Salah", "Liverpool", "MID", day2, `{"xg": 18.4, "xa": 9.1, "shots": 120, "minutes": 2850}`),
		snapshot(models.SourceKindAdvanced, "a9", "E. Haaland", "Man City", "FWD", day2, `{"xg": 26.2, "npxg": 22.8, "shots": 140}`),
		snapshot(models.SourceKindAdvanced, "a11", "Martin Ødegaard", "Arsenal", "MID", day2, `{"xg": 6.3, "xa": 8.8, "key_passes": 90}`),
	)

	report, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.NewCanonical)
	assert.Equal(t, 3, report.AutoMatched)
	assert.Equal(t, 0, report.Ambiguous)
	assert.Equal(t, 0, report.Failed)

	players, err := h.canonical.List(ctx)
	require.NoError(t, err)
	require.Len(t, players, 3)

	for _, p := range players {
		merged, err := h.merged.Get(ctx, p.CanonicalID)
		require.NoError(t, err)
		require.NotNil(t, merged, "player %s has no merged record", p.DisplayName)

		fields, err := merged.FieldMap()
		require.NoError(t, err)
		assert.Contains(t, fields, "total_points")
		assert.Contains(t, fields, "xg")

		links, err := h.links.ListByCanonical(ctx, p.CanonicalID)
		require.NoError(t, err)
		assert.Len(t, links, 2)
	}

	// diacritics fold to the same name key
	var odegaard *models.CanonicalPlayer
	for i := range players {
		if players[i].TeamKey == "ARS" {
			odegaard = &players[i]
		}
	}
	require.NotNil(t, odegaard)
	assert.Equal(t, "martin odegaard", odegaard.NameKey)

	// contested minutes field: fantasy-points feed wins
	salahLink, err := h.links.FindLink(ctx, models.SourceKindPrimary, "p101")
	require.NoError(t, err)
	require.NotNil(t, salahLink)
	salahMerged, err := h.merged.Get(ctx, salahLink.CanonicalID)
	require.NoError(t, err)
	fields, err := salahMerged.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, float64(2879), fields["minutes"])
}

// An ambiguous advanced record stays unlinked until an operator resolves the
// case; the following pass picks up the manual link and merges.
func TestCaseResolutionFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	day1 := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 16, 10, 0, 0, 0, time.UTC)

	h.raw.Add(
		snapshot(models.SourceKindPrimary, "p40", "Gabriel Magalhaes", "ARS", "2", day1, `{"total_points": 145, "clean_sheets": 13, "minutes": 3040}`),
		snapshot(models.SourceKindPrimary, "p41", "Gabriel Martinelli", "ARS", "3", day1, `{"total_points": 130, "goals_scored": 9, "minutes": 2600}`),
	)

	_, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)

	// a single shared token is not confident enough for an automatic link
	h.raw.Add(snapshot(models.SourceKindAdvanced, "a40", "Gabriel", "Arsenal", "DEF", day2, `{"xg": 2.1, "shots": 30}`))

	report, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ambiguous)

	open, err := h.cases.List(ctx, models.AmbiguousCaseStatusOpen, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	defenderLink, err := h.links.FindLink(ctx, models.SourceKindPrimary, "p40")
	require.NoError(t, err)
	require.NotNil(t, defenderLink)

	// both Arsenal Gabriels are listed; the same-position defender ranks first
	candidates, err := open[0].CandidateList()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, defenderLink.CanonicalID, candidates[0].CanonicalID)

	// operator picks the defender

	_, err = h.links.LinkManual(ctx, defenderLink.CanonicalID, models.SourceKindAdvanced, "a40")
	require.NoError(t, err)
	require.NoError(t, h.cases.Resolve(ctx, open[0].ID, defenderLink.CanonicalID, "ops@example.com"))

	report, err = h.svc.ResolvePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Ambiguous)

	merged, err := h.merged.Get(ctx, defenderLink.CanonicalID)
	require.NoError(t, err)
	require.NotNil(t, merged)
	fields, err := merged.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, 2.1, fields["xg"])
	assert.Equal(t, float64(145), fields["total_points"])

	// the manual link survives further automatic passes
	link, err := h.links.FindLink(ctx, models.SourceKindAdvanced, "a40")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, models.ProvenanceManualOverride, link.Provenance)
	assert.Equal(t, defenderLink.CanonicalID, link.CanonicalID)
}

// A manual override can never be displaced by an automatic decision, no
// matter how confident the matcher is.
func TestManualLinkPrecedence(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	defender, err := h.canonical.Create(ctx, "Gabriel Magalhaes", "gabriel magalhaes", "ARS", models.PositionDEF)
	require.NoError(t, err)
	winger, err := h.canonical.Create(ctx, "Gabriel Martinelli", "gabriel martinelli", "ARS", models.PositionMID)
	require.NoError(t, err)

	manual, err := h.links.LinkManual(ctx, defender.CanonicalID, models.SourceKindAdvanced, "a40")
	require.NoError(t, err)
	require.Equal(t, models.ProvenanceManualOverride, manual.Provenance)

	_, err = h.links.LinkAuto(ctx, winger.CanonicalID, models.SourceKindAdvanced, "a40", 0.99)
	require.Error(t, err)

	var conflict *models.LinkConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, winger.CanonicalID, conflict.AttemptedID)
	require.NotNil(t, conflict.Existing)
	assert.Equal(t, defender.CanonicalID, conflict.Existing.CanonicalID)

	// the manual link is untouched
	link, err := h.links.FindLink(ctx, models.SourceKindAdvanced, "a40")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, defender.CanonicalID, link.CanonicalID)
	assert.Equal(t, models.ProvenanceManualOverride, link.Provenance)
	assert.Equal(t, 1.0, link.Confidence)

	// a repeat automatic decision for the same player is a no-op, not an error
	same, err := h.links.LinkAuto(ctx, defender.CanonicalID, models.SourceKindAdvanced, "a40", 0.99)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceManualOverride, same.Provenance)
	assert.Equal(t, 1.0, same.Confidence)
}

// Re-running a pass over unchanged snapshots rewrites nothing: versions,
// fingerprints, and bytes stay identical.
func TestRepeatPassIsStable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	day1 := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	h.raw.Add(
		snapshot(models.SourceKindPrimary, "p101", "Mohamed Salah", "LIV", "3", day1, `{"total_points": 211, "minutes": 2879}`),
		snapshot(models.SourceKindAdvanced, "a7", "M. Salah", "Liverpool", "MID", day1, `{"xg": 18.4, "minutes": 2850}`),
	)

	_, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)

	players, err := h.canonical.List(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	id := players[0].CanonicalID

	before, err := h.merged.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, before)

	for i := 0; i < 3; i++ {
		report, err := h.svc.ResolvePass(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Merged)
		assert.Equal(t, 2, report.Unchanged)
	}

	after, err := h.merged.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Fingerprint, after.Fingerprint)
	assert.Equal(t, string(before.Fields), string(after.Fields))
	assert.True(t, before.MergedAt.Equal(after.MergedAt))
}

// A newer snapshot for a linked source record updates the golden record and
// bumps the version exactly once.
func TestNewSnapshotBumpsVersion(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	day1 := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	day8 := time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)

	h.raw.Add(snapshot(models.SourceKindPrimary, "p101", "Mohamed Salah", "LIV", "3", day1, `{"total_points": 211}`))

	_, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)

	players, err := h.canonical.List(ctx)
	require.NoError(t, err)
	id := players[0].CanonicalID

	first, err := h.merged.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	h.raw.Add(snapshot(models.SourceKindPrimary, "p101", "Mohamed Salah", "LIV", "3", day8, `{"total_points": 219}`))

	report, err := h.svc.ResolvePass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	second, err := h.merged.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	fields, err := second.FieldMap()
	require.NoError(t, err)
	assert.Equal(t, float64(219), fields["total_points"])
	assert.True(t, second.MergedAt.Equal(day8))
}
