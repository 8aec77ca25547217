// Package testsupport provides in-memory store implementations that mirror
// the invariant semantics of the Postgres repositories, for tests that
// exercise resolution flows without a database.
package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
)

// CanonicalStore is an in-memory canonical player store
type CanonicalStore struct {
	mu      sync.Mutex
	players map[string]models.CanonicalPlayer
}

func NewCanonicalStore() *CanonicalStore {
	return &CanonicalStore{players: map[string]models.CanonicalPlayer{}}
}

func (s *CanonicalStore) Create(ctx context.Context, displayName, nameKey, teamKey string, positionClass models.PositionClass) (*models.CanonicalPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	player := models.CanonicalPlayer{
		CanonicalID:   uuid.New().String(),
		DisplayName:   displayName,
		NameKey:       nameKey,
		TeamKey:       teamKey,
		PositionClass: positionClass,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.players[player.CanonicalID] = player
	return &player, nil
}

// Seed inserts a player with a fixed canonical ID
func (s *CanonicalStore) Seed(player models.CanonicalPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.CanonicalID] = player
}

func (s *CanonicalStore) Get(ctx context.Context, canonicalID string) (*models.CanonicalPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[canonicalID]
	if !ok {
		return nil, fmt.Errorf("canonical player %s not found", canonicalID)
	}
	return &player, nil
}

func (s *CanonicalStore) List(ctx context.Context) ([]models.CanonicalPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CanonicalPlayer, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID < out[j].CanonicalID })
	return out, nil
}

func (s *CanonicalStore) UpdateIdentity(ctx context.Context, canonicalID, displayName, nameKey, teamKey string, positionClass models.PositionClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[canonicalID]
	if !ok {
		return fmt.Errorf("canonical player %s not found", canonicalID)
	}
	player.DisplayName = displayName
	player.NameKey = nameKey
	player.TeamKey = teamKey
	player.PositionClass = positionClass
	player.UpdatedAt = time.Now().UTC()
	s.players[canonicalID] = player
	return nil
}

// LinkStore is an in-memory source link store keyed by (source_kind,
// source_id). It reproduces the guarded upsert semantics of the Postgres
// repository: manual links and auto links of equal or higher confidence to a
// different player are never replaced automatically.
type LinkStore struct {
	mu    sync.Mutex
	links map[string]models.SourceLink
}

func NewLinkStore() *LinkStore {
	return &LinkStore{links: map[string]models.SourceLink{}}
}

func linkKey(sourceKind models.SourceKind, sourceID string) string {
	return string(sourceKind) + "/" + sourceID
}

func (s *LinkStore) FindLink(ctx context.Context, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[linkKey(sourceKind, sourceID)]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (s *LinkStore) LinkAuto(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string, confidence float64) (*models.SourceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(sourceKind, sourceID)
	now := time.Now().UTC()

	existing, ok := s.links[key]
	if !ok {
		link := models.SourceLink{
			CanonicalID:   canonicalID,
			SourceKind:    sourceKind,
			SourceID:      sourceID,
			Confidence:    confidence,
			Provenance:    models.ProvenanceAutoMatched,
			EstablishedAt: now,
			UpdatedAt:     now,
		}
		s.links[key] = link
		return &link, nil
	}

	if existing.Provenance == models.ProvenanceAutoMatched && existing.Confidence < confidence {
		existing.CanonicalID = canonicalID
		existing.Confidence = confidence
		existing.UpdatedAt = now
		s.links[key] = existing
		return &existing, nil
	}

	if existing.CanonicalID == canonicalID {
		return &existing, nil
	}
	return nil, &models.LinkConflictError{
		SourceKind:  sourceKind,
		SourceID:    sourceID,
		AttemptedID: canonicalID,
		Existing:    &existing,
	}
}

func (s *LinkStore) LinkManual(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(sourceKind, sourceID)
	now := time.Now().UTC()

	link, ok := s.links[key]
	if !ok {
		link = models.SourceLink{
			SourceKind:    sourceKind,
			SourceID:      sourceID,
			EstablishedAt: now,
		}
	}
	link.CanonicalID = canonicalID
	link.Confidence = 1.0
	link.Provenance = models.ProvenanceManualOverride
	link.UpdatedAt = now
	s.links[key] = link
	return &link, nil
}

func (s *LinkStore) ListByCanonical(ctx context.Context, canonicalID string) ([]models.SourceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.SourceLink
	for _, link := range s.links {
		if link.CanonicalID == canonicalID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceKind != out[j].SourceKind {
			return out[i].SourceKind < out[j].SourceKind
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

// CaseStore is an in-memory ambiguous case store. At most one OPEN case
// exists per (source_kind, source_id); repeat creates refresh its candidates.
type CaseStore struct {
	mu    sync.Mutex
	cases map[string]models.AmbiguousCase
}

func NewCaseStore() *CaseStore {
	return &CaseStore{cases: map[string]models.AmbiguousCase{}}
}

func (s *CaseStore) Create(ctx context.Context, sourceKind models.SourceKind, sourceID string, candidates []models.Candidate) (*models.AmbiguousCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(candidates)
	if err != nil {
		return nil, err
	}

	for id, c := range s.cases {
		if c.SourceKind == sourceKind && c.SourceID == sourceID && c.Status == models.AmbiguousCaseStatusOpen {
			c.Candidates = payload
			s.cases[id] = c
			return &c, nil
		}
	}

	c := models.AmbiguousCase{
		ID:         uuid.New().String(),
		SourceKind: sourceKind,
		SourceID:   sourceID,
		Candidates: payload,
		Status:     models.AmbiguousCaseStatusOpen,
		CreatedAt:  time.Now().UTC(),
	}
	s.cases[c.ID] = c
	return &c, nil
}

func (s *CaseStore) Get(ctx context.Context, id string) (*models.AmbiguousCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, fmt.Errorf("ambiguous case %s not found", id)
	}
	return &c, nil
}

func (s *CaseStore) List(ctx context.Context, status models.AmbiguousCaseStatus, limit int) ([]models.AmbiguousCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AmbiguousCase
	for _, c := range s.cases {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CaseStore) CountOpen(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.cases {
		if c.Status == models.AmbiguousCaseStatusOpen {
			count++
		}
	}
	return count, nil
}

func (s *CaseStore) Resolve(ctx context.Context, id string, chosenCanonicalID string, resolvedBy string) error {
	return s.close(id, models.AmbiguousCaseStatusResolvedManually, &chosenCanonicalID, resolvedBy)
}

func (s *CaseStore) Dismiss(ctx context.Context, id string, resolvedBy string) error {
	return s.close(id, models.AmbiguousCaseStatusDismissed, nil, resolvedBy)
}

func (s *CaseStore) close(id string, status models.AmbiguousCaseStatus, chosenCanonicalID *string, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[id]
	if !ok || c.Status != models.AmbiguousCaseStatusOpen {
		return fmt.Errorf("open ambiguous case %s not found", id)
	}
	now := time.Now().UTC()
	c.Status = status
	c.ResolvedAt = &now
	c.ResolvedBy = &resolvedBy
	c.ChosenCanonicalID = chosenCanonicalID
	s.cases[id] = c
	return nil
}

// RawStore is an in-memory raw record store. ListByCanonical resolves
// attachment through the provided LinkStore the way the Postgres repository
// joins source_links.
type RawStore struct {
	mu      sync.Mutex
	records []models.RawPlayerRecord
	links   *LinkStore
}

func NewRawStore(links *LinkStore) *RawStore {
	return &RawStore{links: links}
}

// Add appends raw snapshots, filling fingerprints the way the ingest path
// does. Snapshots identical to one already stored are dropped.
func (s *RawStore) Add(records ...models.RawPlayerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec.Fingerprint == "" {
			fp, err := fingerprint.GenerateFromJSON(rec.Fields)
			if err != nil {
				panic(err)
			}
			rec.Fingerprint = fp
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		duplicate := false
		for _, have := range s.records {
			if have.SourceKind == rec.SourceKind && have.SourceID == rec.SourceID && have.Fingerprint == rec.Fingerprint {
				duplicate = true
				break
			}
		}
		if !duplicate {
			s.records = append(s.records, rec)
		}
	}
}

func (s *RawStore) ListLatest(ctx context.Context) ([]models.RawPlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := map[string]models.RawPlayerRecord{}
	for _, rec := range s.records {
		key := linkKey(rec.SourceKind, rec.SourceID)
		have, ok := latest[key]
		if !ok || rec.AsOf.After(have.AsOf) || (rec.AsOf.Equal(have.AsOf) && rec.Fingerprint > have.Fingerprint) {
			latest[key] = rec
		}
	}

	out := make([]models.RawPlayerRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceKind != out[j].SourceKind {
			return out[i].SourceKind < out[j].SourceKind
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func (s *RawStore) ListByCanonical(ctx context.Context, canonicalID string) ([]models.RawPlayerRecord, error) {
	links, err := s.links.ListByCanonical(ctx, canonicalID)
	if err != nil {
		return nil, err
	}

	linked := map[string]bool{}
	for _, link := range links {
		linked[linkKey(link.SourceKind, link.SourceID)] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RawPlayerRecord
	for _, rec := range s.records {
		if linked[linkKey(rec.SourceKind, rec.SourceID)] {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOf.Before(out[j].AsOf) })
	return out, nil
}

// MergeStore is an in-memory merged record store. Versions bump only when
// the stored fingerprint changes.
type MergeStore struct {
	mu      sync.Mutex
	records map[string]models.MergedRecord
}

func NewMergeStore() *MergeStore {
	return &MergeStore{records: map[string]models.MergedRecord{}}
}

func (s *MergeStore) Get(ctx context.Context, canonicalID string) (*models.MergedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[canonicalID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MergeStore) Upsert(ctx context.Context, record *models.MergedRecord) (*models.MergedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	existing, ok := s.records[record.CanonicalID]
	switch {
	case !ok:
		stored.Version = 1
	case existing.Fingerprint == record.Fingerprint:
		stored.Version = existing.Version
	default:
		stored.Version = existing.Version + 1
	}
	s.records[record.CanonicalID] = stored
	return &stored, nil
}
