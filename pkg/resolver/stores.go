package resolver

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Store interfaces are defined here on the consumer side so the pass can run
// against the Postgres repositories in production and in-memory fakes in
// tests. All mutating operations are atomic with respect to the
// (source_kind, source_id) uniqueness invariant.

// CanonicalStore persists canonical player identities
type CanonicalStore interface {
	Create(ctx context.Context, displayName, nameKey, teamKey string, positionClass models.PositionClass) (*models.CanonicalPlayer, error)
	List(ctx context.Context) ([]models.CanonicalPlayer, error)
	UpdateIdentity(ctx context.Context, canonicalID, displayName, nameKey, teamKey string, positionClass models.PositionClass) error
}

// LinkStore persists source links. LinkAuto returns models.LinkConflictError
// when the attempted link contradicts an existing manual or
// equal-or-higher-confidence link.
type LinkStore interface {
	FindLink(ctx context.Context, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error)
	LinkAuto(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string, confidence float64) (*models.SourceLink, error)
}

// CaseStore persists the ambiguous review queue
type CaseStore interface {
	Create(ctx context.Context, sourceKind models.SourceKind, sourceID string, candidates []models.Candidate) (*models.AmbiguousCase, error)
	CountOpen(ctx context.Context) (int, error)
}

// RawStore reads raw player snapshots
type RawStore interface {
	ListLatest(ctx context.Context) ([]models.RawPlayerRecord, error)
	ListByCanonical(ctx context.Context, canonicalID string) ([]models.RawPlayerRecord, error)
}

// MergeStore persists the materialized merged record per canonical player
type MergeStore interface {
	Get(ctx context.Context, canonicalID string) (*models.MergedRecord, error)
	Upsert(ctx context.Context, record *models.MergedRecord) (*models.MergedRecord, error)
}

// Stores bundles the persistence collaborators for the resolver
type Stores struct {
	Canonical CanonicalStore
	Links     LinkStore
	Cases     CaseStore
	Raw       RawStore
	Merged    MergeStore
}
