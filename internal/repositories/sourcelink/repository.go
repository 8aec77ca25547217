package sourcelink

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository handles source link persistence. The uniqueness invariant on
// (source_kind, source_id) and the manual-precedence rule live in the write
// path here, not in the callers: linkAuto is a single guarded upsert, so two
// concurrent passes can never both claim the same source record.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new source link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const linkColumns = "canonical_id, source_kind, source_id, confidence, provenance, established_at, updated_at"

// FindLink returns the active link for a pair, or nil when none exists
func (r *Repository) FindLink(ctx context.Context, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.FindLink")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(linkColumns)
	sb.From("source_links")
	sb.Where(
		sb.Equal("source_kind", sourceKind),
		sb.Equal("source_id", sourceID),
	)

	query, args := sb.Build()
	var link models.SourceLink
	if err := r.db.GetContext(ctx, &link, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // no existing link
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find source link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find source link")
	}

	return &link, nil
}

// LinkAuto links a pair to a canonical player from an automatic match. An
// existing AUTO_MATCHED link with lower confidence is superseded in place;
// anything else (a manual link, or an equal-or-higher-confidence automatic
// one pointing elsewhere) returns LinkConflictError. The whole decision is
// one atomic statement.
func (r *Repository) LinkAuto(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string, confidence float64) (*models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.LinkAuto")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO source_links (canonical_id, source_kind, source_id, confidence, provenance, established_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (source_kind, source_id) DO UPDATE
		SET canonical_id = EXCLUDED.canonical_id,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
		WHERE source_links.provenance = $5
		AND source_links.confidence < EXCLUDED.confidence
		RETURNING ` + linkColumns

	var link models.SourceLink
	err := r.db.GetContext(ctx, &link, query, canonicalID, sourceKind, sourceID, confidence, models.ProvenanceAutoMatched, now)
	if err == nil {
		return &link, nil
	}

	if err.Error() != "sql: no rows in result set" {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_kind": sourceKind,
			"source_id":   sourceID,
		}).Error("Failed to create auto link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create source link")
	}

	// Guarded update matched no row: an existing link won. Distinguish
	// "already linked to the same player" from a real conflict.
	existing, findErr := r.FindLink(ctx, sourceKind, sourceID)
	if findErr != nil {
		return nil, findErr
	}
	if existing == nil {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"source_kind": sourceKind,
			"source_id":   sourceID,
		}).Error("Auto link upsert returned no row and no existing link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create source link")
	}
	if existing.CanonicalID == canonicalID {
		return existing, nil
	}

	return nil, &models.LinkConflictError{
		SourceKind:  sourceKind,
		SourceID:    sourceID,
		AttemptedID: canonicalID,
		Existing:    existing,
	}
}

// LinkManual links a pair by operator decision. It always wins, replacing
// any automatic link, and can only be replaced by another manual action.
func (r *Repository) LinkManual(ctx context.Context, canonicalID string, sourceKind models.SourceKind, sourceID string) (*models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.LinkManual")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO source_links (canonical_id, source_kind, source_id, confidence, provenance, established_at, updated_at)
		VALUES ($1, $2, $3, 1.0, $4, $5, $5)
		ON CONFLICT (source_kind, source_id) DO UPDATE
		SET canonical_id = EXCLUDED.canonical_id,
			confidence = EXCLUDED.confidence,
			provenance = EXCLUDED.provenance,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + linkColumns

	var link models.SourceLink
	if err := r.db.GetContext(ctx, &link, query, canonicalID, sourceKind, sourceID, models.ProvenanceManualOverride, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_kind":  sourceKind,
			"source_id":    sourceID,
			"canonical_id": canonicalID,
		}).Error("Failed to create manual link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create source link")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source_kind":  sourceKind,
		"source_id":    sourceID,
		"canonical_id": canonicalID,
	}).Info("Manual link established")

	return &link, nil
}

// ListByCanonical returns all links attached to a canonical player
func (r *Repository) ListByCanonical(ctx context.Context, canonicalID string) ([]models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.ListByCanonical")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(linkColumns)
	sb.From("source_links")
	sb.Where(sb.Equal("canonical_id", canonicalID))
	sb.OrderBy("source_kind ASC", "source_id ASC")

	query, args := sb.Build()
	var links []models.SourceLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list source links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source links")
	}

	return links, nil
}
