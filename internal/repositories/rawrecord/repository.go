package rawrecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository handles raw player record persistence. Raw records are
// append-only: a new observation inserts a new row, never mutates an old one.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new raw record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const rawColumns = "id, source_kind, source_id, display_name, team_ref, position_ref, as_of, fields, fingerprint, created_at"

// CreateBatch appends raw snapshots. A snapshot identical to one already
// stored (same pair, same field fingerprint) is skipped, so re-ingesting an
// upstream batch is a no-op.
func (r *Repository) CreateBatch(ctx context.Context, records []*models.RawPlayerRecord) error {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.CreateBatch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("raw_player_records")
	sb.Cols("id", "source_kind", "source_id", "display_name", "team_ref", "position_ref", "as_of", "fields", "fingerprint", "created_at")

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.Fingerprint == "" {
			fp, err := fingerprint.GenerateFromJSON(rec.Fields)
			if err != nil {
				return httperror.NewHTTPError(http.StatusBadRequest, "invalid fields payload")
			}
			rec.Fingerprint = fp
		}
		rec.CreatedAt = now
		sb.Values(rec.ID, rec.SourceKind, rec.SourceID, rec.DisplayName, rec.TeamRef, rec.PositionRef, rec.AsOf, rec.Fields, rec.Fingerprint, rec.CreatedAt)
	}

	query, args := sb.Build()
	// Skip snapshots already stored
	query += " ON CONFLICT (source_kind, source_id, fingerprint) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create raw record batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create raw records")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(records)}).Debug("Created raw record batch")
	return nil
}

// ListLatest returns the newest snapshot per (source_kind, source_id). This
// is the working set for a resolution pass.
func (r *Repository) ListLatest(ctx context.Context) ([]models.RawPlayerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.ListLatest")
	defer span.End()

	query := `
		SELECT DISTINCT ON (source_kind, source_id) ` + rawColumns + `
		FROM raw_player_records
		ORDER BY source_kind, source_id, as_of DESC, fingerprint DESC
	`

	var records []models.RawPlayerRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list latest raw records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list raw records")
	}

	return records, nil
}

// ListByCanonical returns all raw snapshots for the pairs linked to a
// canonical player, oldest first. The merge engine reads these.
func (r *Repository) ListByCanonical(ctx context.Context, canonicalID string) ([]models.RawPlayerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.ListByCanonical")
	defer span.End()

	query := `
		SELECT r.id, r.source_kind, r.source_id, r.display_name, r.team_ref, r.position_ref, r.as_of, r.fields, r.fingerprint, r.created_at
		FROM raw_player_records r
		JOIN source_links l ON l.source_kind = r.source_kind AND l.source_id = r.source_id
		WHERE l.canonical_id = $1
		ORDER BY r.as_of ASC, r.fingerprint ASC
	`

	var records []models.RawPlayerRecord
	if err := r.db.SelectContext(ctx, &records, query, canonicalID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list raw records by canonical id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list raw records")
	}

	return records, nil
}
