package mergedrecord

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository materializes the current merged record per canonical player.
// Only the latest merge is stored; raw history covers the audit trail.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merged record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const mergedColumns = "canonical_id, fields, field_provenance, merged_at, fingerprint, version"

// Get returns the current merged record, or nil when the player has not been
// merged yet
func (r *Repository) Get(ctx context.Context, canonicalID string) (*models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergedrecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(mergedColumns)
	sb.From("merged_records")
	sb.Where(sb.Equal("canonical_id", canonicalID))

	query, args := sb.Build()
	var record models.MergedRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // not merged yet
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merged record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merged record")
	}

	return &record, nil
}

// Upsert stores the latest merge. The version only advances when the field
// fingerprint actually changed, so idempotent re-merges leave the row
// untouched apart from merged_at.
func (r *Repository) Upsert(ctx context.Context, record *models.MergedRecord) (*models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergedrecord.Repository.Upsert")
	defer span.End()

	query := `
		INSERT INTO merged_records (canonical_id, fields, field_provenance, merged_at, fingerprint, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (canonical_id) DO UPDATE
		SET fields = EXCLUDED.fields,
			field_provenance = EXCLUDED.field_provenance,
			merged_at = EXCLUDED.merged_at,
			fingerprint = EXCLUDED.fingerprint,
			version = CASE
				WHEN merged_records.fingerprint = EXCLUDED.fingerprint THEN merged_records.version
				ELSE merged_records.version + 1
			END
		RETURNING ` + mergedColumns

	var stored models.MergedRecord
	err := r.db.GetContext(ctx, &stored, query, record.CanonicalID, record.Fields, record.FieldProvenance, record.MergedAt, record.Fingerprint)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_id": record.CanonicalID}).Error("Failed to upsert merged record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert merged record")
	}

	return &stored, nil
}

// ListByCanonicalIDs fetches merged records for a set of players
func (r *Repository) ListByCanonicalIDs(ctx context.Context, canonicalIDs []string) ([]models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergedrecord.Repository.ListByCanonicalIDs")
	defer span.End()

	if len(canonicalIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(canonicalIDs))
	for i, id := range canonicalIDs {
		args[i] = id
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(mergedColumns)
	sb.From("merged_records")
	sb.Where(sb.In("canonical_id", args...))
	sb.OrderBy("canonical_id ASC")

	query, queryArgs := sb.Build()
	var records []models.MergedRecord
	if err := r.db.SelectContext(ctx, &records, query, queryArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merged records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merged records")
	}

	return records, nil
}
