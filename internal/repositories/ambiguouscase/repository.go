package ambiguouscase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository handles the ambiguous match review queue
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ambiguous case repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const caseColumns = "id, source_kind, source_id, candidates, status, created_at, resolved_at, resolved_by, chosen_canonical_id"

// Create opens a case for an unresolvable match. One OPEN case exists per
// pair: if the pair already has one, its candidate list is refreshed instead
// of stacking duplicates for the reviewer.
func (r *Repository) Create(ctx context.Context, sourceKind models.SourceKind, sourceID string, candidates []models.Candidate) (*models.AmbiguousCase, error) {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.Create")
	defer span.End()

	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid candidate list")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO ambiguous_cases (id, source_kind, source_id, candidates, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_kind, source_id) WHERE status = 'OPEN' DO UPDATE
		SET candidates = EXCLUDED.candidates
		RETURNING ` + caseColumns

	var result models.AmbiguousCase
	err = r.db.GetContext(ctx, &result, query, uuid.New().String(), sourceKind, sourceID, candidatesJSON, models.AmbiguousCaseStatusOpen, now)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_kind": sourceKind,
			"source_id":   sourceID,
		}).Error("Failed to create ambiguous case")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create ambiguous case")
	}

	return &result, nil
}

// Get retrieves a case by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.AmbiguousCase, error) {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(caseColumns)
	sb.From("ambiguous_cases")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var result models.AmbiguousCase
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("ambiguous case %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get ambiguous case")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ambiguous case")
	}

	return &result, nil
}

// List retrieves cases filtered by status, newest first
func (r *Repository) List(ctx context.Context, status models.AmbiguousCaseStatus, limit int) ([]models.AmbiguousCase, error) {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(caseColumns)
	sb.From("ambiguous_cases")
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var cases []models.AmbiguousCase
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list ambiguous cases")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ambiguous cases")
	}

	return cases, nil
}

// CountOpen returns the size of the open review queue, reported as a gauge
// after each resolution pass
func (r *Repository) CountOpen(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.CountOpen")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("ambiguous_cases")
	sb.Where(sb.Equal("status", models.AmbiguousCaseStatusOpen))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count open ambiguous cases")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count open ambiguous cases")
	}

	return count, nil
}

// Resolve closes a case with the operator's chosen canonical player
func (r *Repository) Resolve(ctx context.Context, id string, chosenCanonicalID string, resolvedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.Resolve")
	defer span.End()

	return r.close(ctx, id, models.AmbiguousCaseStatusResolvedManually, &chosenCanonicalID, resolvedBy)
}

// Dismiss closes a case with no link established
func (r *Repository) Dismiss(ctx context.Context, id string, resolvedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "ambiguouscase.Repository.Dismiss")
	defer span.End()

	return r.close(ctx, id, models.AmbiguousCaseStatusDismissed, nil, resolvedBy)
}

func (r *Repository) close(ctx context.Context, id string, status models.AmbiguousCaseStatus, chosenCanonicalID *string, resolvedBy string) error {
	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("ambiguous_cases")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("chosen_canonical_id", chosenCanonicalID),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.AmbiguousCaseStatusOpen),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to close ambiguous case")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to close ambiguous case")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("open ambiguous case %s not found", id))
	}

	return nil
}
