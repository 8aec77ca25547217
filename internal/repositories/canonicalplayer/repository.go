package canonicalplayer

import (
	"context"
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

// Repository handles canonical player persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new canonical player repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create assigns a new canonical identity. Only the resolver's PRIMARY pass
// calls this; canonical players are never created from the ADVANCED feed.
func (r *Repository) Create(ctx context.Context, displayName, nameKey, teamKey string, positionClass models.PositionClass) (*models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalplayer.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	player := &models.CanonicalPlayer{
		CanonicalID:   uuid.New().String(),
		DisplayName:   displayName,
		NameKey:       nameKey,
		TeamKey:       teamKey,
		PositionClass: positionClass,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("canonical_players")
	sb.Cols("canonical_id", "display_name", "name_key", "team_key", "position_class", "created_at", "updated_at")
	sb.Values(player.CanonicalID, player.DisplayName, player.NameKey, player.TeamKey, player.PositionClass, player.CreatedAt, player.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name_key": nameKey}).Error("Failed to create canonical player")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create canonical player")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"canonical_id": player.CanonicalID,
		"name_key":     player.NameKey,
		"team_key":     player.TeamKey,
	}).Info("Created canonical player")

	return player, nil
}

// Get retrieves a canonical player by ID
func (r *Repository) Get(ctx context.Context, canonicalID string) (*models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalplayer.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("canonical_id", "display_name", "name_key", "team_key", "position_class", "created_at", "updated_at")
	sb.From("canonical_players")
	sb.Where(sb.Equal("canonical_id", canonicalID))

	query, args := sb.Build()
	var player models.CanonicalPlayer
	if err := r.db.GetContext(ctx, &player, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("canonical player %s not found", canonicalID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get canonical player")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get canonical player")
	}

	return &player, nil
}

// List returns all canonical players ordered by canonical_id. The resolver
// loads this once per pass as the matcher's candidate snapshot.
func (r *Repository) List(ctx context.Context) ([]models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalplayer.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("canonical_id", "display_name", "name_key", "team_key", "position_class", "created_at", "updated_at")
	sb.From("canonical_players")
	sb.OrderBy("canonical_id ASC")

	query, args := sb.Build()
	var players []models.CanonicalPlayer
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list canonical players")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list canonical players")
	}

	return players, nil
}

// UpdateIdentity refreshes the denormalized identity snapshot from a newer
// PRIMARY record (renames, transfers, position changes)
func (r *Repository) UpdateIdentity(ctx context.Context, canonicalID, displayName, nameKey, teamKey string, positionClass models.PositionClass) error {
	ctx, span := tracing.StartSpan(ctx, "canonicalplayer.Repository.UpdateIdentity")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("canonical_players")
	sb.Set(
		sb.Assign("display_name", displayName),
		sb.Assign("name_key", nameKey),
		sb.Assign("team_key", teamKey),
		sb.Assign("position_class", positionClass),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("canonical_id", canonicalID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update canonical player identity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update canonical player identity")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("canonical player %s not found", canonicalID))
	}

	return nil
}
