package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Mirror maintains the Player/Team view of resolved identities in the graph.
// It is an eventually consistent projection: Postgres is the source of truth
// and mirror failures never fail resolution.
type Mirror struct {
	client *Client
	logger ectologger.Logger
}

// NewMirror creates a graph mirror
func NewMirror(client *Client, logger ectologger.Logger) *Mirror {
	return &Mirror{
		client: client,
		logger: logger,
	}
}

// UpsertPlayer merges the player node and its team relationship. Moving a
// player to a new team detaches the old PLAYS_FOR edge first.
func (m *Mirror) UpsertPlayer(ctx context.Context, player *models.CanonicalPlayer) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Mirror.UpsertPlayer")
	defer span.End()

	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `
			MERGE (p:Player {canonical_id: $canonical_id})
			SET p.display_name = $display_name,
			    p.name_key = $name_key,
			    p.position_class = $position_class
			WITH p
			OPTIONAL MATCH (p)-[old:PLAYS_FOR]->(t:Team)
			WHERE t.key <> $team_key
			DELETE old
			WITH p
			MERGE (t:Team {key: $team_key})
			MERGE (p)-[:PLAYS_FOR]->(t)
		`
		_, err := tx.Run(ctx, cypher, map[string]any{
			"canonical_id":   player.CanonicalID,
			"display_name":   player.DisplayName,
			"name_key":       player.NameKey,
			"position_class": string(player.PositionClass),
			"team_key":       player.TeamKey,
		})
		return nil, err
	})
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"canonical_id": player.CanonicalID,
		}).Error("Failed to upsert player in graph")
		return err
	}

	return nil
}

// ListTeammates returns the canonical IDs of players sharing a team with the
// given player
func (m *Mirror) ListTeammates(ctx context.Context, canonicalID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Mirror.ListTeammates")
	defer span.End()

	result, err := m.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `
			MATCH (p:Player {canonical_id: $canonical_id})-[:PLAYS_FOR]->(t:Team)<-[:PLAYS_FOR]-(other:Player)
			RETURN other.canonical_id AS canonical_id
			ORDER BY canonical_id
		`
		res, err := tx.Run(ctx, cypher, map[string]any{"canonical_id": canonicalID})
		if err != nil {
			return nil, err
		}

		var ids []string
		for res.Next(ctx) {
			if v, ok := res.Record().Get("canonical_id"); ok {
				if s, ok := v.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, err
	}

	ids, _ := result.([]string)
	return ids, nil
}
