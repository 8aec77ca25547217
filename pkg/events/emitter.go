// Package events handles event emission for resolution lifecycle changes
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for Fern
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitCanonicalCreated emits a player.canonical_created event
func (e *Emitter) EmitCanonicalCreated(ctx context.Context, player *models.CanonicalPlayer) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCanonicalCreated")
	defer span.End()

	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	event := &kafka.PlayerEvent{
		EventType:   "player.canonical_created",
		CanonicalID: player.CanonicalID,
		Data:        data,
	}

	if err := e.producer.PublishPlayerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit player.canonical_created event")
		return err
	}

	return nil
}

// EmitLinkCreated emits a player.link_created event
func (e *Emitter) EmitLinkCreated(ctx context.Context, link *models.SourceLink) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLinkCreated")
	defer span.End()

	data, err := json.Marshal(link)
	if err != nil {
		return err
	}

	event := &kafka.PlayerEvent{
		EventType:   "player.link_created",
		CanonicalID: link.CanonicalID,
		SourceKind:  link.SourceKind,
		SourceID:    link.SourceID,
		Data:        data,
	}

	if err := e.producer.PublishPlayerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit player.link_created event")
		return err
	}

	return nil
}

// EmitCaseOpened emits a player.case_opened event
func (e *Emitter) EmitCaseOpened(ctx context.Context, c *models.AmbiguousCase) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCaseOpened")
	defer span.End()

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	event := &kafka.PlayerEvent{
		EventType:  "player.case_opened",
		SourceKind: c.SourceKind,
		SourceID:   c.SourceID,
		Data:       data,
	}

	if err := e.producer.PublishPlayerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit player.case_opened event")
		return err
	}

	return nil
}

// mergedPayload is the player.merged event body
type mergedPayload struct {
	Fields          json.RawMessage    `json:"fields"`
	FieldProvenance json.RawMessage    `json:"field_provenance"`
	MergedAt        time.Time          `json:"merged_at"`
	Conflicts       []merging.Conflict `json:"conflicts,omitempty"`
	SchemaVersion   string             `json:"schema_version"`
}

// EmitPlayerMerged emits a player.merged event carrying the merged field set
// and any source disagreements observed during the merge
func (e *Emitter) EmitPlayerMerged(ctx context.Context, record *models.MergedRecord, conflicts []merging.Conflict) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPlayerMerged")
	defer span.End()

	data, err := json.Marshal(mergedPayload{
		Fields:          record.Fields,
		FieldProvenance: record.FieldProvenance,
		MergedAt:        record.MergedAt,
		Conflicts:       conflicts,
		SchemaVersion:   SchemaVersion,
	})
	if err != nil {
		return err
	}

	event := &kafka.PlayerEvent{
		EventType:   "player.merged",
		CanonicalID: record.CanonicalID,
		Data:        data,
		Version:     record.Version,
	}

	if err := e.producer.PublishPlayerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit player.merged event")
		return err
	}

	return nil
}
