// Package processor handles incoming snapshot messages. This is the
// ingestion layer: it appends raw player records and triggers a resolution
// pass when an upstream batch completes.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

// RawWriter persists raw player snapshots
type RawWriter interface {
	CreateBatch(ctx context.Context, records []*models.RawPlayerRecord) error
}

// PassRunner runs a resolution pass over the latest snapshots
type PassRunner interface {
	ResolvePass(ctx context.Context) (*models.ResolutionReport, error)
}

// Processor handles snapshot message processing
type Processor struct {
	logger   ectologger.Logger
	raw      RawWriter
	resolver PassRunner
}

// NewProcessor creates a new snapshot processor
func NewProcessor(logger ectologger.Logger, raw RawWriter, resolver PassRunner) *Processor {
	return &Processor{
		logger:   logger,
		raw:      raw,
		resolver: resolver,
	}
}

// HandleMessage persists one snapshot batch. Returning an error leaves the
// message uncommitted so it is redelivered; inserts are fingerprint-deduped,
// which makes redelivery safe.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	snapshot := msg.Snapshot
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"source_kind": snapshot.SourceKind,
		"batch_id":    snapshot.BatchID,
		"players":     len(snapshot.Players),
	})

	records := msg.RawRecords()
	if len(records) > 0 {
		if err := p.raw.CreateBatch(ctx, records); err != nil {
			log.WithError(err).Error("Failed to persist snapshot batch")
			return err
		}
		log.Info("Persisted snapshot batch")
	}

	if snapshot.BatchComplete {
		report, err := p.resolver.ResolvePass(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to run resolution pass")
			return err
		}
		log.WithFields(map[string]any{
			"pass_id":       report.PassID,
			"new_canonical": report.NewCanonical,
			"auto_matched":  report.AutoMatched,
			"ambiguous":     report.Ambiguous,
		}).Info("Resolution pass completed for batch")
	}

	return nil
}
