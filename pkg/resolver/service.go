// Package resolver drives the end-to-end incremental resolution pass:
// normalize, match, link, merge, report.
package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// per-record resolution states, for failure logging
const (
	stateReceived     = "RECEIVED"
	stateNormalized   = "NORMALIZED"
	stateMatched      = "MATCHED"
	stateAmbiguous    = "AMBIGUOUS"
	stateNewCanonical = "NEW_CANONICAL"
	stateLinked       = "LINKED"
	stateMerged       = "MERGED"
	stateDone         = "DONE"
)

// EventSink publishes resolution lifecycle events. Optional: a nil sink
// disables emission.
type EventSink interface {
	EmitCanonicalCreated(ctx context.Context, player *models.CanonicalPlayer) error
	EmitLinkCreated(ctx context.Context, link *models.SourceLink) error
	EmitCaseOpened(ctx context.Context, c *models.AmbiguousCase) error
	EmitPlayerMerged(ctx context.Context, record *models.MergedRecord, conflicts []merging.Conflict) error
}

// GraphMirror reflects resolved players into the graph database. Optional;
// mirror failures are logged, never fail a pass.
type GraphMirror interface {
	UpsertPlayer(ctx context.Context, player *models.CanonicalPlayer) error
}

// Config holds resolution pass settings
type Config struct {
	WorkerCount int
}

// NewConfig builds pass settings from the application config
func NewConfig(cfg *config.Config) Config {
	return Config{WorkerCount: cfg.ResolveWorkerCount}
}

// Service orchestrates resolution passes
type Service struct {
	cfg     Config
	logger  ectologger.Logger
	matcher *matching.Matcher
	merger  *merging.Engine
	stores  Stores
	events  EventSink
	mirror  GraphMirror
}

// NewService creates a resolution orchestrator
func NewService(cfg Config, logger ectologger.Logger, matcher *matching.Matcher, merger *merging.Engine, stores Stores, events EventSink, mirror GraphMirror) *Service {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	return &Service{
		cfg:     cfg,
		logger:  logger,
		matcher: matcher,
		merger:  merger,
		stores:  stores,
		events:  events,
		mirror:  mirror,
	}
}

// ResolvePass runs one incremental resolution pass over the latest snapshot
// per (source_kind, source_id). PRIMARY records are fully resolved,
// including canonical player creation, before any ADVANCED record is
// matched: the advanced feed never anchors identity. Per-record failures are
// counted and skipped; they never abort the pass.
func (s *Service) ResolvePass(ctx context.Context) (*models.ResolutionReport, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ResolvePass")
	defer span.End()

	report := &models.ResolutionReport{
		PassID:    uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	records, err := s.stores.Raw.ListLatest(ctx)
	if err != nil {
		return nil, err
	}

	var primary, advanced []models.RawPlayerRecord
	for _, r := range records {
		if r.SourceKind == models.SourceKindPrimary {
			primary = append(primary, r)
		} else {
			advanced = append(advanced, r)
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"pass_id":  report.PassID,
		"primary":  len(primary),
		"advanced": len(advanced),
	}).Info("Resolution pass started")

	if err := s.resolvePhase(ctx, primary, report); err != nil {
		return nil, err
	}
	// reload the snapshot so canonical players created this pass are
	// visible to advanced matching
	if err := s.resolvePhase(ctx, advanced, report); err != nil {
		return nil, err
	}

	report.CompletedAt = time.Now().UTC()
	metrics.ObservePassDuration(report.CompletedAt.Sub(report.StartedAt))

	if open, countErr := s.stores.Cases.CountOpen(ctx); countErr != nil {
		s.logger.WithContext(ctx).WithError(countErr).Warn("Failed to count open cases")
	} else {
		metrics.SetOpenCases(open)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"pass_id":       report.PassID,
		"new_canonical": report.NewCanonical,
		"auto_matched":  report.AutoMatched,
		"ambiguous":     report.Ambiguous,
		"unmatched":     report.Unmatched,
		"failed":        report.Failed,
		"unchanged":     report.Unchanged,
		"merged":        report.Merged,
	}).Info("Resolution pass completed")

	return report, nil
}

// resolvePhase resolves one source partition across the worker pool.
// Matching and scoring run concurrently against an immutable snapshot;
// link writes are serialized by the store's atomic operations, keyed by
// (source_kind, source_id).
func (s *Service) resolvePhase(ctx context.Context, records []models.RawPlayerRecord, report *models.ResolutionReport) error {
	if len(records) == 0 {
		return nil
	}

	snapshot, byID, err := s.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	work := make(chan models.RawPlayerRecord)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				out := s.resolveRecord(ctx, rec, snapshot, byID)
				mu.Lock()
				out.apply(report)
				mu.Unlock()
				metrics.RecordOutcome(string(rec.SourceKind), out.label())
			}
		}()
	}

	for _, rec := range records {
		work <- rec
	}
	close(work)
	wg.Wait()

	return nil
}

// loadSnapshot reads the known canonical players once per phase, arena-style,
// so every record in the phase matches against the same immutable view.
func (s *Service) loadSnapshot(ctx context.Context) ([]matching.CandidateIdentity, map[string]models.CanonicalPlayer, error) {
	players, err := s.stores.Canonical.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	snapshot := make([]matching.CandidateIdentity, 0, len(players))
	byID := make(map[string]models.CanonicalPlayer, len(players))
	for _, p := range players {
		snapshot = append(snapshot, matching.CandidateIdentity{
			CanonicalID:   p.CanonicalID,
			NameTokens:    strings.Fields(p.NameKey),
			TeamKey:       p.TeamKey,
			PositionClass: p.PositionClass,
		})
		byID[p.CanonicalID] = p
	}
	return snapshot, byID, nil
}

type recordOutcome struct {
	newCanonical bool
	autoMatched  bool
	ambiguous    bool
	unmatched    bool
	failed       bool
	merged       bool
	unchanged    bool
}

func (o recordOutcome) apply(r *models.ResolutionReport) {
	if o.newCanonical {
		r.NewCanonical++
	}
	if o.autoMatched {
		r.AutoMatched++
	}
	if o.ambiguous {
		r.Ambiguous++
	}
	if o.unmatched {
		r.Unmatched++
	}
	if o.failed {
		r.Failed++
	}
	if o.merged {
		r.Merged++
	}
	if o.unchanged {
		r.Unchanged++
	}
}

func (o recordOutcome) label() string {
	switch {
	case o.failed:
		return "failed"
	case o.ambiguous:
		return "ambiguous"
	case o.unmatched:
		return "unmatched"
	case o.newCanonical:
		return "new_canonical"
	case o.unchanged:
		return "unchanged"
	case o.autoMatched:
		return "auto_matched"
	default:
		return "merged"
	}
}

// resolveRecord walks one raw record through the state machine. Any
// unrecoverable error absorbs into a failed outcome that leaves prior state
// untouched; the record is retried on the next pass.
func (s *Service) resolveRecord(ctx context.Context, rec models.RawPlayerRecord, snapshot []matching.CandidateIdentity, byID map[string]models.CanonicalPlayer) recordOutcome {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.resolveRecord")
	defer span.End()

	state := stateReceived
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"source_kind": rec.SourceKind,
		"source_id":   rec.SourceID,
	})

	fail := func(err error) recordOutcome {
		log.WithError(err).WithFields(map[string]any{"state": state}).Warn("Record skipped this pass")
		return recordOutcome{failed: true}
	}

	id, err := identity.Normalize(rec.DisplayName, rec.TeamRef, rec.PositionRef)
	if err != nil {
		return fail(err)
	}
	state = stateNormalized

	link, err := s.stores.Links.FindLink(ctx, rec.SourceKind, rec.SourceID)
	if err != nil {
		return fail(err)
	}

	out := recordOutcome{}

	if link == nil {
		result := s.matcher.Match(id, snapshot)

		switch result.Status {
		case models.MatchStatusAuto:
			state = stateMatched
			newLink, linkErr := s.stores.Links.LinkAuto(ctx, result.Best, rec.SourceKind, rec.SourceID, result.Candidates[0].Score)
			if linkErr != nil {
				var conflict *models.LinkConflictError
				if errors.As(linkErr, &conflict) {
					// contradicting link exists; surface both claims for review
					return s.openCase(ctx, log, rec, withExistingHolder(result.Candidates, conflict.Existing), &state)
				}
				return fail(linkErr)
			}
			link = newLink
			state = stateLinked
			out.autoMatched = true
			s.emitLinkCreated(ctx, link)

		case models.MatchStatusAmbiguous:
			return s.openCase(ctx, log, rec, result.Candidates, &state)

		case models.MatchStatusNone:
			if rec.SourceKind != models.SourceKindPrimary {
				// the advanced feed never spawns identity; queue the record
				// for manual mapping instead
				o := s.openCase(ctx, log, rec, nil, &state)
				if o.failed {
					return o
				}
				return recordOutcome{unmatched: true}
			}

			player, createErr := s.stores.Canonical.Create(ctx, rec.DisplayName, id.NameKey(), id.TeamKey, models.PositionClass(id.PositionClass))
			if createErr != nil {
				return fail(createErr)
			}
			state = stateNewCanonical
			s.emitCanonicalCreated(ctx, player)
			s.mirrorPlayer(ctx, log, player)

			newLink, linkErr := s.stores.Links.LinkAuto(ctx, player.CanonicalID, rec.SourceKind, rec.SourceID, 1.0)
			if linkErr != nil {
				var conflict *models.LinkConflictError
				if errors.As(linkErr, &conflict) {
					return s.openCase(ctx, log, rec, withExistingHolder(nil, conflict.Existing), &state)
				}
				return fail(linkErr)
			}
			link = newLink
			state = stateLinked
			out.newCanonical = true
			s.emitLinkCreated(ctx, link)
		}
	} else if rec.SourceKind == models.SourceKindPrimary {
		// keep the denormalized identity snapshot current with the
		// anchoring source (renames, transfers, position changes)
		if current, ok := byID[link.CanonicalID]; ok && identityChanged(current, rec.DisplayName, id) {
			if updateErr := s.stores.Canonical.UpdateIdentity(ctx, link.CanonicalID, rec.DisplayName, id.NameKey(), id.TeamKey, models.PositionClass(id.PositionClass)); updateErr != nil {
				return fail(updateErr)
			}
			current.DisplayName = rec.DisplayName
			current.NameKey = id.NameKey()
			current.TeamKey = id.TeamKey
			current.PositionClass = models.PositionClass(id.PositionClass)
			s.mirrorPlayer(ctx, log, &current)
		}
	}

	// merge everything currently attached to the canonical player
	raws, err := s.stores.Raw.ListByCanonical(ctx, link.CanonicalID)
	if err != nil {
		return fail(err)
	}

	result, err := s.merger.Merge(link.CanonicalID, raws)
	if err != nil {
		return fail(err)
	}
	state = stateMerged

	existing, err := s.stores.Merged.Get(ctx, link.CanonicalID)
	if err != nil {
		return fail(err)
	}
	if existing != nil && existing.Fingerprint == result.Record.Fingerprint {
		state = stateDone
		out.unchanged = true
		return out
	}

	stored, err := s.stores.Merged.Upsert(ctx, result.Record)
	if err != nil {
		return fail(err)
	}
	state = stateDone
	out.merged = true
	s.emitPlayerMerged(ctx, stored, result.Conflicts)

	return out
}

func (s *Service) openCase(ctx context.Context, log ectologger.Logger, rec models.RawPlayerRecord, candidates []models.Candidate, state *string) recordOutcome {
	*state = stateAmbiguous
	c, err := s.stores.Cases.Create(ctx, rec.SourceKind, rec.SourceID, candidates)
	if err != nil {
		log.WithError(err).WithFields(map[string]any{"state": *state}).Warn("Record skipped this pass")
		return recordOutcome{failed: true}
	}
	log.WithFields(map[string]any{"case_id": c.ID, "candidates": len(candidates)}).Info("Opened ambiguous case")
	s.emitCaseOpened(ctx, c)
	return recordOutcome{ambiguous: true}
}

// withExistingHolder appends the current link holder to the candidate list
// so the reviewer sees both claims
func withExistingHolder(candidates []models.Candidate, existing *models.SourceLink) []models.Candidate {
	if existing == nil {
		return candidates
	}
	for _, c := range candidates {
		if c.CanonicalID == existing.CanonicalID {
			return candidates
		}
	}
	return append(candidates, models.Candidate{CanonicalID: existing.CanonicalID, Score: existing.Confidence})
}

func identityChanged(current models.CanonicalPlayer, displayName string, id identity.NormalizedIdentity) bool {
	return current.DisplayName != displayName ||
		current.NameKey != id.NameKey() ||
		current.TeamKey != id.TeamKey ||
		string(current.PositionClass) != id.PositionClass
}

func (s *Service) emitCanonicalCreated(ctx context.Context, player *models.CanonicalPlayer) {
	if s.events == nil {
		return
	}
	_ = s.events.EmitCanonicalCreated(ctx, player)
}

func (s *Service) emitLinkCreated(ctx context.Context, link *models.SourceLink) {
	if s.events == nil {
		return
	}
	_ = s.events.EmitLinkCreated(ctx, link)
}

func (s *Service) emitCaseOpened(ctx context.Context, c *models.AmbiguousCase) {
	if s.events == nil {
		return
	}
	_ = s.events.EmitCaseOpened(ctx, c)
}

func (s *Service) emitPlayerMerged(ctx context.Context, record *models.MergedRecord, conflicts []merging.Conflict) {
	if s.events == nil {
		return
	}
	_ = s.events.EmitPlayerMerged(ctx, record, conflicts)
}

func (s *Service) mirrorPlayer(ctx context.Context, log ectologger.Logger, player *models.CanonicalPlayer) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.UpsertPlayer(ctx, player); err != nil {
		log.WithError(err).Warn("Failed to mirror player to graph")
	}
}
