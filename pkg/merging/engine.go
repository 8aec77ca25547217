// Package merging produces the per-field golden record for a canonical
// player from its per-source raw snapshots.
package merging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Conflict records a field both sources reported with different values
type Conflict struct {
	Field         string            `json:"field"`
	PrimaryValue  any               `json:"primary_value"`
	AdvancedValue any               `json:"advanced_value"`
	Winner        models.SourceKind `json:"winner"`
}

// Result is the merge output: the golden record plus conflict detail for
// events and audit
type Result struct {
	Record    *models.MergedRecord
	Conflicts []Conflict
	Sources   []string
}

// Engine merges raw snapshots under a named precedence policy
type Engine struct {
	policy Policy
}

// NewEngine creates a merge engine
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Merge combines the latest snapshot per source into one merged record.
// Pure and idempotent: unchanged inputs yield a bit-for-bit identical
// record. A field absent from every snapshot is absent from the output,
// never defaulted to zero. MergedAt derives from the inputs' as_of
// timestamps, not the wall clock, so re-merges compare equal.
func (e *Engine) Merge(canonicalID string, records []models.RawPlayerRecord) (*Result, error) {
	latest := latestPerSource(records)
	if len(latest) == 0 {
		return nil, fmt.Errorf("no raw records for canonical player %s", canonicalID)
	}

	merged := map[string]any{}
	provenance := map[string]models.SourceKind{}
	var conflicts []Conflict
	var mergedAt time.Time
	var sources []string

	primary, hasPrimary := latest[models.SourceKindPrimary]
	advanced, hasAdvanced := latest[models.SourceKindAdvanced]

	if hasPrimary {
		fields, err := primary.FieldMap()
		if err != nil {
			return nil, fmt.Errorf("invalid fields on primary record %s: %w", primary.ID, err)
		}
		for k, v := range fields {
			merged[k] = v
			provenance[k] = models.SourceKindPrimary
		}
		if primary.AsOf.After(mergedAt) {
			mergedAt = primary.AsOf
		}
		sources = append(sources, primary.ID)
	}

	if hasAdvanced {
		fields, err := advanced.FieldMap()
		if err != nil {
			return nil, fmt.Errorf("invalid fields on advanced record %s: %w", advanced.ID, err)
		}
		for k, v := range fields {
			existing, contested := merged[k]
			if !contested {
				merged[k] = v
				provenance[k] = models.SourceKindAdvanced
				continue
			}

			winner := e.policy.Winner(k)
			if detectConflict(existing, v) {
				conflicts = append(conflicts, Conflict{
					Field:         k,
					PrimaryValue:  existing,
					AdvancedValue: v,
					Winner:        winner,
				})
			}
			if winner == models.SourceKindAdvanced {
				merged[k] = v
				provenance[k] = models.SourceKindAdvanced
			}
		}
		if advanced.AsOf.After(mergedAt) {
			mergedAt = advanced.AsOf
		}
		sources = append(sources, advanced.ID)
	}

	// encoding/json sorts map keys, so both payloads are canonical
	fieldsJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged fields: %w", err)
	}
	provenanceJSON, err := json.Marshal(provenance)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field provenance: %w", err)
	}

	return &Result{
		Record: &models.MergedRecord{
			CanonicalID:     canonicalID,
			Fields:          fieldsJSON,
			FieldProvenance: provenanceJSON,
			MergedAt:        mergedAt.UTC(),
			Fingerprint:     fingerprint.Generate(merged),
		},
		Conflicts: conflicts,
		Sources:   sources,
	}, nil
}

// latestPerSource picks the newest snapshot per source kind. Ties on as_of
// break by fingerprint so the choice is stable across runs.
func latestPerSource(records []models.RawPlayerRecord) map[models.SourceKind]models.RawPlayerRecord {
	latest := map[models.SourceKind]models.RawPlayerRecord{}
	for _, r := range records {
		current, ok := latest[r.SourceKind]
		if !ok || r.AsOf.After(current.AsOf) ||
			(r.AsOf.Equal(current.AsOf) && r.Fingerprint > current.Fingerprint) {
			latest[r.SourceKind] = r
		}
	}
	return latest
}

func detectConflict(a, b any) bool {
	return fmt.Sprintf("%v", a) != fmt.Sprintf("%v", b)
}
