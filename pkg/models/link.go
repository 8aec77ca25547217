package models

import (
	"fmt"
	"time"
)

// Provenance records how a SourceLink was established
type Provenance string

const (
	// ProvenanceAutoMatched links were created by the matcher
	ProvenanceAutoMatched Provenance = "AUTO_MATCHED"
	// ProvenanceManualOverride links were created by an operator and are
	// never replaced by automatic matching
	ProvenanceManualOverride Provenance = "MANUAL_OVERRIDE"
)

// SourceLink maps a (source_kind, source_id) pair to a canonical player.
// At most one link exists per pair system-wide.
type SourceLink struct {
	CanonicalID   string     `json:"canonical_id" db:"canonical_id"`
	SourceKind    SourceKind `json:"source_kind" db:"source_kind"`
	SourceID      string     `json:"source_id" db:"source_id"`
	Confidence    float64    `json:"confidence" db:"confidence"`
	Provenance    Provenance `json:"provenance" db:"provenance"`
	EstablishedAt time.Time  `json:"established_at" db:"established_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// LinkConflictError is returned when an auto-link attempt contradicts an
// existing manual or higher-confidence link for the same pair. The caller
// routes the record to an ambiguous case instead of overwriting.
type LinkConflictError struct {
	SourceKind  SourceKind
	SourceID    string
	AttemptedID string
	Existing    *SourceLink
}

func (e *LinkConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("link conflict for (%s, %s): already linked to %s with provenance %s",
			e.SourceKind, e.SourceID, e.Existing.CanonicalID, e.Existing.Provenance)
	}
	return fmt.Sprintf("link conflict for (%s, %s)", e.SourceKind, e.SourceID)
}

// ManualLinkRequest is the operator payload for a manual override
type ManualLinkRequest struct {
	SourceKind  SourceKind `json:"source_kind" validate:"required,oneof=PRIMARY ADVANCED"`
	SourceID    string     `json:"source_id" validate:"required"`
	CanonicalID string     `json:"canonical_id" validate:"required,uuid"`
}
