package models

import (
	"encoding/json"
	"time"
)

// AmbiguousCaseStatus is the review lifecycle of an ambiguous match
type AmbiguousCaseStatus string

const (
	AmbiguousCaseStatusOpen             AmbiguousCaseStatus = "OPEN"
	AmbiguousCaseStatusResolvedManually AmbiguousCaseStatus = "RESOLVED_MANUALLY"
	AmbiguousCaseStatusDismissed        AmbiguousCaseStatus = "DISMISSED"
)

// Candidate is one scored canonical player proposed by the matcher
type Candidate struct {
	CanonicalID string  `json:"canonical_id"`
	Score       float64 `json:"score"`
}

// AmbiguousCase is an unresolved multi-candidate match. It is never
// auto-resolved; an operator chooses a canonical player or dismisses it.
type AmbiguousCase struct {
	ID                string              `json:"id" db:"id"`
	SourceKind        SourceKind          `json:"source_kind" db:"source_kind"`
	SourceID          string              `json:"source_id" db:"source_id"`
	Candidates        json.RawMessage     `json:"candidates" db:"candidates"`
	Status            AmbiguousCaseStatus `json:"status" db:"status"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *string             `json:"resolved_by,omitempty" db:"resolved_by"`
	ChosenCanonicalID *string             `json:"chosen_canonical_id,omitempty" db:"chosen_canonical_id"`
}

// CandidateList decodes the ordered candidate payload
func (a *AmbiguousCase) CandidateList() ([]Candidate, error) {
	if len(a.Candidates) == 0 {
		return nil, nil
	}
	var out []Candidate
	if err := json.Unmarshal(a.Candidates, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveCaseRequest is the operator decision payload
type ResolveCaseRequest struct {
	CanonicalID string `json:"canonical_id" validate:"required,uuid"`
}
