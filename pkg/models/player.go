package models

import (
	"encoding/json"
	"time"
)

// SourceKind identifies which upstream feed a record came from
type SourceKind string

const (
	// SourceKindPrimary is the official fantasy-points feed. It anchors
	// identity: new canonical players are only ever created from it.
	SourceKindPrimary SourceKind = "PRIMARY"
	// SourceKindAdvanced is the expected-stats feed. It only attaches to
	// existing canonical players, never creates them.
	SourceKindAdvanced SourceKind = "ADVANCED"
)

// PositionClass is the shared position vocabulary across both sources
type PositionClass string

const (
	PositionGK  PositionClass = "GK"
	PositionDEF PositionClass = "DEF"
	PositionMID PositionClass = "MID"
	PositionFWD PositionClass = "FWD"
	// PositionUnknown marks a position_ref neither source vocabulary covers.
	// Position is corroboration only, so an unknown class is tolerated.
	PositionUnknown PositionClass = "UNKNOWN"
)

// RawPlayerRecord is one snapshot of a player as reported by a single source.
// Immutable once stored; a new observation inserts a new row.
type RawPlayerRecord struct {
	ID          string          `json:"id" db:"id"`
	SourceKind  SourceKind      `json:"source_kind" db:"source_kind"`
	SourceID    string          `json:"source_id" db:"source_id"`
	DisplayName string          `json:"display_name" db:"display_name"`
	TeamRef     string          `json:"team_ref" db:"team_ref"`
	PositionRef string          `json:"position_ref" db:"position_ref"`
	AsOf        time.Time       `json:"as_of" db:"as_of"`
	Fields      json.RawMessage `json:"fields" db:"fields"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// FieldMap decodes the sparse per-source field set. Absent keys mean
// "not reported by this source", never zero.
func (r *RawPlayerRecord) FieldMap() (map[string]any, error) {
	if len(r.Fields) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(r.Fields, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// CanonicalPlayer is the durable identity for one real player. The identity
// snapshot columns (name_key, team_key, position_class) are denormalized from
// the latest PRIMARY record so the matcher can load candidates in one read.
type CanonicalPlayer struct {
	CanonicalID   string        `json:"canonical_id" db:"canonical_id"`
	DisplayName   string        `json:"display_name" db:"display_name"`
	NameKey       string        `json:"name_key" db:"name_key"`
	TeamKey       string        `json:"team_key" db:"team_key"`
	PositionClass PositionClass `json:"position_class" db:"position_class"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateRawRecordRequest is the ingestion payload for one player snapshot
type CreateRawRecordRequest struct {
	SourceKind  SourceKind      `json:"source_kind" validate:"required,oneof=PRIMARY ADVANCED"`
	SourceID    string          `json:"source_id" validate:"required"`
	DisplayName string          `json:"display_name" validate:"required"`
	TeamRef     string          `json:"team_ref" validate:"required"`
	PositionRef string          `json:"position_ref"`
	AsOf        time.Time       `json:"as_of" validate:"required"`
	Fields      json.RawMessage `json:"fields"`
}
