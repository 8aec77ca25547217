package models

import (
	"encoding/json"
	"time"
)

// MergedRecord is the current per-field golden record for a canonical player.
// Only the latest merge is materialized; history lives in raw_player_records.
type MergedRecord struct {
	CanonicalID     string          `json:"canonical_id" db:"canonical_id"`
	Fields          json.RawMessage `json:"fields" db:"fields"`
	FieldProvenance json.RawMessage `json:"field_provenance" db:"field_provenance"`
	MergedAt        time.Time       `json:"merged_at" db:"merged_at"`
	Fingerprint     string          `json:"fingerprint" db:"fingerprint"`
	Version         int             `json:"version" db:"version"`
}

// FieldMap decodes the merged field set
func (m *MergedRecord) FieldMap() (map[string]any, error) {
	if len(m.Fields) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(m.Fields, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProvenanceMap decodes field name -> winning source kind
func (m *MergedRecord) ProvenanceMap() (map[string]SourceKind, error) {
	if len(m.FieldProvenance) == 0 {
		return map[string]SourceKind{}, nil
	}
	var out map[string]SourceKind
	if err := json.Unmarshal(m.FieldProvenance, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PlayerDetail is the downstream read shape: identity, golden record, links
type PlayerDetail struct {
	Player CanonicalPlayer `json:"player"`
	Merged *MergedRecord   `json:"merged,omitempty"`
	Links  []SourceLink    `json:"links"`
}
