package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string

	// Parsed content
	Snapshot *SnapshotMessage
}

// SnapshotMessage is one upstream feed payload: a batch of raw player
// snapshots from a single source, all sharing one as_of time. The final
// message of a feed run carries BatchComplete so a resolution pass can be
// triggered once the whole batch is persisted.
type SnapshotMessage struct {
	SourceKind    models.SourceKind `json:"source_kind"`
	AsOf          time.Time         `json:"as_of"`
	BatchID       string            `json:"batch_id"`
	BatchComplete bool              `json:"batch_complete"`
	Players       []PlayerSnapshot  `json:"players"`
}

// PlayerSnapshot is one player row as the upstream feed emitted it
type PlayerSnapshot struct {
	SourceID    string          `json:"source_id"`
	DisplayName string          `json:"display_name"`
	Team        string          `json:"team"`
	Position    string          `json:"position"`
	Fields      json.RawMessage `json:"fields"`
}

// ParseSnapshotMessage parses the message value as a snapshot batch
func (m *IncomingMessage) ParseSnapshotMessage() error {
	var msg SnapshotMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if msg.SourceKind != models.SourceKindPrimary && msg.SourceKind != models.SourceKindAdvanced {
		return fmt.Errorf("unknown source kind %q", msg.SourceKind)
	}
	if msg.AsOf.IsZero() {
		return fmt.Errorf("snapshot message missing as_of")
	}
	m.Snapshot = &msg
	return nil
}

// RawRecords converts the parsed snapshot batch into raw player records.
// Fingerprints are filled by the store on insert.
func (m *IncomingMessage) RawRecords() []*models.RawPlayerRecord {
	if m.Snapshot == nil {
		return nil
	}
	out := make([]*models.RawPlayerRecord, 0, len(m.Snapshot.Players))
	for _, p := range m.Snapshot.Players {
		out = append(out, &models.RawPlayerRecord{
			SourceKind:  m.Snapshot.SourceKind,
			SourceID:    p.SourceID,
			DisplayName: p.DisplayName,
			TeamRef:     p.Team,
			PositionRef: p.Position,
			AsOf:        m.Snapshot.AsOf,
			Fields:      p.Fields,
		})
	}
	return out
}
