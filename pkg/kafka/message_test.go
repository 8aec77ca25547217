package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestParseSnapshotMessage(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{
			"source_kind": "PRIMARY",
			"as_of": "2026-08-15T06:00:00Z",
			"batch_id": "gw1",
			"batch_complete": true,
			"players": [
				{"source_id": "p1", "display_name": "Mohamed Salah", "team": "LIV", "position": "MID", "fields": {"total_points": 211}}
			]
		}`),
	}

	require.NoError(t, msg.ParseSnapshotMessage())
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, models.SourceKindPrimary, msg.Snapshot.SourceKind)
	assert.Equal(t, "gw1", msg.Snapshot.BatchID)
	assert.True(t, msg.Snapshot.BatchComplete)
	require.Len(t, msg.Snapshot.Players, 1)
	assert.Equal(t, "Mohamed Salah", msg.Snapshot.Players[0].DisplayName)
}

func TestParseSnapshotMessageRejectsUnknownSourceKind(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"source_kind": "SCOUTING", "as_of": "2026-08-15T06:00:00Z", "players": []}`),
	}

	err := msg.ParseSnapshotMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source kind")
	assert.Nil(t, msg.Snapshot)
}

func TestParseSnapshotMessageRequiresAsOf(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"source_kind": "ADVANCED", "players": []}`),
	}

	err := msg.ParseSnapshotMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "as_of")
}

func TestParseSnapshotMessageInvalidJSON(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{not json`)}
	assert.Error(t, msg.ParseSnapshotMessage())
}

func TestRawRecords(t *testing.T) {
	asOf := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	msg := &IncomingMessage{
		Snapshot: &SnapshotMessage{
			SourceKind: models.SourceKindAdvanced,
			AsOf:       asOf,
			Players: []PlayerSnapshot{
				{SourceID: "a1", DisplayName: "M. Salah", Team: "Liverpool", Position: "M", Fields: []byte(`{"xg": 18.2}`)},
				{SourceID: "a2", DisplayName: "E. Haaland", Team: "Man City", Position: "F", Fields: []byte(`{"xg": 24.1}`)},
			},
		},
	}

	records := msg.RawRecords()
	require.Len(t, records, 2)
	assert.Equal(t, models.SourceKindAdvanced, records[0].SourceKind)
	assert.Equal(t, "a1", records[0].SourceID)
	assert.Equal(t, "Liverpool", records[0].TeamRef)
	assert.Equal(t, asOf, records[0].AsOf)
	assert.JSONEq(t, `{"xg": 18.2}`, string(records[1].Fields))
}

func TestRawRecordsWithoutSnapshot(t *testing.T) {
	msg := &IncomingMessage{}
	assert.Nil(t, msg.RawRecords())
}
