// Package fingerprint produces deterministic content hashes for sparse field
// maps, used to detect unchanged snapshots and merges.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Generate creates a SHA256 fingerprint of the canonicalized field map
func Generate(fields map[string]any) string {
	canonical := canonicalize(fields)
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// GenerateFromJSON creates a fingerprint from a raw JSON object
func GenerateFromJSON(data json.RawMessage) (string, error) {
	var m map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return "", err
		}
	}
	if m == nil {
		m = map[string]any{}
	}
	return Generate(m), nil
}

// canonicalize builds a deterministic string form: map keys sorted,
// nested structures processed recursively, primitives JSON-encoded
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result := "{"
		for i, k := range keys {
			if i > 0 {
				result += ","
			}
			keyJSON, _ := json.Marshal(k)
			result += string(keyJSON) + ":" + canonicalize(v[k])
		}
		return result + "}"
	case []any:
		result := "["
		for i, item := range v {
			if i > 0 {
				result += ","
			}
			result += canonicalize(item)
		}
		return result + "]"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// HasChanged compares two fingerprints
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}
