package board

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by normalized patient
// ID. A patient's board spans four logical namespaces - items, snapshot,
// zone-config, zone-positions - each independently clearable.
//
// Key pattern: board:{PATIENT}:{namespace}
// Channel pattern: board:{PATIENT}:events

// NormalizePatientID canonicalizes a patient identifier by trimming
// whitespace and uppercasing. Uppercasing is deliberate: two callers that
// disagree on case must collide to the same keyspace, otherwise a patient's
// cache silently fragments. Returns ErrInvalidPatient for empty identifiers.
func NormalizePatientID(patientID string) (string, error) {
	id := strings.TrimSpace(patientID)
	if id == "" {
		return "", ErrInvalidPatient
	}
	return strings.ToUpper(id), nil
}

// ItemsKey returns the Redis key for a patient's item hash.
// Fields are item IDs, values are JSON-encoded BoardItems.
// Pattern: board:{PATIENT}:items
func ItemsKey(patientID string) string {
	return fmt.Sprintf("board:%s:items", patientID)
}

// ItemOrderKey returns the Redis key for the item insertion-order ZSET.
// Scores come from the per-patient sequence so listing preserves creation
// order even under concurrent writers.
// Pattern: board:{PATIENT}:items:order
func ItemOrderKey(patientID string) string {
	return fmt.Sprintf("board:%s:items:order", patientID)
}

// ItemSeqKey returns the Redis key for the per-patient insertion counter.
// Pattern: board:{PATIENT}:items:seq
func ItemSeqKey(patientID string) string {
	return fmt.Sprintf("board:%s:items:seq", patientID)
}

// OriginKey returns the Redis key recording which source last populated
// the patient's item namespace.
// Pattern: board:{PATIENT}:items:origin
func OriginKey(patientID string) string {
	return fmt.Sprintf("board:%s:items:origin", patientID)
}

// SnapshotKey returns the Redis key for the raw source snapshot hash.
// Pattern: board:{PATIENT}:snapshot
func SnapshotKey(patientID string) string {
	return fmt.Sprintf("board:%s:snapshot", patientID)
}

// ZoneConfigKey returns the Redis key for the patient's zone template.
// Pattern: board:{PATIENT}:zone-config
func ZoneConfigKey(patientID string) string {
	return fmt.Sprintf("board:%s:zone-config", patientID)
}

// ZonePositionsKey returns the Redis key for the dynamic position overlay
// hash. Fields are item IDs, values are JSON-encoded ZonePositions.
// Pattern: board:{PATIENT}:zone-positions
func ZonePositionsKey(patientID string) string {
	return fmt.Sprintf("board:%s:zone-positions", patientID)
}

// FreshnessKey returns the Redis key for the fallback freshness marker.
// The key carries the short freshness TTL; its value is the origin tag.
// Pattern: board:{PATIENT}:fresh
func FreshnessKey(patientID string) string {
	return fmt.Sprintf("board:%s:fresh", patientID)
}

// EventsChannel returns the Pub/Sub channel name for a patient's board
// mutation events.
// Pattern: board:{PATIENT}:events
func EventsChannel(patientID string) string {
	return fmt.Sprintf("board:%s:events", patientID)
}

// PatientKeys returns every Redis key belonging to a patient's board.
// Used by ClearPatient to evict the whole keyspace as one logical
// operation, and by the retention refresh to re-arm expiry.
func PatientKeys(patientID string) []string {
	return []string{
		ItemsKey(patientID),
		ItemOrderKey(patientID),
		ItemSeqKey(patientID),
		OriginKey(patientID),
		SnapshotKey(patientID),
		ZoneConfigKey(patientID),
		ZonePositionsKey(patientID),
		FreshnessKey(patientID),
	}
}

// AllKeysPattern matches every board key on the server. Used by
// administrative scans (entry counts, clear-all).
const AllKeysPattern = "board:*"
