package board

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for converting between Go structs and Redis values.
//
// Items and positions live as JSON-encoded fields inside per-patient hashes.
// One hash per namespace keeps TTL management simple (a single EXPIRE per
// namespace) while individual fields stay addressable by item ID.

// EncodeItem serializes a BoardItem for storage. Validates first so a
// malformed item never reaches Redis.
func EncodeItem(item *BoardItem) (string, error) {
	if err := item.Validate(); err != nil {
		return "", fmt.Errorf("invalid board item: %w", err)
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal board item: %w", err)
	}
	return string(data), nil
}

// DecodeItem deserializes a stored BoardItem.
func DecodeItem(data string) (*BoardItem, error) {
	var item BoardItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board item: %w", err)
	}
	return &item, nil
}

// EncodePosition serializes a ZonePosition for the overlay hash.
func EncodePosition(pos *ZonePosition) (string, error) {
	if err := pos.Validate(); err != nil {
		return "", fmt.Errorf("invalid zone position: %w", err)
	}
	data, err := json.Marshal(pos)
	if err != nil {
		return "", fmt.Errorf("failed to marshal zone position: %w", err)
	}
	return string(data), nil
}

// DecodePosition deserializes a stored ZonePosition.
func DecodePosition(data string) (*ZonePosition, error) {
	var pos ZonePosition
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone position: %w", err)
	}
	return &pos, nil
}

// DecodeOverlay converts a raw zone-positions hash into a position map
// keyed by item ID. Malformed entries fail the whole decode rather than
// being silently dropped.
func DecodeOverlay(hash map[string]string) (map[string]ZonePosition, error) {
	overlay := make(map[string]ZonePosition, len(hash))
	for itemID, raw := range hash {
		pos, err := DecodePosition(raw)
		if err != nil {
			return nil, fmt.Errorf("overlay entry %s: %w", itemID, err)
		}
		overlay[itemID] = *pos
	}
	return overlay, nil
}

// EncodeEvent serializes an Event for Pub/Sub publishing.
func EncodeEvent(ev *Event) (string, error) {
	if err := ev.Kind.Validate(); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return string(data), nil
}

// DecodeEvent deserializes a published Event.
func DecodeEvent(data string) (*Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}
