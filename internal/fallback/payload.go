package fallback

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/pkg/board"
)

// envelope matches the external API response shape. The API has shipped
// three formats over time: a bare item array, {"items": [...]}, and the
// nested {"items": {"items": [...]}}. All three must parse.
type envelope struct {
	PatientID string          `json:"patientId"`
	Items     json.RawMessage `json:"items"`
}

// parseItems decodes a source payload in any of the known formats and
// normalizes every item to the given patient. Items that remain invalid
// after normalization are dropped, not fatal: a single malformed entry in
// a source payload must not make the whole patient unreadable.
func parseItems(data []byte, patientID string) ([]board.BoardItem, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	raw, err := extractItemArray(data)
	if err != nil {
		return nil, err
	}

	var items []board.BoardItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	now := time.Now().UnixMilli()
	kept := make([]board.BoardItem, 0, len(items))
	for _, item := range items {
		item.PatientID = patientID
		if item.ID == "" {
			item.ID = fmt.Sprintf("item-%d-%s", now, uuid.NewString()[:8])
		}
		if item.CreatedAtMs == 0 {
			item.CreatedAtMs = now
		}
		if item.UpdatedAtMs == 0 {
			item.UpdatedAtMs = item.CreatedAtMs
		}
		if err := item.Validate(); err != nil {
			logrus.WithFields(logrus.Fields{
				"patient": patientID,
				"item":    item.ID,
			}).WithError(err).Warn("skipping invalid item from source")
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}

func extractItemArray(data []byte) (json.RawMessage, error) {
	trimmed := firstNonSpace(data)
	if trimmed == '[' {
		return json.RawMessage(data), nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode source payload: %w", err)
	}
	if len(env.Items) == 0 {
		return nil, fmt.Errorf("source payload has no items field")
	}

	// Nested {"items": {"items": [...]}} format.
	if firstNonSpace(env.Items) == '{' {
		var inner envelope
		if err := json.Unmarshal(env.Items, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode nested items: %w", err)
		}
		if len(inner.Items) == 0 {
			return nil, fmt.Errorf("nested source payload has no items field")
		}
		return inner.Items, nil
	}

	return env.Items, nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
