// Package zones computes the effective placement of board items: a static
// zone template (shared baseline, read-only at request time) merged with a
// per-patient dynamic override overlay (exclusively owned, replaced whole
// on sync, never patched incrementally).
package zones

import (
	"encoding/json"
	"fmt"

	"github.com/medforce/boardstate/pkg/board"
)

// ZoneDef describes one named layout region and how items cascade inside
// it as they are placed.
type ZoneDef struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	StepX float64 `json:"stepX"` // Per-slot offset applied by Place
	StepY float64 `json:"stepY"`
}

// Template is the static baseline layout: the zone definitions plus at
// most one static default position per item.
type Template struct {
	Zones  []ZoneDef                     `json:"zones"`
	Static map[string]board.ZonePosition `json:"static,omitempty"`
}

// DefaultTemplate returns the global baseline used for patients without a
// template of their own. Zone names follow the dashboard layout.
func DefaultTemplate() *Template {
	return &Template{
		Zones: []ZoneDef{
			{ID: "patient-report-zone", X: 0, Y: 0, StepX: 40, StepY: 40},
			{ID: "dili-analysis-zone", X: 1600, Y: 0, StepX: 40, StepY: 40},
			{ID: "medico-legal-report-zone", X: 3200, Y: 0, StepX: 40, StepY: 40},
			{ID: "workboard-zone", X: 0, Y: 1600, StepX: 40, StepY: 40},
		},
	}
}

// Zone returns the definition for a zone ID, or nil if the template does
// not define it.
func (t *Template) Zone(zoneID string) *ZoneDef {
	for i := range t.Zones {
		if t.Zones[i].ID == zoneID {
			return &t.Zones[i]
		}
	}
	return nil
}

// Validate checks the template for definitions that cannot work.
func (t *Template) Validate() error {
	seen := make(map[string]bool, len(t.Zones))
	for _, z := range t.Zones {
		if z.ID == "" {
			return fmt.Errorf("zone ID cannot be empty")
		}
		if seen[z.ID] {
			return fmt.Errorf("duplicate zone ID: %q", z.ID)
		}
		seen[z.ID] = true
	}
	for itemID, pos := range t.Static {
		if pos.ItemID != itemID {
			return fmt.Errorf("static position for %q carries mismatched itemId %q", itemID, pos.ItemID)
		}
		if err := pos.Validate(); err != nil {
			return fmt.Errorf("static position for %q: %w", itemID, err)
		}
	}
	return nil
}

// EncodeTemplate serializes a template for the zone-config namespace.
func EncodeTemplate(t *Template) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid zone template: %w", err)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal zone template: %w", err)
	}
	return string(data), nil
}

// DecodeTemplate deserializes a stored template.
func DecodeTemplate(data string) (*Template, error) {
	var t Template
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone template: %w", err)
	}
	return &t, nil
}
