package zones

import (
	"context"
	"fmt"

	"github.com/medforce/boardstate/pkg/board"
)

// Positioner merges the static template with the per-patient dynamic
// overlay into the authoritative placement map.
type Positioner struct {
	client *board.Client
}

// New creates a Positioner over the board client.
func New(client *board.Client) *Positioner {
	return &Positioner{client: client}
}

// Layout is the merged view: exactly one effective position per item that
// has ever been placed, and the IDs of items with neither a static default
// nor an override. Unplaced items are reported explicitly, never silently
// defaulted to the origin.
type Layout struct {
	Positions map[string]board.ZonePosition `json:"positions"`
	Unplaced  []string                      `json:"unplaced,omitempty"`
}

// Template returns the patient's zone template, falling back to the
// global default when the patient has none of their own.
func (p *Positioner) Template(ctx context.Context, patientID string) (*Template, error) {
	raw, err := p.client.GetZoneConfig(ctx, patientID)
	if board.IsNotFound(err) {
		return DefaultTemplate(), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeTemplate(raw)
}

// SetTemplate stores a patient-specific zone template.
func (p *Positioner) SetTemplate(ctx context.Context, patientID string, t *Template) error {
	encoded, err := EncodeTemplate(t)
	if err != nil {
		return err
	}
	return p.client.SetZoneConfig(ctx, patientID, encoded)
}

// Place assigns an item the next cascading slot in the hinted zone and
// records it as a dynamic override. Fails if the template does not define
// the zone.
func (p *Positioner) Place(ctx context.Context, patientID, itemID, zoneID string) (*board.ZonePosition, error) {
	if itemID == "" {
		return nil, fmt.Errorf("itemID cannot be empty")
	}

	tmpl, err := p.Template(ctx, patientID)
	if err != nil {
		return nil, err
	}
	zone := tmpl.Zone(zoneID)
	if zone == nil {
		return nil, fmt.Errorf("unknown zone: %q", zoneID)
	}

	layout, err := p.Merged(ctx, patientID)
	if err != nil {
		return nil, err
	}

	// Next stacking slot: one past the zone's current occupancy.
	order := 0
	for _, pos := range layout.Positions {
		if pos.ZoneID == zoneID && pos.ItemID != itemID {
			order++
		}
	}

	pos := &board.ZonePosition{
		ItemID: itemID,
		ZoneID: zoneID,
		X:      zone.X + zone.StepX*float64(order),
		Y:      zone.Y + zone.StepY*float64(order),
		Order:  order,
	}
	if err := p.client.SetOverlayPosition(ctx, patientID, pos); err != nil {
		return nil, err
	}
	return pos, nil
}

// Merged computes the authoritative placement map for a patient: the
// static template baseline overlaid with dynamic overrides, override
// winning per item ID.
func (p *Positioner) Merged(ctx context.Context, patientID string) (*Layout, error) {
	tmpl, err := p.Template(ctx, patientID)
	if err != nil {
		return nil, err
	}
	overlay, err := p.client.GetOverlay(ctx, patientID)
	if err != nil {
		return nil, err
	}
	items, err := p.client.ListItems(ctx, patientID)
	if err != nil {
		return nil, err
	}

	layout := &Layout{Positions: make(map[string]board.ZonePosition)}
	for itemID, pos := range tmpl.Static {
		layout.Positions[itemID] = pos
	}
	for itemID, pos := range overlay {
		layout.Positions[itemID] = pos
	}

	for _, item := range items {
		if _, ok := layout.Positions[item.ID]; !ok {
			layout.Unplaced = append(layout.Unplaced, item.ID)
		}
	}
	return layout, nil
}

// Sync fully replaces the patient's dynamic overlay with the pushed
// positions. The previous overlay is discarded, not merged: two syncs in
// a row leave only the second one's overrides.
func (p *Positioner) Sync(ctx context.Context, patientID string, positions []board.ZonePosition) error {
	seen := make(map[string]bool, len(positions))
	for i := range positions {
		if err := positions[i].Validate(); err != nil {
			return fmt.Errorf("position %d: %w", i, err)
		}
		if seen[positions[i].ItemID] {
			return fmt.Errorf("duplicate position for item %q", positions[i].ItemID)
		}
		seen[positions[i].ItemID] = true
	}
	return p.client.ReplaceOverlay(ctx, patientID, positions)
}
