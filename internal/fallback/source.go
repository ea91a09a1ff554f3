// Package fallback implements the ordered source chain consulted when a
// patient's board is missing from the cache tier: external patient-data
// API first, then the static file fallback. Each source is polymorphic
// behind the Source interface so the resolver stays a single pipeline
// rather than conditional lookups scattered across callers.
package fallback

import (
	"context"

	"github.com/medforce/boardstate/pkg/board"
)

// Result is what a source produced for one patient: the parsed items plus
// the raw payload, kept for the snapshot namespace.
type Result struct {
	Items []board.BoardItem
	Raw   string
}

// Source is one tier of the fallback chain.
type Source interface {
	// Origin is the provenance tag recorded when this source populates
	// the cache.
	Origin() board.Origin

	// Fetch returns the patient's board from this source. Implementations
	// must bound their own blocking calls; a timeout is a failure, never
	// an indefinite wait.
	Fetch(ctx context.Context, patientID string) (*Result, error)
}
