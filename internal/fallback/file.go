package fallback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/medforce/boardstate/pkg/board"
)

// FileSource serves a patient's board from a read-only directory of static
// JSON files, one per patient. This is the tier of last resort: slow-rare
// data that is always cached on success.
type FileSource struct {
	dir string
}

// NewFileSource creates the static file tier rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Origin implements Source.
func (s *FileSource) Origin() board.Origin {
	return board.OriginStaticFile
}

// Fetch implements Source. Files are named board_items_<patient>.json with
// a lowercased patient ID, the layout the upstream exporter writes.
func (s *FileSource) Fetch(ctx context.Context, patientID string) (*Result, error) {
	normalized, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("board_items_%s.json", strings.ToLower(normalized)))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no static fallback for patient %s", normalized)
		}
		return nil, fmt.Errorf("failed to read static fallback: %w", err)
	}

	items, err := parseItems(data, normalized)
	if err != nil {
		return nil, fmt.Errorf("static fallback payload: %w", err)
	}

	return &Result{Items: items, Raw: string(data)}, nil
}
