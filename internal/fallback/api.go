package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medforce/boardstate/pkg/board"
)

// APISource fetches a patient's board from the external patient-data API.
// Every call carries a hard timeout; on expiry the call is abandoned and
// reported as a failure so the resolver can move to the next source.
type APISource struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewAPISource creates the external API tier. baseURL is the API root
// without trailing slash, e.g. "https://board.example.com".
func NewAPISource(baseURL string, timeout time.Duration) *APISource {
	return &APISource{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Origin implements Source.
func (s *APISource) Origin() board.Origin {
	return board.OriginExternalAPI
}

// Fetch implements Source. The API addresses patients by lowercased ID;
// the cache keyspace normalization is independent of that contract.
func (s *APISource) Fetch(ctx context.Context, patientID string) (*Result, error) {
	normalized, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/board-items/patient/%s", s.baseURL, strings.ToLower(normalized))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build API request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("board API call exceeded %s: %w", s.timeout, board.ErrTimeout)
		}
		return nil, fmt.Errorf("board API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("board API read exceeded %s: %w", s.timeout, board.ErrTimeout)
		}
		return nil, fmt.Errorf("failed to read API response: %w", err)
	}

	items, err := parseItems(body, normalized)
	if err != nil {
		return nil, fmt.Errorf("board API payload: %w", err)
	}

	return &Result{Items: items, Raw: string(body)}, nil
}
