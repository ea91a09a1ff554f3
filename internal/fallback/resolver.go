package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/pkg/board"
)

// Resolution is the outcome of a successful resolve: the items, the raw
// source payload and which tier produced them.
type Resolution struct {
	Items  []board.BoardItem
	Raw    string
	Origin board.Origin
}

// Resolver tries sources in strict order and returns the first success.
// It never retries internally: a failed resolve is retried only by the
// next independent read, and the cache is never populated with a failure
// marker.
type Resolver struct {
	sources []Source
	log     *logrus.Logger
}

// NewResolver creates a resolver over the given sources, tried in order.
func NewResolver(log *logrus.Logger, sources ...Source) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{sources: sources, log: log}
}

// Resolve walks the source chain for one patient. Returns
// board.ErrSourceUnavailable (wrapping each tier's error) when every
// source fails or none is configured.
func (r *Resolver) Resolve(ctx context.Context, patientID string) (*Resolution, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	var failures []error
	for _, src := range r.sources {
		res, err := src.Fetch(ctx, patientID)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"patient": patientID,
				"origin":  src.Origin(),
			}).WithError(err).Warn("fallback source failed")
			failures = append(failures, fmt.Errorf("%s: %w", src.Origin(), err))
			continue
		}

		r.log.WithFields(logrus.Fields{
			"patient": patientID,
			"origin":  src.Origin(),
			"items":   len(res.Items),
		}).Info("fallback source resolved board")
		return &Resolution{Items: res.Items, Raw: res.Raw, Origin: src.Origin()}, nil
	}

	if len(failures) == 0 {
		return nil, fmt.Errorf("no fallback sources configured: %w", board.ErrSourceUnavailable)
	}
	return nil, fmt.Errorf("%w: %w", board.ErrSourceUnavailable, errors.Join(failures...))
}
