// Package admin provides the operational controls over the cache tier:
// stats, clear and forced reload. These are off the hot path; failures are
// reported to the caller, never swallowed.
package admin

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/internal/store"
)

// Stats is a point-in-time view of the cache tier.
type Stats struct {
	EntryCount int64   `json:"entryCount"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hitRate"`
}

// Admin exposes the administrative operations.
type Admin struct {
	store *store.Store
	log   *logrus.Logger
}

// New creates an Admin over the store.
func New(s *store.Store, log *logrus.Logger) *Admin {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Admin{store: s, log: log}
}

// Stats counts board keys and reports the in-process hit rate.
func (a *Admin) Stats(ctx context.Context) (*Stats, error) {
	count, err := a.store.Client().CountEntries(ctx)
	if err != nil {
		return nil, err
	}

	hits, misses := a.store.Hits(), a.store.Misses()
	st := &Stats{EntryCount: count, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st, nil
}

// ClearAll evicts every board key on the server.
func (a *Admin) ClearAll(ctx context.Context) error {
	a.log.Warn("clearing all board cache entries")
	return a.store.Client().ClearAll(ctx)
}

// ClearPatient evicts one patient's whole keyspace.
func (a *Admin) ClearPatient(ctx context.Context, patientID string) error {
	a.log.WithField("patient", patientID).Warn("clearing patient cache")
	return a.store.ClearPatient(ctx, patientID)
}

// ReloadFromSource forces the fallback chain to re-run for one patient,
// overwriting the cached board regardless of origin tag or freshness.
func (a *Admin) ReloadFromSource(ctx context.Context, patientID string) error {
	a.log.WithField("patient", patientID).Info("forcing reload from source")
	return a.store.Refresh(ctx, patientID)
}
