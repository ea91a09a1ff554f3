// Package store implements the BoardStore: the authoritative in-process
// view over the cache tier. Every mutation path - create, update, delete,
// clear - goes through here; no other component writes item state
// directly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/internal/fallback"
	"github.com/medforce/boardstate/internal/zones"
	"github.com/medforce/boardstate/pkg/board"
)

// Resolver is the fallback chain consulted on a cache miss.
type Resolver interface {
	Resolve(ctx context.Context, patientID string) (*fallback.Resolution, error)
}

// Store coordinates the cache tier, the fallback chain, placement and
// event publication for patient boards.
//
// Mutations to one patient's board are serialized by a per-patient mutex.
// The mutex guards only the read-modify-write against Redis; the fallback
// chain and event publication run outside it.
type Store struct {
	client     *board.Client
	resolver   Resolver
	positioner *zones.Positioner
	freshness  time.Duration
	log        *logrus.Logger

	locks sync.Map // normalized patient ID -> *sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Store. resolver may be nil when no fallback sources are
// configured; every cache miss then reports no data available.
func New(client *board.Client, resolver Resolver, positioner *zones.Positioner, freshness time.Duration, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		client:     client,
		resolver:   resolver,
		positioner: positioner,
		freshness:  freshness,
		log:        log,
	}
}

// Client exposes the underlying board client for read-only collaborators
// (event subscription, admin scans).
func (s *Store) Client() *board.Client {
	return s.client
}

// Positioner exposes the zone positioner sharing this store's cache tier.
func (s *Store) Positioner() *zones.Positioner {
	return s.positioner
}

// Hits returns the number of reads served from the cache tier.
func (s *Store) Hits() int64 { return s.hits.Load() }

// Misses returns the number of reads that invoked the fallback chain.
func (s *Store) Misses() int64 { return s.misses.Load() }

// List returns the patient's board in insertion order. On a cache miss
// the fallback chain populates it first; if every source fails the error
// is board.ErrSourceUnavailable, which is distinct from a valid empty
// board.
func (s *Store) List(ctx context.Context, patientID string) ([]board.BoardItem, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePopulated(ctx, patientID); err != nil {
		return nil, err
	}
	return s.client.ListItems(ctx, patientID)
}

// Get returns one item. A patient whose board has never been cached is
// resolved first so fallback-sourced items are findable; if no source can
// answer, the item is simply not found.
func (s *Store) Get(ctx context.Context, patientID, itemID string) (*board.BoardItem, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePopulated(ctx, patientID); err != nil && !isSourceFailure(err) {
		return nil, err
	}
	return s.client.GetItem(ctx, patientID, itemID)
}

// Origin returns the provenance tag of the patient's item namespace.
func (s *Store) Origin(ctx context.Context, patientID string) (board.Origin, error) {
	return s.client.GetOrigin(ctx, patientID)
}

// Create adds an item to the patient's board. Assigns an ID and
// timestamps when absent, places the item if it declares a target zone,
// and publishes an item-created event.
func (s *Store) Create(ctx context.Context, patientID string, item *board.BoardItem) (*board.BoardItem, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	// Populate from fallback first so a live write to a never-read board
	// does not shadow the source data behind a now-warm cache.
	if err := s.ensurePopulated(ctx, patientID); err != nil && !isSourceFailure(err) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	item.PatientID = patientID
	if item.ID == "" {
		item.ID = newItemID(now)
	}
	if item.CreatedAtMs == 0 {
		item.CreatedAtMs = now
	}
	item.UpdatedAtMs = now
	for i := range item.Tasks {
		if item.Tasks[i].Key == "" {
			item.Tasks[i].Key = uuid.NewString()
		}
		if item.Tasks[i].Status == "" {
			item.Tasks[i].Status = board.TaskStatusTodo
		}
	}

	var placeErr error
	unlock := s.lock(patientID)
	err = func() error {
		if err := s.client.PutItem(ctx, item); err != nil {
			return err
		}
		if err := s.client.SetOrigin(ctx, patientID, board.OriginLiveWrite); err != nil {
			return err
		}
		// Placement stays under the lock: the cascade slot comes from the
		// current zone occupancy, and two concurrent creates reading it
		// unserialized would stack their items on the same slot.
		if item.Zone != "" {
			_, placeErr = s.positioner.Place(ctx, patientID, item.ID, item.Zone)
		}
		return nil
	}()
	unlock()
	if err != nil {
		return nil, err
	}

	if placeErr != nil {
		// Placement is advisory: an unknown zone leaves the item
		// explicitly unplaced rather than failing the create.
		s.log.WithFields(logrus.Fields{
			"patient": patientID,
			"item":    item.ID,
			"zone":    item.Zone,
		}).WithError(placeErr).Warn("could not place created item")
	}

	s.publish(ctx, &board.Event{
		Kind:      board.EventItemCreated,
		PatientID: patientID,
		ItemID:    item.ID,
		Item:      item,
	})
	return item, nil
}

// Update shallow-merges fields into an existing item: each given field
// replaces the stored one wholesale, untouched fields survive. The
// identity fields id, patientId, type and createdAtMs are immutable.
// Publishes an item-updated event.
func (s *Store) Update(ctx context.Context, patientID, itemID string, fields map[string]any) (*board.BoardItem, error) {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	for _, immutable := range []string{"id", "patientId", "type", "createdAtMs"} {
		if _, ok := fields[immutable]; ok {
			return nil, fmt.Errorf("field %q is immutable", immutable)
		}
	}

	var updated *board.BoardItem
	unlock := s.lock(patientID)
	err = func() error {
		current, err := s.client.GetItem(ctx, patientID, itemID)
		if err != nil {
			return err
		}

		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		merged.UpdatedAtMs = time.Now().UnixMilli()

		if err := s.client.PutItem(ctx, merged); err != nil {
			return err
		}
		// The edit claims the board: without the live-write tag a later
		// freshness lapse would re-run the resolver and revert it.
		if err := s.client.SetOrigin(ctx, patientID, board.OriginLiveWrite); err != nil {
			return err
		}
		updated = merged
		return nil
	}()
	unlock()
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &board.Event{
		Kind:      board.EventItemUpdated,
		PatientID: patientID,
		ItemID:    itemID,
		Item:      updated,
	})
	return updated, nil
}

// Delete removes one item and its position override. Deleting an absent
// item is a no-op success.
func (s *Store) Delete(ctx context.Context, patientID, itemID string) error {
	return s.BatchDelete(ctx, patientID, []string{itemID})
}

// BatchDelete removes multiple items, publishing one item-deleted event
// per item that actually existed.
func (s *Store) BatchDelete(ctx context.Context, patientID string, itemIDs []string) error {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return err
	}

	var deleted []string
	unlock := s.lock(patientID)
	err = func() error {
		for _, id := range itemIDs {
			removed, err := s.client.DeleteItems(ctx, patientID, id)
			if err != nil {
				return err
			}
			if removed > 0 {
				deleted = append(deleted, id)
			}
		}
		if len(deleted) > 0 {
			// Same as Update: a delete on a fallback-sourced board must
			// claim it, or the next re-fetch resurrects the item.
			return s.client.SetOrigin(ctx, patientID, board.OriginLiveWrite)
		}
		return nil
	}()
	unlock()
	if err != nil {
		return err
	}

	for _, id := range deleted {
		s.publish(ctx, &board.Event{
			Kind:      board.EventItemDeleted,
			PatientID: patientID,
			ItemID:    id,
		})
	}
	return nil
}

// ClearPatient evicts every cache entry under the patient's keyspace as
// one logical operation. Used for forced resync.
func (s *Store) ClearPatient(ctx context.Context, patientID string) error {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	unlock := s.lock(patientID)
	defer unlock()
	return s.client.ClearPatient(ctx, patientID)
}

// Notify publishes a notification event to the patient's subscribers.
func (s *Store) Notify(ctx context.Context, patientID, message string) error {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	return s.client.PublishEvent(ctx, &board.Event{
		Kind:      board.EventNotification,
		PatientID: patientID,
		Message:   message,
		AtMs:      time.Now().UnixMilli(),
	})
}

// RequestFocus asks every viewer of the patient's board to focus on one
// item. The item must exist.
func (s *Store) RequestFocus(ctx context.Context, patientID, itemID string, zoom float64) error {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, patientID, itemID); err != nil {
		return err
	}
	return s.client.PublishEvent(ctx, &board.Event{
		Kind:      board.EventFocusRequested,
		PatientID: patientID,
		ItemID:    itemID,
		Zoom:      zoom,
		AtMs:      time.Now().UnixMilli(),
	})
}

// Refresh forces the fallback chain to re-run for a patient, overwriting
// the cached items regardless of origin or freshness. Used by the admin
// reload operation.
func (s *Store) Refresh(ctx context.Context, patientID string) error {
	patientID, err := board.NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	return s.resolve(ctx, patientID, true)
}

// ensurePopulated makes the patient's item namespace servable: a warm
// namespace is a hit unless its fallback-sourced data went stale, a cold
// one runs the resolver. Stale data is served as-is when every source
// fails; the next read retries.
func (s *Store) ensurePopulated(ctx context.Context, patientID string) error {
	populated, err := s.client.HasItems(ctx, patientID)
	if err != nil {
		return err
	}

	if populated {
		origin, err := s.client.GetOrigin(ctx, patientID)
		if err != nil {
			return err
		}
		if origin == "" || origin == board.OriginLiveWrite {
			s.hits.Add(1)
			return nil
		}

		fresh, err := s.client.Fresh(ctx, patientID)
		if err != nil {
			return err
		}
		if fresh {
			s.hits.Add(1)
			return nil
		}

		// Freshness lapsed: attempt a re-fetch, but serve the retained
		// cache when no source can answer right now.
		s.misses.Add(1)
		if err := s.resolve(ctx, patientID, false); err != nil {
			if isSourceFailure(err) {
				s.log.WithField("patient", patientID).WithError(err).
					Warn("serving retained cache, all sources failed")
				return nil
			}
			return err
		}
		return nil
	}

	s.misses.Add(1)
	return s.resolve(ctx, patientID, false)
}

// resolve runs the fallback chain and writes the winning source through
// to the cache tier: items, raw snapshot, origin tag and freshness
// marker. A failed resolve writes nothing, so the next read re-attempts.
//
// The source call runs outside the patient lock. Unless forced, the
// result is discarded when a concurrent resolve already re-armed
// freshness, so a slow fetch cannot clobber writes that landed meanwhile.
func (s *Store) resolve(ctx context.Context, patientID string, force bool) error {
	if s.resolver == nil {
		return fmt.Errorf("no resolver configured: %w", board.ErrSourceUnavailable)
	}

	res, err := s.resolver.Resolve(ctx, patientID)
	if err != nil {
		return err
	}

	unlock := s.lock(patientID)
	defer unlock()

	if !force {
		fresh, err := s.client.Fresh(ctx, patientID)
		if err != nil {
			return err
		}
		if fresh {
			return nil
		}
	}

	if err := s.client.ReplaceItems(ctx, patientID, res.Items, res.Origin); err != nil {
		return err
	}
	if err := s.client.SetSnapshot(ctx, patientID, &board.Snapshot{
		Payload:     res.Raw,
		Origin:      res.Origin,
		FetchedAtMs: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}
	return s.client.MarkFresh(ctx, patientID, res.Origin, s.freshness)
}

// publish sends a mutation event after the cache write committed. Event
// delivery is best-effort: a publish failure is logged, never surfaced to
// the mutating caller.
func (s *Store) publish(ctx context.Context, ev *board.Event) {
	ev.AtMs = time.Now().UnixMilli()
	if err := s.client.PublishEvent(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"patient": ev.PatientID,
			"kind":    ev.Kind,
		}).WithError(err).Error("failed to publish board event")
	}
}

// lock serializes mutations per patient. Callers release before any
// event delivery or source call.
func (s *Store) lock(patientID string) func() {
	v, _ := s.locks.LoadOrStore(patientID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// mergeFields applies a shallow field merge onto an item via its JSON
// form, so payload fields stay opaque to the store.
func mergeFields(current *board.BoardItem, fields map[string]any) (*board.BoardItem, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal current item: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("failed to decode current item: %w", err)
	}
	for k, v := range fields {
		asMap[k] = v
	}
	mergedRaw, err := json.Marshal(asMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged item: %w", err)
	}
	var merged board.BoardItem
	if err := json.Unmarshal(mergedRaw, &merged); err != nil {
		return nil, fmt.Errorf("invalid update fields: %w", err)
	}
	return &merged, nil
}

// isSourceFailure reports whether the error came from the fallback chain
// rather than the cache tier itself.
func isSourceFailure(err error) bool {
	return errors.Is(err, board.ErrSourceUnavailable) || errors.Is(err, board.ErrTimeout)
}

func newItemID(nowMs int64) string {
	return fmt.Sprintf("item-%d-%s", nowMs, uuid.NewString()[:8])
}
