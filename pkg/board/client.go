package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides patient-scoped Redis operations for the board cache tier.
// All keys and channels are automatically namespaced with the normalized
// patient ID. The client is thread-safe and can be used concurrently from
// multiple goroutines.
//
// The client is the only component that talks to Redis directly; BoardStore
// and the zone positioner own all mutation paths above it.
type Client struct {
	rdb       *redis.Client
	retention time.Duration
}

// Snapshot is the raw payload captured from a fallback source, kept so
// operators can inspect exactly what a source returned.
type Snapshot struct {
	Payload     string
	Origin      Origin
	FetchedAtMs int64
}

// NewClient creates a board client. Every write re-arms the retention TTL
// on the patient's namespaces; a retention of zero disables expiry.
func NewClient(redisOpts *redis.Options, retention time.Duration) (*Client, error) {
	if retention < 0 {
		return nil, fmt.Errorf("retention cannot be negative")
	}
	return &Client{
		rdb:       redis.NewClient(redisOpts),
		retention: retention,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutItem writes a board item into the patient's item namespace.
// New items are appended to the insertion-order index; existing items keep
// their position. The retention TTL is re-armed on every write.
func (c *Client) PutItem(ctx context.Context, item *BoardItem) error {
	patientID, err := NormalizePatientID(item.PatientID)
	if err != nil {
		return err
	}
	item.PatientID = patientID

	encoded, err := EncodeItem(item)
	if err != nil {
		return err
	}

	exists, err := c.rdb.HExists(ctx, ItemsKey(patientID), item.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check item presence: %w", err)
	}

	if exists {
		if err := c.rdb.HSet(ctx, ItemsKey(patientID), item.ID, encoded).Err(); err != nil {
			return fmt.Errorf("failed to write item to Redis: %w", err)
		}
		return c.touchRetention(ctx, patientID)
	}

	// First write of this ID: the per-patient sequence is reserved up
	// front (a gap in scores after a failed write is harmless), then the
	// hash field and order index land in one transaction so ListItems can
	// never see an item the order index does not know about.
	seq, err := c.rdb.Incr(ctx, ItemSeqKey(patientID)).Result()
	if err != nil {
		return fmt.Errorf("failed to advance item sequence: %w", err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ItemsKey(patientID), item.ID, encoded)
		pipe.ZAdd(ctx, ItemOrderKey(patientID), redis.Z{
			Score:  float64(seq),
			Member: item.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write item to Redis: %w", err)
	}

	return c.touchRetention(ctx, patientID)
}

// GetItem retrieves a single item by ID. Returns ErrNotFound if absent.
func (c *Client) GetItem(ctx context.Context, patientID, itemID string) (*BoardItem, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	raw, err := c.rdb.HGet(ctx, ItemsKey(patientID), itemID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item from Redis: %w", err)
	}

	return DecodeItem(raw)
}

// ListItems returns every item on the patient's board in insertion order.
// An unknown patient yields an empty slice, never an error.
func (c *Client) ListItems(ctx context.Context, patientID string) ([]BoardItem, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	ids, err := c.rdb.ZRange(ctx, ItemOrderKey(patientID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item order: %w", err)
	}
	if len(ids) == 0 {
		return []BoardItem{}, nil
	}

	raws, err := c.rdb.HMGet(ctx, ItemsKey(patientID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read items from Redis: %w", err)
	}

	items := make([]BoardItem, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			// Order index can briefly lead the hash during concurrent
			// deletes; skip the hole rather than fail the listing.
			continue
		}
		item, err := DecodeItem(s)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// HasItems reports whether the patient's item namespace has been populated.
// Distinguishes "never cached" from "cached but empty" via the order key.
func (c *Client) HasItems(ctx context.Context, patientID string) (bool, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return false, err
	}
	n, err := c.rdb.Exists(ctx, ItemSeqKey(patientID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check item namespace: %w", err)
	}
	return n > 0, nil
}

// ReplaceItems atomically replaces the patient's item namespace with the
// given items, preserving slice order, and records the origin tag. Used by
// the fallback write-through path.
func (c *Client) ReplaceItems(ctx context.Context, patientID string, items []BoardItem, origin Origin) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := origin.Validate(); err != nil {
		return err
	}

	encoded := make(map[string]string, len(items))
	for i := range items {
		s, err := EncodeItem(&items[i])
		if err != nil {
			return err
		}
		encoded[items[i].ID] = s
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ItemsKey(patientID), ItemOrderKey(patientID), ItemSeqKey(patientID))
		for i := range items {
			pipe.HSet(ctx, ItemsKey(patientID), items[i].ID, encoded[items[i].ID])
			pipe.ZAdd(ctx, ItemOrderKey(patientID), redis.Z{
				Score:  float64(i + 1),
				Member: items[i].ID,
			})
		}
		pipe.Set(ctx, ItemSeqKey(patientID), len(items), 0)
		pipe.Set(ctx, OriginKey(patientID), string(origin), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace items: %w", err)
	}

	return c.touchRetention(ctx, patientID)
}

// DeleteItems removes items from the item hash, the order index and the
// position overlay. Missing IDs are ignored. Returns the number of items
// actually removed.
func (c *Client) DeleteItems(ctx context.Context, patientID string, itemIDs ...string) (int64, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return 0, err
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		members[i] = id
	}

	var removed *redis.IntCmd
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, ItemsKey(patientID), itemIDs...)
		pipe.ZRem(ctx, ItemOrderKey(patientID), members...)
		pipe.HDel(ctx, ZonePositionsKey(patientID), itemIDs...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}

	return removed.Val(), nil
}

// GetOrigin returns the provenance tag of the patient's item namespace, or
// empty when the namespace has only ever seen live writes.
func (c *Client) GetOrigin(ctx context.Context, patientID string) (Origin, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return "", err
	}
	raw, err := c.rdb.Get(ctx, OriginKey(patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read origin: %w", err)
	}
	return Origin(raw), nil
}

// SetOrigin records the provenance tag for the patient's item namespace.
func (c *Client) SetOrigin(ctx context.Context, patientID string, origin Origin) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := origin.Validate(); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, OriginKey(patientID), string(origin), 0).Err(); err != nil {
		return fmt.Errorf("failed to record origin: %w", err)
	}
	return nil
}

// MarkFresh arms the freshness marker: while it lives, reads serve the
// cache without re-attempting any fallback source. Independent of the
// retention TTL.
func (c *Client) MarkFresh(ctx context.Context, patientID string, origin Origin, ttl time.Duration) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, FreshnessKey(patientID), string(origin), ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark freshness: %w", err)
	}
	return nil
}

// Fresh reports whether the patient's fallback-sourced data is still
// within its freshness window.
func (c *Client) Fresh(ctx context.Context, patientID string) (bool, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return false, err
	}
	_, err = c.rdb.Get(ctx, FreshnessKey(patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read freshness marker: %w", err)
	}
	return true, nil
}

// ExpireFreshness drops the freshness marker so the next read re-runs the
// fallback chain. Used by forced reloads.
func (c *Client) ExpireFreshness(ctx context.Context, patientID string) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, FreshnessKey(patientID)).Err(); err != nil {
		return fmt.Errorf("failed to expire freshness marker: %w", err)
	}
	return nil
}

// SetSnapshot stores the raw payload a fallback source returned.
func (c *Client) SetSnapshot(ctx context.Context, patientID string, snap *Snapshot) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := snap.Origin.Validate(); err != nil {
		return err
	}

	hash := map[string]interface{}{
		"payload":       snap.Payload,
		"origin":        string(snap.Origin),
		"fetched_at_ms": snap.FetchedAtMs,
	}
	if err := c.rdb.HSet(ctx, SnapshotKey(patientID), hash).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return c.touchRetention(ctx, patientID)
}

// GetSnapshot returns the last raw source payload for the patient.
// Returns ErrNotFound if no snapshot has been captured.
func (c *Client) GetSnapshot(ctx context.Context, patientID string) (*Snapshot, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	hash, err := c.rdb.HGetAll(ctx, SnapshotKey(patientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(hash) == 0 {
		return nil, ErrNotFound
	}

	fetchedAt, _ := strconv.ParseInt(hash["fetched_at_ms"], 10, 64)
	return &Snapshot{
		Payload:     hash["payload"],
		Origin:      Origin(hash["origin"]),
		FetchedAtMs: fetchedAt,
	}, nil
}

// GetZoneConfig returns the patient-specific zone template JSON.
// Returns ErrNotFound when the patient has no template of their own.
func (c *Client) GetZoneConfig(ctx context.Context, patientID string) (string, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return "", err
	}
	raw, err := c.rdb.Get(ctx, ZoneConfigKey(patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read zone config: %w", err)
	}
	return raw, nil
}

// SetZoneConfig stores a patient-specific zone template JSON.
func (c *Client) SetZoneConfig(ctx context.Context, patientID, configJSON string) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, ZoneConfigKey(patientID), configJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to write zone config: %w", err)
	}
	return c.touchRetention(ctx, patientID)
}

// GetOverlay returns the patient's dynamic position overlay keyed by item
// ID. Empty map when no overrides exist.
func (c *Client) GetOverlay(ctx context.Context, patientID string) (map[string]ZonePosition, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}
	hash, err := c.rdb.HGetAll(ctx, ZonePositionsKey(patientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read position overlay: %w", err)
	}
	return DecodeOverlay(hash)
}

// SetOverlayPosition writes one dynamic override, last-write-wins by item.
func (c *Client) SetOverlayPosition(ctx context.Context, patientID string, pos *ZonePosition) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	encoded, err := EncodePosition(pos)
	if err != nil {
		return err
	}
	if err := c.rdb.HSet(ctx, ZonePositionsKey(patientID), pos.ItemID, encoded).Err(); err != nil {
		return fmt.Errorf("failed to write position override: %w", err)
	}
	return c.touchRetention(ctx, patientID)
}

// ReplaceOverlay fully replaces the dynamic overlay with the given
// positions. A bulk position sync replaces, never merges: the last full
// sync wins.
func (c *Client) ReplaceOverlay(ctx context.Context, patientID string, positions []ZonePosition) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}

	encoded := make(map[string]string, len(positions))
	for i := range positions {
		s, err := EncodePosition(&positions[i])
		if err != nil {
			return err
		}
		encoded[positions[i].ItemID] = s
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ZonePositionsKey(patientID))
		for itemID, raw := range encoded {
			pipe.HSet(ctx, ZonePositionsKey(patientID), itemID, raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace position overlay: %w", err)
	}

	return c.touchRetention(ctx, patientID)
}

// ClearPatient evicts every cache entry under the patient's keyspace -
// items, snapshot, zone config and zone positions - as one operation.
func (c *Client) ClearPatient(ctx context.Context, patientID string) error {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, PatientKeys(patientID)...).Err(); err != nil {
		return fmt.Errorf("failed to clear patient keyspace: %w", err)
	}
	return nil
}

// ClearAll evicts every board key on the server.
func (c *Client) ClearAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, AllKeysPattern, 0).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to clear board keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan board keys: %w", err)
	}
	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to clear board keys: %w", err)
		}
	}
	return nil
}

// CountEntries returns the number of board keys currently held.
func (c *Client) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	iter := c.rdb.Scan(ctx, 0, AllKeysPattern, 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan board keys: %w", err)
	}
	return count, nil
}

// PublishEvent delivers a board mutation event to every subscriber of the
// patient's channel. Events on one channel reach subscribers in publish
// order; there is no ordering guarantee across patients.
func (c *Client) PublishEvent(ctx context.Context, ev *Event) error {
	patientID, err := NormalizePatientID(ev.PatientID)
	if err != nil {
		return err
	}
	ev.PatientID = patientID

	encoded, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, EventsChannel(patientID), encoded).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}
	return nil
}

// touchRetention re-arms the retention TTL on every existing key in the
// patient's namespace. EXPIRE on a missing key is a no-op.
func (c *Client) touchRetention(ctx context.Context, patientID string) error {
	if c.retention == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range PatientKeys(patientID) {
			if key == FreshnessKey(patientID) {
				// Freshness carries its own shorter TTL.
				continue
			}
			pipe.Expire(ctx, key, c.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh retention TTL: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to one patient's
// board events. Caller must call Close() when done to release resources;
// there is no buffered backlog retained for a departed subscriber.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal
// (for example an unmarshalable payload); the subscription continues and
// the offending message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements
// io.Closer. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to board mutation events for one patient.
// Caller must call subscription.Close() when done. Context cancellation
// also stops the subscription.
//
// Events are delivered on a buffered channel (size 16). A subscriber that
// cannot keep up may miss events (at-most-once delivery); it should
// re-fetch the full board via ListItems rather than expect backfill.
func (c *Client) SubscribeEvents(ctx context.Context, patientID string) (*Subscription, error) {
	patientID, err := NormalizePatientID(patientID)
	if err != nil {
		return nil, err
	}

	pubsub := c.rdb.Subscribe(ctx, EventsChannel(patientID))

	eventsChan := make(chan *Event, 16)
	errorsChan := make(chan error, 16)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				ev, err := DecodeEvent(msg.Payload)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
