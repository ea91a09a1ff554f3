package admin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medforce/boardstate/internal/fallback"
	"github.com/medforce/boardstate/internal/store"
	"github.com/medforce/boardstate/internal/zones"
	"github.com/medforce/boardstate/pkg/board"
)

type countingResolver struct {
	mu    sync.Mutex
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context, patientID string) (*fallback.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	now := time.Now().UnixMilli()
	return &fallback.Resolution{
		Items: []board.BoardItem{{
			ID:          fmt.Sprintf("item-%d", r.calls),
			PatientID:   patientID,
			Type:        board.ItemTypeReport,
			CreatedAtMs: now,
			UpdatedAtMs: now,
		}},
		Origin: board.OriginExternalAPI,
	}, nil
}

func setupAdmin(t *testing.T) (*Admin, *store.Store, *countingResolver) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	resolver := &countingResolver{}
	st := store.New(client, resolver, zones.New(client), 300*time.Second, log)
	return New(st, log), st, resolver
}

func TestStats(t *testing.T) {
	a, st, _ := setupAdmin(t)
	ctx := context.Background()

	empty, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.EntryCount)
	assert.Zero(t, empty.HitRate)

	_, err = st.List(ctx, "PT-1") // miss
	require.NoError(t, err)
	_, err = st.List(ctx, "PT-1") // hit
	require.NoError(t, err)
	_, err = st.List(ctx, "PT-1") // hit
	require.NoError(t, err)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.EntryCount)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

func TestClearAll(t *testing.T) {
	a, st, _ := setupAdmin(t)
	ctx := context.Background()

	_, err := st.List(ctx, "PT-1")
	require.NoError(t, err)
	_, err = st.List(ctx, "PT-2")
	require.NoError(t, err)

	require.NoError(t, a.ClearAll(ctx))

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.EntryCount)
}

func TestReloadFromSource(t *testing.T) {
	a, st, resolver := setupAdmin(t)
	ctx := context.Background()

	items, err := st.List(ctx, "PT-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)

	// Reload ignores the still-valid freshness window.
	require.NoError(t, a.ReloadFromSource(ctx, "PT-1"))
	assert.Equal(t, 2, resolver.calls)

	items, err = st.List(ctx, "PT-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-2", items[0].ID)
}
