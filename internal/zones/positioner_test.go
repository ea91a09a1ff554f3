package zones

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medforce/boardstate/pkg/board"
)

func setupPositioner(t *testing.T) (*Positioner, *board.Client) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client), client
}

func putItem(t *testing.T, client *board.Client, patientID, id string) {
	t.Helper()
	now := time.Now().UnixMilli()
	require.NoError(t, client.PutItem(context.Background(), &board.BoardItem{
		ID:          id,
		PatientID:   patientID,
		Type:        board.ItemTypeReport,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}))
}

func TestTemplateFallsBackToDefault(t *testing.T) {
	p, _ := setupPositioner(t)
	ctx := context.Background()

	tmpl, err := p.Template(ctx, "PT-1")
	require.NoError(t, err)
	require.NotNil(t, tmpl.Zone("patient-report-zone"))
	require.NotNil(t, tmpl.Zone("dili-analysis-zone"))
	require.NotNil(t, tmpl.Zone("medico-legal-report-zone"))
	require.NotNil(t, tmpl.Zone("workboard-zone"))
	assert.Nil(t, tmpl.Zone("no-such-zone"))
}

func TestSetTemplate(t *testing.T) {
	p, _ := setupPositioner(t)
	ctx := context.Background()

	custom := &Template{
		Zones: []ZoneDef{{ID: "triage-zone", X: 100, Y: 200, StepX: 10, StepY: 10}},
	}
	require.NoError(t, p.SetTemplate(ctx, "PT-1", custom))

	tmpl, err := p.Template(ctx, "PT-1")
	require.NoError(t, err)
	require.NotNil(t, tmpl.Zone("triage-zone"))
	assert.Nil(t, tmpl.Zone("patient-report-zone"))

	// Other patients keep the default.
	tmpl, err = p.Template(ctx, "PT-2")
	require.NoError(t, err)
	assert.NotNil(t, tmpl.Zone("patient-report-zone"))

	t.Run("rejects invalid template", func(t *testing.T) {
		err := p.SetTemplate(ctx, "PT-1", &Template{
			Zones: []ZoneDef{{ID: "a"}, {ID: "a"}},
		})
		assert.Error(t, err)
	})
}

func TestPlaceCascades(t *testing.T) {
	p, _ := setupPositioner(t)
	ctx := context.Background()

	first, err := p.Place(ctx, "PT-1", "item-a", "dili-analysis-zone")
	require.NoError(t, err)
	assert.Equal(t, 1600.0, first.X)
	assert.Equal(t, 0.0, first.Y)
	assert.Equal(t, 0, first.Order)

	second, err := p.Place(ctx, "PT-1", "item-b", "dili-analysis-zone")
	require.NoError(t, err)
	assert.Equal(t, 1640.0, second.X)
	assert.Equal(t, 40.0, second.Y)
	assert.Equal(t, 1, second.Order)

	t.Run("re-placing the same item does not advance the slot", func(t *testing.T) {
		again, err := p.Place(ctx, "PT-1", "item-a", "dili-analysis-zone")
		require.NoError(t, err)
		assert.Equal(t, 1, again.Order)
	})

	t.Run("unknown zone rejected", func(t *testing.T) {
		_, err := p.Place(ctx, "PT-1", "item-c", "no-such-zone")
		assert.Error(t, err)
	})

	t.Run("empty item ID rejected", func(t *testing.T) {
		_, err := p.Place(ctx, "PT-1", "", "dili-analysis-zone")
		assert.Error(t, err)
	})
}

func TestMerged(t *testing.T) {
	p, client := setupPositioner(t)
	ctx := context.Background()

	staticPos := board.ZonePosition{ItemID: "item-static", ZoneID: "patient-report-zone", X: 10, Y: 20}
	tmpl := DefaultTemplate()
	tmpl.Static = map[string]board.ZonePosition{"item-static": staticPos}
	require.NoError(t, p.SetTemplate(ctx, "PT-1", tmpl))

	putItem(t, client, "PT-1", "item-static")
	putItem(t, client, "PT-1", "item-override-only")
	putItem(t, client, "PT-1", "item-floating")

	require.NoError(t, client.SetOverlayPosition(ctx, "PT-1", &board.ZonePosition{
		ItemID: "item-override-only", ZoneID: "workboard-zone", X: 5, Y: 5,
	}))

	layout, err := p.Merged(ctx, "PT-1")
	require.NoError(t, err)

	t.Run("static-only item keeps template position", func(t *testing.T) {
		assert.Equal(t, staticPos, layout.Positions["item-static"])
	})

	t.Run("override without static default still resolves", func(t *testing.T) {
		pos, ok := layout.Positions["item-override-only"]
		require.True(t, ok)
		assert.Equal(t, "workboard-zone", pos.ZoneID)
	})

	t.Run("item with neither is reported unplaced", func(t *testing.T) {
		assert.Equal(t, []string{"item-floating"}, layout.Unplaced)
	})

	t.Run("override wins over static for the same item", func(t *testing.T) {
		require.NoError(t, client.SetOverlayPosition(ctx, "PT-1", &board.ZonePosition{
			ItemID: "item-static", ZoneID: "dili-analysis-zone", X: 1600, Y: 0,
		}))

		layout, err := p.Merged(ctx, "PT-1")
		require.NoError(t, err)
		assert.Equal(t, "dili-analysis-zone", layout.Positions["item-static"].ZoneID)
	})
}

func TestSyncReplacesNotMerges(t *testing.T) {
	p, client := setupPositioner(t)
	ctx := context.Background()

	require.NoError(t, p.Sync(ctx, "PT-1", []board.ZonePosition{
		{ItemID: "item-a", ZoneID: "patient-report-zone", X: 0, Y: 0},
		{ItemID: "item-b", ZoneID: "patient-report-zone", X: 0, Y: 40},
	}))

	require.NoError(t, p.Sync(ctx, "PT-1", []board.ZonePosition{
		{ItemID: "item-b", ZoneID: "workboard-zone", X: 0, Y: 1600},
	}))

	overlay, err := client.GetOverlay(ctx, "PT-1")
	require.NoError(t, err)
	require.Len(t, overlay, 1)
	assert.Equal(t, "workboard-zone", overlay["item-b"].ZoneID)

	t.Run("rejects duplicate item IDs", func(t *testing.T) {
		err := p.Sync(ctx, "PT-1", []board.ZonePosition{
			{ItemID: "item-a", ZoneID: "patient-report-zone"},
			{ItemID: "item-a", ZoneID: "workboard-zone"},
		})
		assert.Error(t, err)
	})

	t.Run("rejects invalid position", func(t *testing.T) {
		err := p.Sync(ctx, "PT-1", []board.ZonePosition{
			{ItemID: "", ZoneID: "patient-report-zone"},
		})
		assert.Error(t, err)
	})

	t.Run("empty sync clears the overlay", func(t *testing.T) {
		require.NoError(t, p.Sync(ctx, "PT-1", nil))
		overlay, err := client.GetOverlay(ctx, "PT-1")
		require.NoError(t, err)
		assert.Empty(t, overlay)
	})
}
