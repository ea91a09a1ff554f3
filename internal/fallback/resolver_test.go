package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medforce/boardstate/pkg/board"
)

// stubSource is a scripted fallback tier.
type stubSource struct {
	origin board.Origin
	res    *Result
	err    error
	calls  int
}

func (s *stubSource) Origin() board.Origin { return s.origin }

func (s *stubSource) Fetch(ctx context.Context, patientID string) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func stubItem(id string) board.BoardItem {
	now := time.Now().UnixMilli()
	return board.BoardItem{
		ID:          id,
		PatientID:   "PT-1",
		Type:        board.ItemTypeReport,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
}

func TestResolverOrder(t *testing.T) {
	t.Run("first source wins, later sources untouched", func(t *testing.T) {
		api := &stubSource{origin: board.OriginExternalAPI, res: &Result{Items: []board.BoardItem{stubItem("from-api")}}}
		file := &stubSource{origin: board.OriginStaticFile, res: &Result{Items: []board.BoardItem{stubItem("from-file")}}}

		r := NewResolver(quietLogger(), api, file)
		res, err := r.Resolve(context.Background(), "PT-1")
		require.NoError(t, err)
		assert.Equal(t, board.OriginExternalAPI, res.Origin)
		assert.Equal(t, "from-api", res.Items[0].ID)
		assert.Zero(t, file.calls)
	})

	t.Run("failed source falls through to the next", func(t *testing.T) {
		api := &stubSource{origin: board.OriginExternalAPI, err: errors.New("connection refused")}
		file := &stubSource{origin: board.OriginStaticFile, res: &Result{Items: []board.BoardItem{stubItem("from-file")}}}

		r := NewResolver(quietLogger(), api, file)
		res, err := r.Resolve(context.Background(), "PT-1")
		require.NoError(t, err)
		assert.Equal(t, board.OriginStaticFile, res.Origin)
		assert.Equal(t, 1, api.calls)
	})

	t.Run("timed-out source falls through", func(t *testing.T) {
		api := &stubSource{origin: board.OriginExternalAPI, err: board.ErrTimeout}
		file := &stubSource{origin: board.OriginStaticFile, res: &Result{}}

		r := NewResolver(quietLogger(), api, file)
		res, err := r.Resolve(context.Background(), "PT-1")
		require.NoError(t, err)
		assert.Equal(t, board.OriginStaticFile, res.Origin)
	})
}

func TestResolverAllFail(t *testing.T) {
	api := &stubSource{origin: board.OriginExternalAPI, err: board.ErrTimeout}
	file := &stubSource{origin: board.OriginStaticFile, err: errors.New("no such file")}

	r := NewResolver(quietLogger(), api, file)
	_, err := r.Resolve(context.Background(), "PT-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, board.ErrSourceUnavailable)

	// Both tiers' failures are carried for diagnostics.
	assert.ErrorIs(t, err, board.ErrTimeout)
	assert.Contains(t, err.Error(), "no such file")
}

func TestResolverNoSources(t *testing.T) {
	r := NewResolver(quietLogger())
	_, err := r.Resolve(context.Background(), "PT-1")
	assert.ErrorIs(t, err, board.ErrSourceUnavailable)
}

func TestResolverInvalidPatient(t *testing.T) {
	r := NewResolver(quietLogger(), &stubSource{origin: board.OriginExternalAPI, res: &Result{}})
	_, err := r.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, board.ErrInvalidPatient)
}
