package fallback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medforce/boardstate/pkg/board"
)

func TestAPISourceFetch(t *testing.T) {
	t.Run("fetches and parses a board", func(t *testing.T) {
		var requestedPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items":[{"id":"item-1","type":"lab-result","createdAtMs":1700000000000}]}`))
		}))
		defer srv.Close()

		src := NewAPISource(srv.URL, 5*time.Second)
		res, err := src.Fetch(context.Background(), "PT-1")
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "item-1", res.Items[0].ID)
		assert.NotEmpty(t, res.Raw)

		// The API addresses patients by lowercased ID.
		assert.Equal(t, "/api/board-items/patient/pt-1", requestedPath)
	})

	t.Run("slow API reports timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		src := NewAPISource(srv.URL, 50*time.Millisecond)
		start := time.Now()
		_, err := src.Fetch(context.Background(), "PT-1")
		assert.ErrorIs(t, err, board.ErrTimeout)
		assert.Less(t, time.Since(start), time.Second, "fetch must be abandoned at the deadline")
	})

	t.Run("non-200 is a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		src := NewAPISource(srv.URL, 5*time.Second)
		_, err := src.Fetch(context.Background(), "PT-1")
		assert.Error(t, err)
	})

	t.Run("unreachable API is a failure", func(t *testing.T) {
		src := NewAPISource("http://127.0.0.1:1", 2*time.Second)
		_, err := src.Fetch(context.Background(), "PT-1")
		assert.Error(t, err)
	})

	t.Run("origin tag", func(t *testing.T) {
		src := NewAPISource("http://example.com", time.Second)
		assert.Equal(t, board.OriginExternalAPI, src.Origin())
	})
}
