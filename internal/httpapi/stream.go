package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// stream serves the per-patient SSE feed. Each board mutation event is
// written as one `data:` frame in publish order. The subscription ends
// with the request: no backlog is kept for a departed viewer, and a
// reconnecting client is expected to re-fetch the full board first.
func (a *API) stream(c echo.Context) error {
	patientID := c.Param("patientId")
	ctx := c.Request().Context()

	sub, err := a.Store.Client().SubscribeEvents(ctx, patientID)
	if err != nil {
		return a.fail(c, err)
	}
	defer sub.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	// Opening comment so the client sees the stream is live before the
	// first event arrives.
	if _, err := c.Response().Write([]byte(": connected\n\n")); err != nil {
		return err
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			a.Log.WithField("patient", patientID).WithError(err).Warn("dropping undecodable event")
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				a.Log.WithError(err).Error("failed to encode event")
				continue
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
