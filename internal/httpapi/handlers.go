// Package httpapi wires the board state subsystem to its HTTP surface:
// JSON endpoints for board mutations and a per-patient SSE stream for
// real-time mutation events. Payloads are validated for required shape
// only; content stays opaque.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/internal/admin"
	"github.com/medforce/boardstate/internal/store"
	"github.com/medforce/boardstate/internal/todo"
	"github.com/medforce/boardstate/pkg/board"
)

// API bundles the components the handlers dispatch to.
type API struct {
	Store *store.Store
	Todos *todo.Indexer
	Admin *admin.Admin
	Log   *logrus.Logger
}

// Register wires every board endpoint onto the Echo instance.
func Register(e *echo.Echo, api *API) {
	if api.Log == nil {
		api.Log = logrus.StandardLogger()
	}

	e.GET("/health", api.health)

	e.GET("/api/board-items/:patientId", api.listItems)
	e.GET("/api/board-items/:patientId/:itemId", api.getItem)
	e.POST("/api/board-items", api.createItem)
	e.PATCH("/api/board-items/:patientId/:itemId", api.updateItem)
	e.DELETE("/api/board-items/:patientId/:itemId", api.deleteItem)
	e.POST("/api/board-items/:patientId/batch-delete", api.batchDelete)

	e.POST("/api/update-todo-status", api.updateTodoStatus)

	e.GET("/api/layout/:patientId", api.layout)
	e.POST("/api/sync-positions", api.syncPositions)

	e.POST("/api/focus", api.focus)
	e.POST("/api/notifications", api.notify)

	e.GET("/api/stream/:patientId", api.stream)

	e.GET("/api/admin/stats", api.stats)
	e.POST("/api/admin/clear", api.clearAll)
	e.POST("/api/admin/clear/:patientId", api.clearPatient)
	e.POST("/api/admin/reload/:patientId", api.reload)
}

func (a *API) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "service": "boardstate"})
}

func (a *API) listItems(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := c.Param("patientId")

	items, err := a.Store.List(ctx, patientID)
	if err != nil {
		return a.fail(c, err)
	}
	origin, err := a.Store.Origin(ctx, patientID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"patientId": patientID,
		"items":     items,
		"count":     len(items),
		"origin":    origin,
	})
}

func (a *API) getItem(c echo.Context) error {
	item, err := a.Store.Get(c.Request().Context(), c.Param("patientId"), c.Param("itemId"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

type createRequest struct {
	PatientID string           `json:"patientId"`
	Type      board.ItemType   `json:"type"`
	Title     string           `json:"title"`
	Zone      string           `json:"zone"`
	Content   map[string]any   `json:"content"`
	Tasks     []board.TodoTask `json:"tasks"`
}

func (a *API) createItem(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := a.Store.Create(c.Request().Context(), req.PatientID, &board.BoardItem{
		Type:    req.Type,
		Title:   req.Title,
		Zone:    req.Zone,
		Content: req.Content,
		Tasks:   req.Tasks,
	})
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"status": "success", "item": item})
}

func (a *API) updateItem(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := a.Store.Update(c.Request().Context(), c.Param("patientId"), c.Param("itemId"), fields)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "item": item})
}

func (a *API) deleteItem(c echo.Context) error {
	if err := a.Store.Delete(c.Request().Context(), c.Param("patientId"), c.Param("itemId")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) batchDelete(c echo.Context) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := a.Store.BatchDelete(c.Request().Context(), c.Param("patientId"), req.IDs); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "deleted": req.IDs})
}

type todoStatusRequest struct {
	PatientID string           `json:"patientId"`
	ItemID    string           `json:"itemId"`
	Index     *int             `json:"index"`
	Status    board.TaskStatus `json:"status"`
}

func (a *API) updateTodoStatus(c echo.Context) error {
	var req todoStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Index == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index is required")
	}

	item, err := a.Todos.UpdateStatus(c.Request().Context(), req.PatientID, req.ItemID, *req.Index, req.Status)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "item": item})
}

func (a *API) layout(c echo.Context) error {
	layout, err := a.Store.Positioner().Merged(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, layout)
}

type syncRequest struct {
	PatientID string               `json:"patientId"`
	Positions []board.ZonePosition `json:"positions"`
}

func (a *API) syncPositions(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := a.Store.Positioner().Sync(c.Request().Context(), req.PatientID, req.Positions); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "count": len(req.Positions)})
}

type focusRequest struct {
	PatientID    string `json:"patientId"`
	ObjectID     string `json:"objectId"`
	FocusOptions struct {
		Zoom float64 `json:"zoom"`
	} `json:"focusOptions"`
}

func (a *API) focus(c echo.Context) error {
	var req focusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ObjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "objectId is required")
	}
	if err := a.Store.RequestFocus(c.Request().Context(), req.PatientID, req.ObjectID, req.FocusOptions.Zoom); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) notify(c echo.Context) error {
	var req struct {
		PatientID string `json:"patientId"`
		Message   string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if err := a.Store.Notify(c.Request().Context(), req.PatientID, req.Message); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) stats(c echo.Context) error {
	st, err := a.Admin.Stats(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (a *API) clearAll(c echo.Context) error {
	if err := a.Admin.ClearAll(c.Request().Context()); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) clearPatient(c echo.Context) error {
	if err := a.Admin.ClearPatient(c.Request().Context(), c.Param("patientId")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

func (a *API) reload(c echo.Context) error {
	if err := a.Admin.ReloadFromSource(c.Request().Context(), c.Param("patientId")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// fail maps the board error taxonomy onto HTTP statuses. A source-level
// failure is reported as "no-data" so callers can tell "patient has
// nothing yet" from "we could not determine".
func (a *API) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, board.ErrInvalidPatient),
		errors.Is(err, board.ErrIndexOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case board.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrSourceUnavailable),
		errors.Is(err, board.ErrTimeout):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "no-data",
			"error":  err.Error(),
		})
	default:
		a.Log.WithError(err).Error("request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
