package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ronguha/hedge-fund-agent/internal/tracker"
	"github.com/ronguha/hedge-fund-agent/models"
)

type TrackingHandler struct {
	Engine *tracker.Engine
}

func (h *TrackingHandler) Register(g *echo.Group) {
	g.POST("/start", h.start)
	g.GET("", h.list)
	g.GET("/:scenario_id/:play_id", h.get)
	g.POST("/:scenario_id/:play_id/refresh", h.refresh)
	g.DELETE("/:scenario_id/:play_id", h.stop)
}

func (h *TrackingHandler) start(c echo.Context) error {
	var req struct {
		ScenarioID string `json:"scenario_id"`
		PlayID     string `json:"play_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScenarioID == "" || req.PlayID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scenario_id and play_id required")
	}
	tracked, err := h.Engine.Start(c.Request().Context(), req.ScenarioID, req.PlayID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tracked)
}

func (h *TrackingHandler) list(c echo.Context) error {
	entries, err := h.Engine.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if entries == nil {
		entries = []models.TrackedScenario{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *TrackingHandler) get(c echo.Context) error {
	key := paramKey(c)
	tracked, err := h.Engine.Get(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tracked)
}

func (h *TrackingHandler) refresh(c echo.Context) error {
	key := paramKey(c)
	tracked, err := h.Engine.Refresh(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tracked)
}

func (h *TrackingHandler) stop(c echo.Context) error {
	key := paramKey(c)
	if err := h.Engine.Stop(c.Request().Context(), key); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopped"})
}

func paramKey(c echo.Context) models.TrackingKey {
	return models.TrackingKey{
		ScenarioID: c.Param("scenario_id"),
		PlayID:     c.Param("play_id"),
	}
}
