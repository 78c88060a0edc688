package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ronguha/hedge-fund-agent/internal/tracker"
)

type HealthHandler struct {
	Engine *tracker.Engine
}

type healthResponse struct {
	Status                string `json:"status"`
	Timestamp             string `json:"timestamp"`
	ScenariosCount        int    `json:"scenarios_count"`
	TrackedScenariosCount int    `json:"tracked_scenarios_count"`
}

func (h *HealthHandler) health(c echo.Context) error {
	ctx := c.Request().Context()
	scenarios, err := h.Engine.ListScenarios(ctx)
	if err != nil {
		return httpError(err)
	}
	tracked, err := h.Engine.List(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:                "healthy",
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		ScenariosCount:        len(scenarios),
		TrackedScenariosCount: len(tracked),
	})
}
