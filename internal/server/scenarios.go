package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ronguha/hedge-fund-agent/internal/tracker"
	"github.com/ronguha/hedge-fund-agent/models"
)

type ScenariosHandler struct {
	Engine *tracker.Engine
}

func (h *ScenariosHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *ScenariosHandler) create(c echo.Context) error {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Description) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description required")
	}
	scenario, err := h.Engine.CreateScenario(c.Request().Context(), req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, scenario)
}

func (h *ScenariosHandler) list(c echo.Context) error {
	scenarios, err := h.Engine.ListScenarios(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if scenarios == nil {
		scenarios = []models.Scenario{}
	}
	return c.JSON(http.StatusOK, scenarios)
}

func (h *ScenariosHandler) get(c echo.Context) error {
	scenario, err := h.Engine.GetScenario(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, scenario)
}
