package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHealthReportsCounts(t *testing.T) {
	e := echo.New()
	_, th, st := newTestHandlers(&fakeOracle{}, &fakeAggregator{})
	hh := &HealthHandler{Engine: th.Engine}
	seedTrackedScenario(t, st)

	req := httptest.NewRequest(http.MethodPost, "/tracking/start", strings.NewReader(`{"scenario_id":"scn-1","play_id":"play-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if err := th.start(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("start: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := hh.health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.ScenariosCount != 1 || resp.TrackedScenariosCount != 1 {
		t.Fatalf("counts wrong: scenarios=%d tracked=%d", resp.ScenariosCount, resp.TrackedScenariosCount)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", resp.Timestamp)
	}
}

func TestHealthEmptyState(t *testing.T) {
	e := echo.New()
	_, th, _ := newTestHandlers(&fakeOracle{}, &fakeAggregator{})
	hh := &HealthHandler{Engine: th.Engine}

	rec := httptest.NewRecorder()
	if err := hh.health(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)); err != nil {
		t.Fatalf("health: %v", err)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ScenariosCount != 0 || resp.TrackedScenariosCount != 0 {
		t.Fatalf("expected zero counts, got %+v", resp)
	}
}
