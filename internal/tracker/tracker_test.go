package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/store"
	"github.com/ronguha/hedge-fund-agent/models"
)

type stubAggregator struct {
	mu      sync.Mutex
	batches [][]models.NewsArticle
	calls   int
	err     error
}

func (s *stubAggregator) Aggregate(ctx context.Context, description string, instruments []string) ([]models.NewsArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	s.calls++
	if len(s.batches) == 0 {
		return nil, nil
	}
	if idx >= len(s.batches) {
		idx = len(s.batches) - 1
	}
	return s.batches[idx], nil
}

type stubOracle struct {
	analysis   models.ScenarioAnalysis
	analyzeErr error
	verdict    models.PlayVerdict
	evalErr    error
	drafts     []models.AlertDraft
	alertsErr  error
}

func (s *stubOracle) AnalyzeScenario(ctx context.Context, description string) (models.ScenarioAnalysis, error) {
	return s.analysis, s.analyzeErr
}

func (s *stubOracle) EvaluatePlay(ctx context.Context, play models.Play, articles []models.NewsArticle) (models.PlayVerdict, error) {
	return s.verdict, s.evalErr
}

func (s *stubOracle) GenerateAlerts(ctx context.Context, interpretedScenario string, play models.Play, articles []models.NewsArticle) ([]models.AlertDraft, error) {
	return s.drafts, s.alertsErr
}

func article(url string, score float64) models.NewsArticle {
	return models.NewsArticle{
		Title:          "headline for " + url,
		URL:            url,
		Source:         "TestWire",
		PublishedAt:    time.Now().UTC(),
		RelevanceScore: score,
	}
}

func seedScenario(t *testing.T, st store.Store) models.Scenario {
	t.Helper()
	scenario := models.Scenario{
		ID:                  "scn-1",
		Description:         "oil supply shock from refinery outages",
		InterpretedScenario: "a sustained crude supply disruption",
		Plays: []models.Play{
			{ID: "play-1", AssetClass: models.AssetClassCommodity, Title: "Long crude futures", Instruments: []string{"CL", "USO"}, ConfidenceScore: 0.7},
			{ID: "play-2", AssetClass: models.AssetClassEquity, Title: "Long refiners", Instruments: []string{"VLO"}, ConfidenceScore: 0.55},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := st.SaveScenario(context.Background(), scenario); err != nil {
		t.Fatalf("seed scenario: %v", err)
	}
	return scenario
}

func newTestEngine(st store.Store, agg *stubAggregator, oracle *stubOracle) *Engine {
	cfg := config.TrackingConfig{OperationTimeout: 10 * time.Second}
	return NewEngine(cfg, st, agg, oracle)
}

func TestStartInitialState(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{{article("https://a", 0.9), article("https://b", 0.4)}}}
	oracle := &stubOracle{drafts: []models.AlertDraft{
		{Message: "supply disruption confirmed", Severity: models.SeverityWarning},
		{Message: "inventories drawing down", Severity: models.SeverityInfo},
	}}
	eng := newTestEngine(st, agg, oracle)

	tracked, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(tracked.NewsArticles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(tracked.NewsArticles))
	}
	if len(tracked.Alerts) != 2 {
		t.Fatalf("expected 2 initial alerts, got %d", len(tracked.Alerts))
	}
	if len(tracked.PlayUpdates) != 0 {
		t.Fatalf("expected empty play updates, got %v", tracked.PlayUpdates)
	}
	if tracked.LastUpdated.IsZero() {
		t.Fatal("last_updated not set")
	}
	for _, a := range tracked.Alerts {
		if a.ID == "" || a.ScenarioID != "scn-1" || a.PlayID != "play-1" {
			t.Fatalf("alert not addressed to the tracked pair: %+v", a)
		}
	}

	scenario, err := st.GetScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("GetScenario: %v", err)
	}
	if !scenario.IsTracking {
		t.Fatal("scenario is_tracking flag not set after Start")
	}
}

func TestStartUnknownScenarioAndPlay(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{})

	if _, err := eng.Start(context.Background(), "missing", "play-1"); !errors.Is(err, models.ErrScenarioNotFound) {
		t.Fatalf("expected ErrScenarioNotFound, got %v", err)
	}
	if _, err := eng.Start(context.Background(), "scn-1", "missing"); !errors.Is(err, models.ErrPlayNotFound) {
		t.Fatalf("expected ErrPlayNotFound, got %v", err)
	}
	if entries, _ := st.ListTracked(context.Background()); len(entries) != 0 {
		t.Fatalf("failed Start left tracked entries behind: %d", len(entries))
	}
	scenario, _ := st.GetScenario(context.Background(), "scn-1")
	if scenario.IsTracking {
		t.Fatal("failed Start flipped is_tracking")
	}
}

func TestStartAlreadyTracking(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{})

	if _, err := eng.Start(context.Background(), "scn-1", "play-1"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := eng.Start(context.Background(), "scn-1", "play-1"); !errors.Is(err, models.ErrAlreadyTracking) {
		t.Fatalf("expected ErrAlreadyTracking, got %v", err)
	}
}

func TestStartAlertFailureIsSoft(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{{article("https://a", 0.9)}}}
	oracle := &stubOracle{alertsErr: errors.New("oracle down")}
	eng := newTestEngine(st, agg, oracle)

	tracked, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start should survive alert failure: %v", err)
	}
	if len(tracked.Alerts) != 0 {
		t.Fatalf("expected zero alerts after oracle failure, got %d", len(tracked.Alerts))
	}
	if len(tracked.NewsArticles) != 1 {
		t.Fatalf("news snapshot lost: %d", len(tracked.NewsArticles))
	}
}

func TestStartAggregationFailureLeavesNoState(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{err: errors.New("upstream timeout")}, &stubOracle{})

	if _, err := eng.Start(context.Background(), "scn-1", "play-1"); err == nil {
		t.Fatal("expected error from failed aggregation")
	}
	if entries, _ := st.ListTracked(context.Background()); len(entries) != 0 {
		t.Fatalf("partial tracked state committed: %d entries", len(entries))
	}
	scenario, _ := st.GetScenario(context.Background(), "scn-1")
	if scenario.IsTracking {
		t.Fatal("is_tracking set despite failed Start")
	}
}

func TestRefreshWithoutModification(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{
		{article("https://a", 0.9)},
		{}, // refresh pass comes back empty
	}}
	oracle := &stubOracle{verdict: models.PlayVerdict{ShouldModify: false}}
	eng := newTestEngine(st, agg, oracle)

	started, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := started.LastUpdated
	time.Sleep(5 * time.Millisecond)

	refreshed, err := eng.Refresh(context.Background(), started.Key())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Play.ConfidenceScore != 0.7 {
		t.Fatalf("confidence changed without a verdict: %v", refreshed.Play.ConfidenceScore)
	}
	if len(refreshed.PlayUpdates) != 0 {
		t.Fatalf("play updates appended without modification: %v", refreshed.PlayUpdates)
	}
	if !refreshed.LastUpdated.After(before) {
		t.Fatal("last_updated did not advance on a no-op refresh")
	}
	if len(refreshed.NewsArticles) != 0 {
		t.Fatalf("empty snapshot should replace the old one, got %d articles", len(refreshed.NewsArticles))
	}
}

func TestRefreshAppliesModification(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{{article("https://a", 0.9)}}}
	oracle := &stubOracle{verdict: models.PlayVerdict{
		ShouldModify:           true,
		Modifications:          "tighten stop to $72 after inventory surprise",
		UpdatedConfidenceScore: 1.7,
	}}
	eng := newTestEngine(st, agg, oracle)

	started, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	refreshed, err := eng.Refresh(context.Background(), started.Key())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Play.ConfidenceScore != 1.0 {
		t.Fatalf("confidence not clamped to 1, got %v", refreshed.Play.ConfidenceScore)
	}
	if len(refreshed.PlayUpdates) != 1 {
		t.Fatalf("expected one play update, got %v", refreshed.PlayUpdates)
	}
	if !strings.Contains(refreshed.PlayUpdates[0], "tighten stop to $72") {
		t.Fatalf("play update missing modification text: %q", refreshed.PlayUpdates[0])
	}
	if !strings.HasPrefix(refreshed.PlayUpdates[0], "[") {
		t.Fatalf("play update missing timestamp prefix: %q", refreshed.PlayUpdates[0])
	}
	embedded, ok := refreshed.Scenario.PlayByID("play-1")
	if !ok || embedded.ConfidenceScore != 1.0 {
		t.Fatalf("embedded scenario play out of sync: %+v", embedded)
	}
}

func TestRefreshOracleFailuresAreSoft(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{{article("https://a", 0.9)}}}
	eng := newTestEngine(st, agg, &stubOracle{})

	started, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := started.LastUpdated
	time.Sleep(5 * time.Millisecond)

	// Both oracle passes fail; the refresh still commits a fresh snapshot.
	brokenOracle := &stubOracle{evalErr: errors.New("oracle down"), alertsErr: errors.New("oracle down")}
	eng.oracle = brokenOracle

	refreshed, err := eng.Refresh(context.Background(), started.Key())
	if err != nil {
		t.Fatalf("Refresh should survive oracle failures: %v", err)
	}
	if len(refreshed.Alerts) != len(started.Alerts) {
		t.Fatalf("alerts changed despite failed generation: %d -> %d", len(started.Alerts), len(refreshed.Alerts))
	}
	if len(refreshed.PlayUpdates) != 0 {
		t.Fatalf("play updates appended despite failed evaluation: %v", refreshed.PlayUpdates)
	}
	if !refreshed.LastUpdated.After(before) {
		t.Fatal("last_updated did not advance")
	}
}

func TestRefreshUnknownKey(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{})

	key := models.TrackingKey{ScenarioID: "scn-1", PlayID: "play-1"}
	if _, err := eng.Refresh(context.Background(), key); !errors.Is(err, models.ErrNotTracked) {
		t.Fatalf("expected ErrNotTracked, got %v", err)
	}
}

func TestConcurrentRefreshesAppendAllAlerts(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	agg := &stubAggregator{batches: [][]models.NewsArticle{{article("https://a", 0.9)}}}
	oracle := &stubOracle{drafts: []models.AlertDraft{{Message: "fresh headline", Severity: models.SeverityInfo}}}
	eng := newTestEngine(st, agg, oracle)

	started, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := len(started.Alerts)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Refresh(context.Background(), started.Key()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Refresh: %v", err)
	}

	final, err := eng.Get(context.Background(), started.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(final.Alerts) != base+2 {
		t.Fatalf("expected %d alerts after two refreshes, got %d", base+2, len(final.Alerts))
	}
}

func TestStopIdempotence(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{})

	started, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Stop(context.Background(), started.Key()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := eng.Stop(context.Background(), started.Key()); !errors.Is(err, models.ErrNotTracked) {
		t.Fatalf("second Stop should be NotFound, got %v", err)
	}
	scenario, _ := st.GetScenario(context.Background(), "scn-1")
	if scenario.IsTracking {
		t.Fatal("is_tracking still set after final Stop")
	}
}

func TestStopKeepsFlagWhileOtherPlayLive(t *testing.T) {
	st := store.NewMemoryStore()
	seedScenario(t, st)
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{})

	first, err := eng.Start(context.Background(), "scn-1", "play-1")
	if err != nil {
		t.Fatalf("Start play-1: %v", err)
	}
	second, err := eng.Start(context.Background(), "scn-1", "play-2")
	if err != nil {
		t.Fatalf("Start play-2: %v", err)
	}

	if err := eng.Stop(context.Background(), first.Key()); err != nil {
		t.Fatalf("Stop play-1: %v", err)
	}
	scenario, _ := st.GetScenario(context.Background(), "scn-1")
	if !scenario.IsTracking {
		t.Fatal("is_tracking cleared while play-2 is still live")
	}

	if err := eng.Stop(context.Background(), second.Key()); err != nil {
		t.Fatalf("Stop play-2: %v", err)
	}
	scenario, _ = st.GetScenario(context.Background(), "scn-1")
	if scenario.IsTracking {
		t.Fatal("is_tracking still set with no live plays")
	}
}

func TestCreateScenarioAssignsIDsAndClamps(t *testing.T) {
	st := store.NewMemoryStore()
	oracle := &stubOracle{analysis: models.ScenarioAnalysis{
		InterpretedScenario: "a sustained crude supply disruption",
		Plays: []models.PlayDraft{
			{AssetClass: "commodity", Title: "Long crude", ConfidenceScore: 1.4},
			{AssetClass: "equity", Title: "Long refiners", ConfidenceScore: -0.2},
			{AssetClass: "fixed_income", Title: "Short duration", ConfidenceScore: 0.6},
		},
	}}
	eng := newTestEngine(st, &stubAggregator{}, oracle)

	scenario, err := eng.CreateScenario(context.Background(), "oil supply shock")
	if err != nil {
		t.Fatalf("CreateScenario: %v", err)
	}
	if scenario.ID == "" {
		t.Fatal("scenario id not assigned")
	}
	if scenario.IsTracking {
		t.Fatal("new scenario must start untracked")
	}
	if len(scenario.Plays) != 3 {
		t.Fatalf("expected 3 plays, got %d", len(scenario.Plays))
	}
	want := []float64{1.0, 0.0, 0.6}
	for i, p := range scenario.Plays {
		if p.ID == "" {
			t.Fatalf("play %d id not assigned", i)
		}
		if p.ConfidenceScore != want[i] {
			t.Fatalf("play %d confidence not clamped: got %v want %v", i, p.ConfidenceScore, want[i])
		}
	}

	stored, err := st.GetScenario(context.Background(), scenario.ID)
	if err != nil {
		t.Fatalf("scenario not persisted: %v", err)
	}
	if stored.InterpretedScenario != "a sustained crude supply disruption" {
		t.Fatalf("interpreted scenario lost: %q", stored.InterpretedScenario)
	}
}

func TestCreateScenarioOracleFailure(t *testing.T) {
	st := store.NewMemoryStore()
	eng := newTestEngine(st, &stubAggregator{}, &stubOracle{analyzeErr: errors.New("oracle down")})

	if _, err := eng.CreateScenario(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from failed analysis")
	}
	if scenarios, _ := st.ListScenarios(context.Background()); len(scenarios) != 0 {
		t.Fatalf("failed creation persisted scenarios: %d", len(scenarios))
	}
}
