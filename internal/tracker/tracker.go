package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/store"
	"github.com/ronguha/hedge-fund-agent/internal/telemetry"
	"github.com/ronguha/hedge-fund-agent/models"
	"github.com/ronguha/hedge-fund-agent/provider"
)

// NewsAggregator is the slice of the news layer the engine needs: one ranked,
// bounded snapshot per call.
type NewsAggregator interface {
	Aggregate(ctx context.Context, description string, instruments []string) ([]models.NewsArticle, error)
}

// Engine owns the tracking lifecycle for (scenario, play) pairs: Start begins
// tracking, Refresh folds a fresh news snapshot and oracle verdicts into the
// entry, Stop removes it. All mutations of one key are serialized through a
// per-key lock, so concurrent refreshes interleave instead of clobbering the
// append-only alert and play-update logs.
type Engine struct {
	store     store.Store
	news      NewsAggregator
	oracle    provider.Provider
	locks     *keyLocks
	opTimeout time.Duration
	logger    *log.Logger
}

func NewEngine(cfg config.TrackingConfig, st store.Store, agg NewsAggregator, oracle provider.Provider) *Engine {
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		store:     st,
		news:      agg,
		oracle:    oracle,
		locks:     newKeyLocks(),
		opTimeout: timeout,
		logger:    log.New(log.Writer(), "[TRACKER] ", log.LstdFlags),
	}
}

// CreateScenario runs the oracle's interpretation over a raw scenario
// description and persists the resulting scenario with ids assigned and
// confidence scores clamped. New scenarios always begin untracked.
func (e *Engine) CreateScenario(ctx context.Context, description string) (models.Scenario, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	analysis, err := e.oracle.AnalyzeScenario(ctx, description)
	telemetry.ObserveOracleCall("analyze_scenario", err)
	if err != nil {
		return models.Scenario{}, fmt.Errorf("scenario analysis failed: %w", err)
	}

	scenario := models.Scenario{
		ID:                  uuid.NewString(),
		Description:         description,
		InterpretedScenario: analysis.InterpretedScenario,
		CreatedAt:           time.Now().UTC(),
		IsTracking:          false,
	}
	for _, draft := range analysis.Plays {
		scenario.Plays = append(scenario.Plays, models.Play{
			ID:              uuid.NewString(),
			AssetClass:      models.AssetClass(draft.AssetClass),
			Title:           draft.Title,
			Description:     draft.Description,
			Action:          draft.Action,
			Instruments:     draft.Instruments,
			Rationale:       draft.Rationale,
			RiskLevel:       draft.RiskLevel,
			TimeHorizon:     draft.TimeHorizon,
			ConfidenceScore: models.Clamp01(draft.ConfidenceScore),
		})
	}

	if err := e.store.SaveScenario(ctx, scenario); err != nil {
		return models.Scenario{}, err
	}
	e.logger.Printf("created scenario %s with %d plays", scenario.ID, len(scenario.Plays))
	return scenario, nil
}

// GetScenario returns one stored scenario.
func (e *Engine) GetScenario(ctx context.Context, id string) (models.Scenario, error) {
	return e.store.GetScenario(ctx, id)
}

// ListScenarios returns all stored scenarios.
func (e *Engine) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	return e.store.ListScenarios(ctx)
}

// Start begins tracking one play of a scenario: it takes an initial news
// snapshot, asks the oracle for initial alerts, and persists the entry. The
// entry is committed in full or not at all; a failed aggregation leaves no
// partial state behind. Starting an already-live key returns
// models.ErrAlreadyTracking.
func (e *Engine) Start(ctx context.Context, scenarioID, playID string) (models.TrackedScenario, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	key := models.TrackingKey{ScenarioID: scenarioID, PlayID: playID}
	unlock := e.locks.LockKey(key)
	defer unlock()

	tracked, err := e.start(ctx, key)
	telemetry.ObserveTrackingOp("start", err)
	if err != nil {
		return models.TrackedScenario{}, err
	}
	e.observeGauge(ctx)
	return tracked, nil
}

func (e *Engine) start(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	scenario, err := e.store.GetScenario(ctx, key.ScenarioID)
	if err != nil {
		return models.TrackedScenario{}, err
	}
	play, ok := scenario.PlayByID(key.PlayID)
	if !ok {
		return models.TrackedScenario{}, models.ErrPlayNotFound
	}
	if _, err := e.store.GetTracked(ctx, key); err == nil {
		return models.TrackedScenario{}, models.ErrAlreadyTracking
	} else if !errors.Is(err, models.ErrNotTracked) {
		return models.TrackedScenario{}, err
	}

	articles, err := e.news.Aggregate(ctx, scenario.Description, play.Instruments)
	if err != nil {
		return models.TrackedScenario{}, fmt.Errorf("news aggregation failed: %w", err)
	}

	now := time.Now().UTC()
	tracked := models.TrackedScenario{
		Scenario:     scenario,
		Play:         play,
		NewsArticles: articles,
		Alerts:       []models.Alert{},
		LastUpdated:  now,
		PlayUpdates:  []string{},
	}
	tracked.Scenario.IsTracking = true

	// Initial alerts are best-effort: an oracle failure starts tracking with
	// an empty log rather than failing the whole operation.
	drafts, aerr := e.oracle.GenerateAlerts(ctx, scenario.InterpretedScenario, play, articles)
	telemetry.ObserveOracleCall("generate_alerts", aerr)
	if aerr != nil {
		e.logger.Printf("initial alert generation failed for %s: %v", key, aerr)
	} else {
		tracked.Alerts = append(tracked.Alerts, e.buildAlerts(key, drafts, now)...)
	}

	if err := ctx.Err(); err != nil {
		return models.TrackedScenario{}, err
	}
	if err := e.store.SaveTracked(ctx, tracked); err != nil {
		return models.TrackedScenario{}, err
	}

	scenarioUnlock := e.locks.LockScenario(key.ScenarioID)
	defer scenarioUnlock()
	if err := e.store.SetTracking(ctx, key.ScenarioID, true); err != nil {
		return models.TrackedScenario{}, err
	}

	e.logger.Printf("started tracking %s: %d articles, %d alerts", key, len(tracked.NewsArticles), len(tracked.Alerts))
	return tracked, nil
}

// Refresh re-runs the news and oracle passes for a live entry and merges the
// results: the news snapshot is replaced wholesale, alerts and play updates
// only ever grow, and last_updated advances even when nothing else changed.
// One aggregation pass feeds both oracle calls.
func (e *Engine) Refresh(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	unlock := e.locks.LockKey(key)
	defer unlock()

	tracked, err := e.refresh(ctx, key)
	telemetry.ObserveTrackingOp("refresh", err)
	if err != nil {
		return models.TrackedScenario{}, err
	}
	return tracked, nil
}

func (e *Engine) refresh(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	tracked, err := e.store.GetTracked(ctx, key)
	if err != nil {
		return models.TrackedScenario{}, err
	}

	articles, err := e.news.Aggregate(ctx, tracked.Scenario.Description, tracked.Play.Instruments)
	if err != nil {
		return models.TrackedScenario{}, fmt.Errorf("news aggregation failed: %w", err)
	}
	tracked.NewsArticles = articles

	// Both oracle passes see the same snapshot. Each failure skips only its
	// own effect; the refresh still commits.
	verdict, verr := e.oracle.EvaluatePlay(ctx, tracked.Play, articles)
	telemetry.ObserveOracleCall("evaluate_play", verr)
	if verr != nil {
		e.logger.Printf("play evaluation failed for %s: %v", key, verr)
		verdict = models.PlayVerdict{}
	}

	drafts, aerr := e.oracle.GenerateAlerts(ctx, tracked.Scenario.InterpretedScenario, tracked.Play, articles)
	telemetry.ObserveOracleCall("generate_alerts", aerr)
	if aerr != nil {
		e.logger.Printf("alert generation failed for %s: %v", key, aerr)
	}

	now := time.Now().UTC()
	if verr == nil && verdict.ShouldModify && verdict.Modifications != "" {
		tracked.PlayUpdates = append(tracked.PlayUpdates,
			fmt.Sprintf("[%s] %s", now.Format(time.RFC3339), verdict.Modifications))
		tracked.Play.ConfidenceScore = models.Clamp01(verdict.UpdatedConfidenceScore)
		for i := range tracked.Scenario.Plays {
			if tracked.Scenario.Plays[i].ID == tracked.Play.ID {
				tracked.Scenario.Plays[i].ConfidenceScore = tracked.Play.ConfidenceScore
			}
		}
	}
	if aerr == nil {
		tracked.Alerts = append(tracked.Alerts, e.buildAlerts(key, drafts, now)...)
	}
	tracked.LastUpdated = now

	if err := ctx.Err(); err != nil {
		return models.TrackedScenario{}, err
	}
	if err := e.store.SaveTracked(ctx, tracked); err != nil {
		return models.TrackedScenario{}, err
	}
	e.logger.Printf("refreshed %s: %d articles, %d alerts total, modified=%t",
		key, len(tracked.NewsArticles), len(tracked.Alerts), verdict.ShouldModify)
	return tracked, nil
}

// Stop removes a tracked entry. The scenario's is_tracking flag is cleared
// only when no other play of the same scenario is still live. Stopping a key
// that is not tracked (including a second Stop on the same key) returns
// models.ErrNotTracked.
func (e *Engine) Stop(ctx context.Context, key models.TrackingKey) error {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	unlock := e.locks.LockKey(key)
	defer unlock()

	err := e.stop(ctx, key)
	telemetry.ObserveTrackingOp("stop", err)
	if err != nil {
		return err
	}
	e.observeGauge(ctx)
	return nil
}

func (e *Engine) stop(ctx context.Context, key models.TrackingKey) error {
	if err := e.store.DeleteTracked(ctx, key); err != nil {
		return err
	}

	scenarioUnlock := e.locks.LockScenario(key.ScenarioID)
	defer scenarioUnlock()
	remaining, err := e.store.CountTrackedForScenario(ctx, key.ScenarioID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := e.store.SetTracking(ctx, key.ScenarioID, false); err != nil && !errors.Is(err, models.ErrScenarioNotFound) {
			return err
		}
	}
	e.logger.Printf("stopped tracking %s, %d plays still live for scenario", key, remaining)
	return nil
}

// Get returns one tracked entry.
func (e *Engine) Get(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	return e.store.GetTracked(ctx, key)
}

// List returns every tracked entry.
func (e *Engine) List(ctx context.Context) ([]models.TrackedScenario, error) {
	return e.store.ListTracked(ctx)
}

func (e *Engine) buildAlerts(key models.TrackingKey, drafts []models.AlertDraft, now time.Time) []models.Alert {
	alerts := make([]models.Alert, 0, len(drafts))
	for _, d := range drafts {
		if d.Message == "" {
			continue
		}
		severity := d.Severity
		if severity == "" {
			severity = models.SeverityInfo
		}
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			ScenarioID: key.ScenarioID,
			PlayID:     key.PlayID,
			Message:    d.Message,
			Severity:   severity,
			CreatedAt:  now,
		})
	}
	return alerts
}

func (e *Engine) observeGauge(ctx context.Context) {
	if entries, err := e.store.ListTracked(ctx); err == nil {
		telemetry.SetTrackedEntries(len(entries))
	}
}
