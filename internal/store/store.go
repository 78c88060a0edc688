package store

import (
	"context"
	"fmt"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/models"
)

// ScenarioStore persists scenarios, keyed by scenario id.
type ScenarioStore interface {
	SaveScenario(ctx context.Context, s models.Scenario) error
	// GetScenario returns models.ErrScenarioNotFound for unknown ids.
	GetScenario(ctx context.Context, id string) (models.Scenario, error)
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
	// SetTracking flips the scenario's tracking flag.
	SetTracking(ctx context.Context, scenarioID string, tracking bool) error
}

// TrackingStore persists tracked entries under their composite tracking key,
// in a namespace distinct from scenarios.
type TrackingStore interface {
	SaveTracked(ctx context.Context, t models.TrackedScenario) error
	// GetTracked returns models.ErrNotTracked for keys with no live entry.
	GetTracked(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error)
	ListTracked(ctx context.Context) ([]models.TrackedScenario, error)
	// DeleteTracked returns models.ErrNotTracked if the key is absent, so a
	// second Stop on the same key surfaces as NotFound.
	DeleteTracked(ctx context.Context, key models.TrackingKey) error
	// CountTrackedForScenario reports how many live entries reference the
	// scenario id, for the is_tracking invariant on Stop.
	CountTrackedForScenario(ctx context.Context, scenarioID string) (int, error)
}

// Store is the full persistence surface used by the tracking engine.
type Store interface {
	ScenarioStore
	TrackingStore
}

// New builds the store selected by the storage config.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
