package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ronguha/hedge-fund-agent/models"
)

// PostgresStore persists scenarios and tracked entries as whole JSONB
// documents. Every write replaces the document; the append-only semantics of
// alert and play-update logs are enforced by the tracker, which always writes
// a superset of what it read under the per-key lock.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (p *PostgresStore) SaveScenario(ctx context.Context, s models.Scenario) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO scenarios (id, payload, is_tracking, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, is_tracking = EXCLUDED.is_tracking;
`, s.ID, payload, s.IsTracking, s.CreatedAt)
	return err
}

func (p *PostgresStore) GetScenario(ctx context.Context, id string) (models.Scenario, error) {
	var payload []byte
	err := p.DB.QueryRowContext(ctx, `SELECT payload FROM scenarios WHERE id=$1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Scenario{}, models.ErrScenarioNotFound
		}
		return models.Scenario{}, err
	}
	var s models.Scenario
	if err := json.Unmarshal(payload, &s); err != nil {
		return models.Scenario{}, err
	}
	return s, nil
}

func (p *PostgresStore) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT payload FROM scenarios ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Scenario
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var s models.Scenario
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetTracking(ctx context.Context, scenarioID string, tracking bool) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE scenarios SET is_tracking=$2, payload = jsonb_set(payload, '{is_tracking}', to_jsonb($2::boolean))
WHERE id=$1`, scenarioID, tracking)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrScenarioNotFound
	}
	return nil
}

func (p *PostgresStore) SaveTracked(ctx context.Context, t models.TrackedScenario) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	key := t.Key()
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO tracked_scenarios (scenario_id, play_id, payload, last_updated)
VALUES ($1,$2,$3,$4)
ON CONFLICT (scenario_id, play_id) DO UPDATE SET payload = EXCLUDED.payload, last_updated = EXCLUDED.last_updated;
`, key.ScenarioID, key.PlayID, payload, t.LastUpdated)
	return err
}

func (p *PostgresStore) GetTracked(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	var payload []byte
	err := p.DB.QueryRowContext(ctx,
		`SELECT payload FROM tracked_scenarios WHERE scenario_id=$1 AND play_id=$2`,
		key.ScenarioID, key.PlayID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TrackedScenario{}, models.ErrNotTracked
		}
		return models.TrackedScenario{}, err
	}
	var t models.TrackedScenario
	if err := json.Unmarshal(payload, &t); err != nil {
		return models.TrackedScenario{}, err
	}
	return t, nil
}

func (p *PostgresStore) ListTracked(ctx context.Context) ([]models.TrackedScenario, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT payload FROM tracked_scenarios ORDER BY scenario_id, play_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TrackedScenario
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t models.TrackedScenario
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteTracked(ctx context.Context, key models.TrackingKey) error {
	res, err := p.DB.ExecContext(ctx,
		`DELETE FROM tracked_scenarios WHERE scenario_id=$1 AND play_id=$2`,
		key.ScenarioID, key.PlayID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotTracked
	}
	return nil
}

func (p *PostgresStore) CountTrackedForScenario(ctx context.Context, scenarioID string) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracked_scenarios WHERE scenario_id=$1`, scenarioID).Scan(&n)
	return n, err
}
