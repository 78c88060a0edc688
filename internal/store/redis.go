package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/models"
)

const (
	scenarioKeyPrefix = "scenario:"
	trackedKeyPrefix  = "tracked:"
)

// RedisStore persists scenarios and tracked entries as JSON blobs. Scenario
// and tracking keys live in distinct prefixes of the same logical database.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DialTimeout: timeout,
		Password:    cfg.Password,
		DB:          cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return &RedisStore{client: client}, nil
}

func trackedKey(key models.TrackingKey) string {
	return trackedKeyPrefix + key.ScenarioID + ":" + key.PlayID
}

func (r *RedisStore) SaveScenario(ctx context.Context, s models.Scenario) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, scenarioKeyPrefix+s.ID, data, 0).Err()
}

func (r *RedisStore) GetScenario(ctx context.Context, id string) (models.Scenario, error) {
	val, err := r.client.Get(ctx, scenarioKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Scenario{}, models.ErrScenarioNotFound
		}
		return models.Scenario{}, err
	}
	var s models.Scenario
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return models.Scenario{}, err
	}
	return s, nil
}

func (r *RedisStore) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	keys, err := r.client.Keys(ctx, scenarioKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	var out []models.Scenario
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var s models.Scenario
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) SetTracking(ctx context.Context, scenarioID string, tracking bool) error {
	s, err := r.GetScenario(ctx, scenarioID)
	if err != nil {
		return err
	}
	s.IsTracking = tracking
	return r.SaveScenario(ctx, s)
}

func (r *RedisStore) SaveTracked(ctx context.Context, t models.TrackedScenario) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, trackedKey(t.Key()), data, 0).Err()
}

func (r *RedisStore) GetTracked(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	val, err := r.client.Get(ctx, trackedKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.TrackedScenario{}, models.ErrNotTracked
		}
		return models.TrackedScenario{}, err
	}
	var t models.TrackedScenario
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return models.TrackedScenario{}, err
	}
	return t, nil
}

func (r *RedisStore) ListTracked(ctx context.Context) ([]models.TrackedScenario, error) {
	keys, err := r.client.Keys(ctx, trackedKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	var out []models.TrackedScenario
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var t models.TrackedScenario
		if err := json.Unmarshal([]byte(val), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *RedisStore) DeleteTracked(ctx context.Context, key models.TrackingKey) error {
	n, err := r.client.Del(ctx, trackedKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotTracked
	}
	return nil
}

func (r *RedisStore) CountTrackedForScenario(ctx context.Context, scenarioID string) (int, error) {
	keys, err := r.client.Keys(ctx, trackedKeyPrefix+scenarioID+":*").Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
