package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ronguha/hedge-fund-agent/models"
)

// MemoryStore is the reference in-process backend: two RWMutex-guarded maps,
// one per namespace. Values are cloned on the way in and out so callers can
// never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	scenarios map[string]models.Scenario
	tracked   map[models.TrackingKey]models.TrackedScenario
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scenarios: make(map[string]models.Scenario),
		tracked:   make(map[models.TrackingKey]models.TrackedScenario),
	}
}

func (m *MemoryStore) SaveScenario(ctx context.Context, s models.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = cloneScenario(s)
	return nil
}

func (m *MemoryStore) GetScenario(ctx context.Context, id string) (models.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id]
	if !ok {
		return models.Scenario{}, models.ErrScenarioNotFound
	}
	return cloneScenario(s), nil
}

func (m *MemoryStore) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		out = append(out, cloneScenario(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetTracking(ctx context.Context, scenarioID string, tracking bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[scenarioID]
	if !ok {
		return models.ErrScenarioNotFound
	}
	s.IsTracking = tracking
	m.scenarios[scenarioID] = s
	return nil
}

func (m *MemoryStore) SaveTracked(ctx context.Context, t models.TrackedScenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[t.Key()] = cloneTracked(t)
	return nil
}

func (m *MemoryStore) GetTracked(ctx context.Context, key models.TrackingKey) (models.TrackedScenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracked[key]
	if !ok {
		return models.TrackedScenario{}, models.ErrNotTracked
	}
	return cloneTracked(t), nil
}

func (m *MemoryStore) ListTracked(ctx context.Context) ([]models.TrackedScenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.TrackedScenario, 0, len(m.tracked))
	for _, t := range m.tracked {
		out = append(out, cloneTracked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

func (m *MemoryStore) DeleteTracked(ctx context.Context, key models.TrackingKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[key]; !ok {
		return models.ErrNotTracked
	}
	delete(m.tracked, key)
	return nil
}

func (m *MemoryStore) CountTrackedForScenario(ctx context.Context, scenarioID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.tracked {
		if key.ScenarioID == scenarioID {
			n++
		}
	}
	return n, nil
}

func cloneScenario(s models.Scenario) models.Scenario {
	out := s
	out.Plays = make([]models.Play, len(s.Plays))
	for i, p := range s.Plays {
		out.Plays[i] = clonePlay(p)
	}
	return out
}

func clonePlay(p models.Play) models.Play {
	out := p
	out.Instruments = append([]string(nil), p.Instruments...)
	return out
}

func cloneTracked(t models.TrackedScenario) models.TrackedScenario {
	out := t
	out.Scenario = cloneScenario(t.Scenario)
	out.Play = clonePlay(t.Play)
	out.NewsArticles = append([]models.NewsArticle(nil), t.NewsArticles...)
	out.Alerts = append([]models.Alert(nil), t.Alerts...)
	out.PlayUpdates = append([]string(nil), t.PlayUpdates...)
	return out
}
