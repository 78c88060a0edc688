package tracker

import (
	"sync"

	"github.com/ronguha/hedge-fund-agent/models"
)

// keyLocks serializes mutations per tracking key and per scenario id, so
// concurrent refreshes of the same key never race on the alert log while
// operations on different keys proceed independently. Lock ordering is
// always tracking key first, then scenario id.
type keyLocks struct {
	mu        sync.Mutex
	keys      map[models.TrackingKey]*sync.Mutex
	scenarios map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{
		keys:      make(map[models.TrackingKey]*sync.Mutex),
		scenarios: make(map[string]*sync.Mutex),
	}
}

// LockKey acquires the mutex for one tracking key and returns its unlock.
func (l *keyLocks) LockKey(key models.TrackingKey) func() {
	l.mu.Lock()
	m, ok := l.keys[key]
	if !ok {
		m = &sync.Mutex{}
		l.keys[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// LockScenario guards the scenario's is_tracking flag against the race where
// Stop on one play clears the flag while Start on another play sets it.
func (l *keyLocks) LockScenario(scenarioID string) func() {
	l.mu.Lock()
	m, ok := l.scenarios[scenarioID]
	if !ok {
		m = &sync.Mutex{}
		l.scenarios[scenarioID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
