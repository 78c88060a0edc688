package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/tracker"
	"github.com/ronguha/hedge-fund-agent/models"
)

// Scheduler periodically refreshes tracked entries whose last update is older
// than the configured cron cadence. When a redis client is present, a SetNX
// lock per tracking key keeps replicas from refreshing the same entry twice.
type Scheduler struct {
	Engine *tracker.Engine
	Rdb    *redis.Client

	cron   string
	tick   time.Duration
	stop   chan struct{}
	logger *log.Logger
}

func NewScheduler(cfg config.TrackingConfig, engine *tracker.Engine, rdb *redis.Client) *Scheduler {
	cron := cfg.RefreshCron
	if cron == "" {
		cron = "@hourly"
	}
	tick := cfg.SchedulerTick
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	return &Scheduler{
		Engine: engine,
		Rdb:    rdb,
		cron:   cron,
		tick:   tick,
		stop:   make(chan struct{}),
		logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.tick)
	go func() {
		for {
			select {
			case <-s.stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tickOnce()
			}
		}
	}()
}

func (s *Scheduler) Shutdown() {
	close(s.stop)
}

func (s *Scheduler) tickOnce() {
	ctx := context.Background()
	entries, err := s.Engine.List(ctx)
	if err != nil {
		s.logger.Printf("list tracked: %v", err)
		return
	}
	for _, entry := range entries {
		if !isDue(s.cron, entry.LastUpdated) {
			continue
		}
		key := entry.Key()

		// distributed lock to avoid duplicate refreshes across replicas
		if s.Rdb != nil {
			ok, _ := s.Rdb.SetNX(ctx, "sched:lock:"+key.String(), "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		go func(key models.TrackingKey) {
			if _, err := s.Engine.Refresh(ctx, key); err != nil {
				s.logger.Printf("scheduled refresh %s: %v", key, err)
			}
			if s.Rdb != nil {
				s.Rdb.Del(ctx, "sched:lock:"+key.String())
			}
		}(key)
	}
}

// isDue reports whether an entry last refreshed at `last` is due under
// cronSpec. Supports "@daily", "@hourly", and 5-field cron expressions;
// invalid expressions fall back to @daily.
func isDue(cronSpec string, last time.Time) bool {
	now := time.Now()
	if last.IsZero() {
		return true
	}
	switch cronSpec {
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return now.Sub(last) >= 24*time.Hour
		}
		return !expr.Next(last).After(now)
	}
}
