package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/internal/store"
	"github.com/ronguha/hedge-fund-agent/internal/tracker"
	"github.com/ronguha/hedge-fund-agent/models"
	"github.com/ronguha/hedge-fund-agent/news"
	"github.com/ronguha/hedge-fund-agent/news/feeds"
	"github.com/ronguha/hedge-fund-agent/news/newsapi"
	"github.com/ronguha/hedge-fund-agent/provider"
)

// Run wires the full service and blocks serving HTTP on the configured address.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx := context.Background()
	if cfg.Storage.Backend == "postgres" {
		if err := store.Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			baseLogger.Printf("migrations: %v", err)
		}
	}
	st, err := store.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	oracle, err := provider.NewProvider(provider.Client(cfg.Providers.Default), cfg.Providers)
	if err != nil {
		return err
	}

	var primary, fallback []news.Adapter
	if cfg.News.NewsAPI.APIKey != "" {
		primary = append(primary, newsapi.New(cfg.News.NewsAPI))
	}
	if len(cfg.News.Feeds.URLs) > 0 {
		fallback = append(fallback, feeds.New(cfg.News.Feeds))
	}
	if len(primary) == 0 && len(fallback) == 0 {
		return fmt.Errorf("no news sources configured (news.newsapi.api_key or news.feeds.urls)")
	}
	agg := news.NewAggregator(cfg.News, primary, fallback)

	engine := tracker.NewEngine(cfg.Tracking, st, agg, oracle)

	sh := &ScenariosHandler{Engine: engine}
	sh.Register(e.Group("/scenarios"))
	th := &TrackingHandler{Engine: engine}
	th.Register(e.Group("/tracking"))
	hh := &HealthHandler{Engine: engine}
	e.GET("/health", hh.health)

	if cfg.Tracking.SchedulerEnabled {
		var rdb *redis.Client
		if cfg.Storage.Backend == "redis" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis connection failed: %w", err)
			}
		}
		sched := NewScheduler(cfg.Tracking, engine, rdb)
		sched.Start()
		defer sched.Shutdown()
	}

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8000"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// httpError maps engine sentinels onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrScenarioNotFound),
		errors.Is(err, models.ErrPlayNotFound),
		errors.Is(err, models.ErrNotTracked):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyTracking):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
