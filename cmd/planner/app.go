// cmd/planner/app.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"home-planner/internal/common/config"
	"home-planner/internal/common/logger"
	"home-planner/internal/common/observability"
	"home-planner/internal/models"
	"home-planner/internal/persistence"
	"home-planner/internal/planapi"
	"home-planner/internal/querycache"
	"home-planner/internal/wizard"
)

// app holds the components every command shares.
type app struct {
	cfg     *config.Config
	zap     *zap.Logger
	log     logger.Logger
	obs     *observability.Observability
	cache   *querycache.Cache
	api     *planapi.Client
	wizard  *wizard.Orchestrator
	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func cacheConfig(cfg config.CacheConfig) querycache.Config {
	return querycache.Config{
		Freshness:  config.GetDuration(cfg.Freshness),
		Capacity:   cfg.Capacity,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  config.GetDuration(cfg.BaseDelay),
		MaxDelay:   config.GetDuration(cfg.MaxDelay),
	}
}

func newApp(ctx context.Context, cfg *config.Config, obs *observability.Observability) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
		"env":     cfg.App.Environment,
	})

	cache, err := querycache.New(cacheConfig(cfg.Cache), log)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	store, closer, err := persistence.OpenStore(ctx, cfg)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("persistence store (%s): %w", cfg.Persistence.Driver, err)
	}

	slot := persistence.NewAdapter[models.SubmissionResult](store, cfg.Persistence.Key, log)
	api := planapi.NewClient(cfg.API, log)
	orch := wizard.NewOrchestrator(cache, slot, api, log, wizard.Options{
		SubmitTimeout: config.GetDuration(cfg.API.SubmitTimeout),
		Freshness:     config.GetDuration(cfg.Cache.Freshness),
		Observability: obs,
	})

	return &app{
		cfg:     cfg,
		zap:     zapLog,
		log:     log,
		obs:     obs,
		cache:   cache,
		api:     api,
		wizard:  orch,
		closers: []io.Closer{closer},
	}, nil
}

func (a *app) Close() {
	a.cache.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	_ = a.zap.Sync()
}

// retryWithBackoff runs operation until it succeeds, doubling the delay between attempts.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
