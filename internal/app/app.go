// Package app wires configuration into a running check engine. Both the HTTP
// server and the CLI build their engine here.
package app

import (
	"fmt"
	"strings"

	"github.com/pricewatch/crawler/config"
	"github.com/pricewatch/crawler/internal/infrastructure/backend"
	"github.com/pricewatch/crawler/internal/infrastructure/cache"
	"github.com/pricewatch/crawler/internal/infrastructure/stores"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Development mode (log.development or
// server.environment "development") uses zap's console encoder.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Log.Development || cfg.Server.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Log.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Engine is a fully wired check engine
type Engine struct {
	Registry     *stores.Registry
	Backend      *backend.Client
	Orchestrator *usecase.Orchestrator

	cache *cache.MemoryCache
}

// NewEngine wires adapters, the backend client, the locate cache and the
// orchestrator. listener may be nil.
func NewEngine(cfg *config.Config, listener usecase.Listener, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := stores.NewDefaultRegistry(RegistryConfig(cfg), logger)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	locateCache := cache.NewMemoryCache(0)

	resolution := usecase.NewResolutionService(
		registry,
		client,
		locateCache,
		usecase.ResolutionConfig{
			AdapterTimeout: cfg.Adapters.Timeout,
			LocateCacheTTL: cfg.Cache.TTL,
		},
		logger,
	)

	orchestrator := usecase.NewOrchestrator(
		client,
		resolution,
		listener,
		usecase.OrchestratorConfig{MinOverrideURLLength: cfg.Override.MinURLLength},
		logger,
	)

	return &Engine{
		Registry:     registry,
		Backend:      client,
		Orchestrator: orchestrator,
		cache:        locateCache,
	}
}

// RegistryConfig maps the adapters section onto the registry configuration
func RegistryConfig(cfg *config.Config) stores.Config {
	return stores.Config{
		Fetcher: stores.FetcherConfig{
			Timeout:       cfg.Adapters.Timeout,
			UserAgent:     cfg.Adapters.UserAgent,
			RatePerSecond: cfg.Adapters.RatePerSecond,
			Burst:         cfg.Adapters.Burst,
			CORSProxy:     cfg.Adapters.CORSProxy,
		},
		CtelecomBaseURL:  cfg.Adapters.Ctelecom.BaseURL,
		MoboroozBaseURL:  cfg.Adapters.Moborooz.BaseURL,
		KalatikBaseURL:   cfg.Adapters.Kalatik.BaseURL,
		KalatikSearchURL: cfg.Adapters.Kalatik.SearchURL,
		Debug:            cfg.Adapters.Debug,
	}
}

// Shutdown tears the current session down and waits for its goroutines
func (e *Engine) Shutdown() {
	e.Orchestrator.Close()
	e.Orchestrator.Wait()
	e.cache.Close()
}
