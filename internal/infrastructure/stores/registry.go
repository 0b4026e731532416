// Package stores holds the per-storefront scraper adapters and the registry
// that maps a backend-supplied module id to one of them.
//
// Every adapter is its own strategy: search endpoint, selectors, variant
// combination policy and price scale are documented next to each adapter
// and are deliberately not shared.
package stores

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// Module ids the backend sends in StoreDescriptor.ModuleID
const (
	ModuleCtelecom = "products.crawlers.ctelecom"
	ModuleMoborooz = "products.crawlers.moborooz"
	ModuleKalatik  = "products.crawlers.kalatik"
)

// UnknownAdapterError is returned by Resolve for an unregistered module id
type UnknownAdapterError struct {
	ModuleID string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("no adapter registered for module %q", e.ModuleID)
}

// Unwrap lets callers match with errors.Is(err, domain.ErrUnknownAdapter)
func (e *UnknownAdapterError) Unwrap() error {
	return domain.ErrUnknownAdapter
}

// Registry maps module ids to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.StoreAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.StoreAdapter)}
}

// Register binds moduleID to adapter, replacing any previous binding
func (r *Registry) Register(moduleID string, adapter domain.StoreAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[moduleID] = adapter
}

// Resolve returns the adapter for moduleID
func (r *Registry) Resolve(moduleID string) (domain.StoreAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[moduleID]
	if !ok {
		return nil, &UnknownAdapterError{ModuleID: moduleID}
	}
	return adapter, nil
}

// Modules lists the registered module ids in sorted order
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config holds storefront endpoints and fetch settings
type Config struct {
	Fetcher          FetcherConfig
	CtelecomBaseURL  string
	MoboroozBaseURL  string
	KalatikBaseURL   string
	KalatikSearchURL string
	Debug            bool
}

// NewDefaultRegistry wires every built-in adapter. Each adapter gets its own
// fetcher so one storefront's rate limit never throttles another.
func NewDefaultRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	matcher := usecase.NewMatchingService(usecase.MatchConfig{EnableDebugLogging: cfg.Debug}, logger)

	direct := cfg.Fetcher
	direct.CORSProxy = ""

	r := NewRegistry()
	r.Register(ModuleCtelecom, NewCtelecomAdapter(cfg.CtelecomBaseURL, NewFetcher(direct, logger), matcher, logger))
	r.Register(ModuleMoborooz, NewMoboroozAdapter(cfg.MoboroozBaseURL, NewFetcher(direct, logger), matcher, logger))
	r.Register(ModuleKalatik, NewKalatikAdapter(cfg.KalatikBaseURL, cfg.KalatikSearchURL, NewFetcher(cfg.Fetcher, logger), matcher, logger))
	return r
}
