package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
)

// overrideFailureMessage is shown when an override fails without a backend detail
const overrideFailureMessage = "failed to fetch price"

// AdapterResolver looks up the adapter for a backend-supplied module id
type AdapterResolver interface {
	Resolve(moduleID string) (domain.StoreAdapter, error)
}

// ResolutionConfig holds configuration for the resolution service
type ResolutionConfig struct {
	AdapterTimeout time.Duration
	LocateCacheTTL time.Duration
}

// ResolutionService runs the single-store chains: locate then extract for
// frontend stores, and override extraction for either kind of store.
// Every method returns a terminal StoreResult rather than an error.
type ResolutionService struct {
	adapters       AdapterResolver
	checker        domain.PriceChecker
	cache          domain.CacheRepository
	logger         *zap.Logger
	adapterTimeout time.Duration
	cacheTTL       time.Duration
}

// NewResolutionService creates a new resolution service with dependencies.
// cache may be nil to disable locate caching.
func NewResolutionService(
	adapters AdapterResolver,
	checker domain.PriceChecker,
	cache domain.CacheRepository,
	config ResolutionConfig,
	logger *zap.Logger,
) *ResolutionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	adapterTimeout := config.AdapterTimeout
	if adapterTimeout == 0 {
		adapterTimeout = 30 * time.Second
	}

	cacheTTL := config.LocateCacheTTL
	if cacheTTL == 0 {
		cacheTTL = 6 * time.Hour
	}

	return &ResolutionService{
		adapters:       adapters,
		checker:        checker,
		cache:          cache,
		logger:         logger.Named("resolve"),
		adapterTimeout: adapterTimeout,
		cacheTTL:       cacheTTL,
	}
}

// ResolveStore finds the product at a frontend store and prices it.
// Flow: resolve adapter -> cached URL or Locate -> cache -> ExtractOffers.
// A store where nothing plausible was found resolves with no URL and no offers.
func (s *ResolutionService) ResolveStore(
	ctx context.Context,
	store domain.StoreDescriptor,
	productName string,
) domain.StoreResult {
	ctx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()

	log := s.logger.With(zap.String("store", store.Name), zap.String("module", store.ModuleID))

	adapter, err := s.adapters.Resolve(store.ModuleID)
	if err != nil {
		log.Warn("no adapter for store", zap.Error(err))
		return domain.FailedResult(store.Name, "", err.Error())
	}

	cacheKey := generateLocateKey(store.ModuleID, productName)

	url, cached := s.getFromCache(ctx, cacheKey)
	if !cached {
		url, err = adapter.Locate(ctx, productName)
		if err != nil {
			log.Warn("locate failed", zap.Error(err))
			return domain.FailedResult(store.Name, "", chainError(ctx, err))
		}
		if url != "" {
			s.setInCache(ctx, cacheKey, url)
		}
	}

	if url == "" {
		log.Debug("product not found in store")
		return domain.SuccessResult(store.Name, "", nil)
	}

	offers, err := adapter.ExtractOffers(ctx, url)
	if err != nil {
		log.Warn("extract failed", zap.String("url", url), zap.Error(err))
		return domain.FailedResult(store.Name, url, chainError(ctx, err))
	}

	log.Debug("store resolved", zap.String("url", url), zap.Int("offers", len(offers)))
	return domain.SuccessResult(store.Name, url, offers)
}

// ExtractOverride prices an operator-supplied URL. Frontend stores run their
// adapter directly on the URL; backend stores are delegated to the backend.
func (s *ResolutionService) ExtractOverride(
	ctx context.Context,
	store domain.StoreDescriptor,
	url string,
) domain.StoreResult {
	ctx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	defer cancel()

	var (
		offers []domain.PriceOffer
		err    error
	)

	if store.IsFrontend {
		var adapter domain.StoreAdapter
		adapter, err = s.adapters.Resolve(store.ModuleID)
		if err == nil {
			offers, err = adapter.ExtractOffers(ctx, url)
		}
	} else {
		offers, err = s.checker.CheckPrice(ctx, store.Name, url)
	}

	if err != nil {
		s.logger.Warn("override failed",
			zap.String("store", store.Name),
			zap.String("url", url),
			zap.Error(err))
		return domain.FailedResult(store.Name, url, overrideMessage(err))
	}

	return domain.SuccessResult(store.Name, url, offers)
}

// generateLocateKey creates the cache key for a located product URL.
// Format: "locate:{module}:{normalized_product_name}"
func generateLocateKey(moduleID, productName string) string {
	return fmt.Sprintf("locate:%s:%s", moduleID, NormalizeTitle(productName))
}

func (s *ResolutionService) getFromCache(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return "", false
	}

	url, ok := value.(string)
	return url, ok && url != ""
}

func (s *ResolutionService) setInCache(ctx context.Context, key, url string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, url, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache located url", zap.String("key", key), zap.Error(err))
	}
}

// chainError turns a chain failure into the text shown in the store's slot
func chainError(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timed out"
	}
	return err.Error()
}

func overrideMessage(err error) string {
	var backendErr *domain.BackendError
	if errors.As(err, &backendErr) && backendErr.Detail != "" {
		return backendErr.Detail
	}
	return overrideFailureMessage
}
