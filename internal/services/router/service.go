package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/config"
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/complexity"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Service coordinates complexity analysis, model selection, cost estimation,
// and the semantic decision cache.
type Service struct {
	analyzer       *complexity.Analyzer
	selector       *Selector
	estimator      *CostEstimator
	cache          *DecisionCache
	catalog        *models.Catalog
	defaultModelID string
}

// NewService creates the routing service from application configuration.
func NewService(cfg *config.Config) (*Service, error) {
	routerCfg := cfg.MergeRouterConfig(nil)

	catalogModels := routerCfg.Models
	if len(catalogModels) == 0 {
		catalogModels = models.DefaultCatalogModels()
	}
	catalog, err := models.NewCatalog(catalogModels)
	if err != nil {
		return nil, fmt.Errorf("invalid model catalog: %w", err)
	}

	fiberlog.Infof("Router: Initializing with %d catalog models, default=%s, reference_price=%.2f USD",
		catalog.Len(), routerCfg.DefaultModel, routerCfg.ReferencePriceUSD)

	estimator := NewCostEstimator(routerCfg.ReferencePriceUSD)
	selector := NewSelector(catalog, routerCfg.DefaultModel, estimator)

	cache, err := createCacheIfEnabled(routerCfg.Cache, cfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		analyzer:       complexity.NewAnalyzer(),
		selector:       selector,
		estimator:      estimator,
		cache:          cache,
		catalog:        catalog,
		defaultModelID: selector.defaultModelID,
	}, nil
}

// createCacheIfEnabled creates the decision cache if semantic caching is enabled
func createCacheIfEnabled(cacheConfig *models.CacheConfig, cfg *config.Config) (*DecisionCache, error) {
	if cacheConfig == nil || !cacheConfig.Enabled {
		fiberlog.Warn("Router: Decision cache is disabled")
		return nil, nil
	}

	fallbackRedisURL := ""
	if cfg.Redis != nil {
		fallbackRedisURL = cfg.Redis.URL
	}

	cache, err := NewDecisionCache(cacheConfig, fallbackRedisURL)
	if err != nil {
		fiberlog.Errorf("Router: Failed to create decision cache: %v", err)
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	fiberlog.Info("Router: Decision cache initialized successfully")
	return cache, nil
}

// Route resolves one request to a model. It never fails: constraint sets
// with no satisfying candidate terminate in the default model.
// The analysis return is nil when a cached decision was served; the final
// return names the cache tier that served it, or "" when computed.
func (s *Service) Route(ctx context.Context, req *models.RouteRequest, requestID string) (*models.RoutingResult, *models.ComplexityAnalysis, string) {
	if req == nil {
		req = &models.RouteRequest{}
	}

	fiberlog.Infof("[%s] ═══ Model Routing Started ═══", requestID)
	fiberlog.Infof("[%s] User: %s | Message length: %d chars | History turns: %d",
		requestID, req.UserID, len(req.Message), len(req.History))

	// 1) Constraint-free requests can reuse cached decisions.
	if s.cache != nil && cacheableRequest(req) {
		fiberlog.Infof("[%s] 🔍 Checking semantic decision cache (threshold: %.2f)",
			requestID, s.cache.Threshold())

		if result, source, ok := s.lookupCache(ctx, req.Message, requestID); ok {
			fiberlog.Infof("[%s] ✅ CACHE HIT (%s) - serving cached decision: %s",
				requestID, source, result.Model)
			fiberlog.Infof("[%s] ═══ Model Routing Complete (Cache) ═══", requestID)
			return result, nil, source
		}
		fiberlog.Infof("[%s] ❌ Cache miss - scoring message", requestID)
	} else if s.cache != nil {
		fiberlog.Debugf("[%s] ⏭️  Request carries constraints - bypassing decision cache", requestID)
	}

	// 2) Score the message and pick a model.
	analysis := s.analyzer.Analyze(req.Message, req.History)
	fiberlog.Infof("[%s] 🧮 Complexity: score=%.2f task=%s input_tokens=%d output_tokens=%d",
		requestID, analysis.Score, analysis.TaskType, analysis.EstimatedInputTokens, analysis.EstimatedOutputTokens)
	fiberlog.Debugf("[%s] Complexity factors: %s", requestID, analysis.Reason)

	result := s.selector.Select(analysis, req)

	if s.IsDefaultFallback(&result) {
		fiberlog.Warnf("[%s] ⚠️  No candidate satisfied the constraints - fell back to default %s",
			requestID, result.Model)
	} else {
		fiberlog.Infof("[%s] ✅ Selected %s (%s tier) - estimated %d sats",
			requestID, result.Model, result.Tier, result.EstimatedCostSats)
	}

	// 3) Store constraint-free decisions for reuse (fire-and-forget).
	if s.cache != nil && cacheableRequest(req) {
		fiberlog.Debugf("[%s] 💾 Storing decision in cache: %s", requestID, result.Model)
		s.cache.StoreAsync(ctx, req.Message, result, requestID)
	}

	fiberlog.Infof("[%s] ═══ Model Routing Complete ═══", requestID)
	return &result, &analysis, ""
}

// lookupCache validates cached decisions against the live catalog before
// serving them. Entries whose model has left the catalog are invalidated.
func (s *Service) lookupCache(ctx context.Context, message, requestID string) (*models.RoutingResult, string, bool) {
	cached, source, found := s.cache.Lookup(ctx, message, requestID, s.cache.Threshold())
	if !found {
		return nil, "", false
	}

	descriptor, ok := s.catalog.Get(cached.Model)
	if !ok || !descriptor.Available {
		fiberlog.Warnf("[%s] ⚠️  Cached model %s no longer available - invalidating cache entry",
			requestID, cached.Model)
		s.cache.DeleteAsync(ctx, message, requestID)
		return nil, "", false
	}

	// Re-price at the current reference price; the cached figure may predate
	// a price move.
	cached.EstimatedCostSats = s.estimator.EstimateSats(descriptor, cached.EstimatedTokens)
	cached.CacheTier = source
	return cached, source, true
}

// cacheableRequest reports whether a request is free of per-request
// constraints. Constrained requests must not share cached decisions: a model
// valid for one constraint set may be invalid for another.
func cacheableRequest(req *models.RouteRequest) bool {
	return req.Message != "" &&
		len(req.AllowedModels) == 0 &&
		!req.PreferredTier.IsValid() &&
		req.MaxCostSats <= 0 &&
		!req.RequiresVision &&
		!req.RequiresFunctionCalling
}

// IsDefaultFallback reports whether the result is the designed terminal
// fallback rather than a filtered selection.
func (s *Service) IsDefaultFallback(result *models.RoutingResult) bool {
	return result != nil &&
		result.Model == s.defaultModelID &&
		strings.Contains(result.Reason, defaultReasonMarker)
}

// Catalog returns the read-only model catalog.
func (s *Service) Catalog() *models.Catalog {
	return s.catalog
}

// DefaultModelID returns the configured terminal fallback model id.
func (s *Service) DefaultModelID() string {
	return s.defaultModelID
}

// ReferencePrice returns the BTC/USD price currently used for conversions.
func (s *Service) ReferencePrice() float64 {
	return s.estimator.ReferencePrice()
}

// SetReferencePrice updates the BTC/USD price used for conversions.
// Non-positive values are ignored.
func (s *Service) SetReferencePrice(priceUSD float64) {
	s.estimator.SetReferencePrice(priceUSD)
}

// Estimator exposes the cost estimator for collaborators that price token
// volumes directly.
func (s *Service) Estimator() *CostEstimator {
	return s.estimator
}

// Close releases cache resources during shutdown.
func (s *Service) Close() error {
	fiberlog.Info("Router: Shutting down")

	if s.cache != nil {
		fiberlog.Info("Router: Closing decision cache")
		if err := s.cache.Close(); err != nil {
			fiberlog.Errorf("Router: Failed to close decision cache: %v", err)
			return err
		}
		fiberlog.Info("Router: Decision cache closed successfully")
	}

	fiberlog.Info("Router: Shutdown completed")
	return nil
}
