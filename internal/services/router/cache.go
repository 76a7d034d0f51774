package router

import (
	"context"
	"fmt"

	"github.com/orangecat-xyz/autorouter/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultSemanticThreshold = 0.9
	defaultMemoryCapacity    = 1000
	defaultEmbeddingModel    = "text-embedding-3-large"
)

// DefaultCacheConfig returns default decision cache configuration
func DefaultCacheConfig() models.CacheConfig {
	return models.CacheConfig{
		Enabled:           true,
		SemanticThreshold: defaultSemanticThreshold,
	}
}

// DecisionCache wraps the semanticcache library for routing decisions keyed
// by message text. Two messages that embed close enough reuse one decision.
type DecisionCache struct {
	cache             *semanticcache.SemanticCache[string, models.RoutingResult]
	semanticThreshold float32
}

// NewDecisionCache creates a decision cache from the cache configuration.
// fallbackRedisURL is used when the cache config does not carry its own
// Redis URL.
func NewDecisionCache(cacheConfig *models.CacheConfig, fallbackRedisURL string) (*DecisionCache, error) {
	fiberlog.Info("DecisionCache: Initializing cache")

	if cacheConfig == nil {
		return nil, fmt.Errorf("cache not configured")
	}

	threshold := cacheConfig.SemanticThreshold
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("invalid semantic threshold %.2f; must be in (0.0, 1.0]", threshold)
	}

	fiberlog.Debugf("DecisionCache: Configuration - enabled=%t, backend=%s, threshold=%.2f",
		cacheConfig.Enabled, cacheConfig.Backend, threshold)

	apiKey := cacheConfig.OpenAIAPIKey
	if apiKey == "" {
		fiberlog.Error("DecisionCache: OpenAI API key not set in cache configuration")
		return nil, fmt.Errorf("OpenAI API key not set in cache configuration")
	}
	fiberlog.Debug("DecisionCache: OpenAI API key found")

	embedModel := cacheConfig.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbeddingModel
	}

	fiberlog.Debug("DecisionCache: Creating semantic cache")
	var cache *semanticcache.SemanticCache[string, models.RoutingResult]
	var err error

	backend := cacheConfig.Backend
	if backend == "" {
		backend = models.CacheBackendRedis
		fiberlog.Warn("DecisionCache: Backend not specified, defaulting to redis")
	}

	switch backend {
	case models.CacheBackendMemory:
		capacity := cacheConfig.Capacity
		if capacity <= 0 {
			capacity = defaultMemoryCapacity
			fiberlog.Warnf("DecisionCache: Invalid or missing capacity, using default %d", capacity)
		}
		fiberlog.Debugf("DecisionCache: Using in-memory LRU backend with capacity=%d", capacity)
		cache, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.RoutingResult](apiKey, embedModel),
			options.WithLRUBackend[string, models.RoutingResult](capacity),
		)

	case models.CacheBackendRedis:
		redisURL := cacheConfig.RedisURL
		if redisURL == "" {
			redisURL = fallbackRedisURL
		}
		if redisURL == "" {
			fiberlog.Error("DecisionCache: redis URL not set - please configure cache.redis_url or redis.url")
			return nil, fmt.Errorf("redis URL not set - please configure cache.redis_url or redis.url")
		}
		fiberlog.Debugf("DecisionCache: Using Redis backend with URL=%s", redisURL)
		cache, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.RoutingResult](apiKey, embedModel),
			options.WithRedisBackend[string, models.RoutingResult](redisURL, 0),
		)

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: redis, memory)", backend)
	}

	if err != nil {
		fiberlog.Errorf("DecisionCache: Failed to create semantic cache: %v", err)
		return nil, fmt.Errorf("failed to create semantic cache: %w", err)
	}
	fiberlog.Info("DecisionCache: Semantic cache created successfully")

	return &DecisionCache{
		cache:             cache,
		semanticThreshold: float32(threshold),
	}, nil
}

// Threshold returns the configured similarity threshold.
func (dc *DecisionCache) Threshold() float32 {
	return dc.semanticThreshold
}

// Lookup searches for a cached decision using exact match first, then
// semantic similarity with the given threshold.
func (dc *DecisionCache) Lookup(ctx context.Context, message, requestID string, threshold float32) (*models.RoutingResult, string, bool) {
	fiberlog.Debugf("[%s] DecisionCache: Starting cache lookup", requestID)

	// 1) First try exact key matching
	fiberlog.Debugf("[%s] DecisionCache: Trying exact key match", requestID)
	if hit, found, err := dc.cache.Get(ctx, message); found && err == nil {
		fiberlog.Infof("[%s] DecisionCache: Exact cache hit", requestID)
		return &hit, models.CacheTierSemanticExact, true
	} else if err != nil {
		fiberlog.Errorf("[%s] DecisionCache: Error during exact lookup: %v", requestID, err)
	}
	fiberlog.Debugf("[%s] DecisionCache: No exact match found", requestID)

	// 2) If no exact match, try semantic similarity search
	fiberlog.Debugf("[%s] DecisionCache: Trying semantic similarity search (threshold: %.2f)", requestID, threshold)
	if match, err := dc.cache.Lookup(ctx, message, threshold); err == nil && match != nil {
		fiberlog.Infof("[%s] DecisionCache: Semantic cache hit", requestID)
		return &match.Value, models.CacheTierSemanticSimilar, true
	} else if err != nil {
		fiberlog.Errorf("[%s] DecisionCache: Error during semantic lookup: %v", requestID, err)
	} else {
		fiberlog.Debugf("[%s] DecisionCache: No semantic match found", requestID)
	}

	fiberlog.Debugf("[%s] DecisionCache: Cache miss", requestID)
	return nil, "", false
}

// StoreAsync saves a routing decision to the cache (fire-and-forget)
func (dc *DecisionCache) StoreAsync(ctx context.Context, message string, result models.RoutingResult, requestID string) {
	fiberlog.Debugf("[%s] DecisionCache: Storing decision (fire-and-forget, model: %s)", requestID, result.Model)
	dc.cache.SetAsync(ctx, message, message, result)
}

// DeleteAsync removes a cache entry (fire-and-forget)
func (dc *DecisionCache) DeleteAsync(ctx context.Context, message, requestID string) {
	fiberlog.Debugf("[%s] DecisionCache: Invalidating cache entry (fire-and-forget)", requestID)
	dc.cache.DeleteAsync(ctx, message)
}

// Close closes the cache and releases resources
func (dc *DecisionCache) Close() error {
	if dc.cache != nil {
		return dc.cache.Close()
	}
	return nil
}
