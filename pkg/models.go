package pkg

import "github.com/orangecat-xyz/autorouter/internal/models"

type (
	ServerConfig       = models.ServerConfig
	AuthConfig         = models.AuthConfig
	APIKeyConfig       = models.APIKeyConfig
	RouterConfig       = models.RouterConfig
	CacheConfig        = models.CacheConfig
	PriceFeedConfig    = models.PriceFeedConfig
	DatabaseConfig     = models.DatabaseConfig
	RedisConfig        = models.RedisConfig
	RateLimitConfig    = models.RateLimitConfig
	TimeoutConfig      = models.TimeoutConfig
	ModelDescriptor    = models.ModelDescriptor
	ModelTier          = models.ModelTier
	RouteRequest       = models.RouteRequest
	RoutingResult      = models.RoutingResult
	ComplexityAnalysis = models.ComplexityAnalysis
)
