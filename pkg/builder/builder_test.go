package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	pkgmodels "github.com/orangecat-xyz/autorouter/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New().Build()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.AllowedOrigins)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Nil(t, cfg.Router)
	assert.Nil(t, cfg.Database)
	assert.Nil(t, cfg.PriceFeed)
	assert.NoError(t, cfg.Validate())
}

func TestFluentChain(t *testing.T) {
	cfg := New().
		Port("9000").
		Environment("production").
		LogLevel("warn").
		AllowedOrigins("https://app.orangecat.xyz").
		WithDefaultModel("claude-sonnet-4.5").
		WithReferencePrice(90_000).
		AddModel(NewModelBuilder("claude-sonnet-4.5").
			WithProvider("anthropic").
			WithTier(models.TierStandard).
			WithPricing(3.00, 15.00).
			Build()).
		AddModel(NewModelBuilder("gemini-2.5-flash").
			WithTier(models.TierEconomy).
			WithPricing(0.30, 2.50).
			Build()).
		WithSQLite("router.db").
		EnableAPIKeyAuth().
		WithAdminAuth("secret").
		EnablePriceFeed().
		WithRedis("redis://localhost:6379").
		Build()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, "https://app.orangecat.xyz", cfg.Server.AllowedOrigins)

	require.NotNil(t, cfg.Router)
	assert.Equal(t, "claude-sonnet-4.5", cfg.Router.DefaultModel)
	assert.Equal(t, 90_000.0, cfg.Router.ReferencePriceUSD)
	require.Len(t, cfg.Router.Models, 2)
	assert.Equal(t, "anthropic", cfg.Router.Models[0].Provider)

	require.NotNil(t, cfg.Database)
	assert.Equal(t, models.SQLite, cfg.Database.Type)
	assert.Equal(t, "router.db", cfg.Database.FilePath)

	require.NotNil(t, cfg.Server.APIKeys)
	assert.True(t, cfg.Server.APIKeys.Enabled)
	assert.Equal(t, []string{"X-API-Key"}, cfg.Server.APIKeys.HeaderNames)

	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)

	require.NotNil(t, cfg.PriceFeed)
	assert.True(t, cfg.PriceFeed.Enabled)
	assert.NotEmpty(t, cfg.PriceFeed.BaseURL)

	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)

	assert.NoError(t, cfg.Validate())
}

func TestModelBuilder(t *testing.T) {
	d := NewModelBuilder("gpt-4o").Build()
	assert.Equal(t, "gpt-4o", d.ID)
	assert.Equal(t, "gpt-4o", d.Name)
	assert.True(t, d.Available)

	d = NewModelBuilder("gpt-4o").
		WithName("GPT-4o").
		WithProvider("openai").
		WithTier(models.TierPremium).
		WithPricing(2.50, 10.00).
		WithVision().
		WithFunctionCalling().
		Build()

	assert.Equal(t, "GPT-4o", d.Name)
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, models.TierPremium, d.Tier)
	assert.Equal(t, 2.50, d.CostPer1MInputTokens)
	assert.Equal(t, 10.00, d.CostPer1MOutputTokens)
	assert.True(t, d.SupportsVision)
	assert.True(t, d.SupportsFunctionCalling)

	assert.False(t, NewModelBuilder("dead").Unavailable().Build().Available)
}

func TestWithRouter_FillsDefaults(t *testing.T) {
	cfg := New().WithRouter(models.RouterConfig{}).Build()

	require.NotNil(t, cfg.Router)
	assert.Equal(t, models.DefaultModelID, cfg.Router.DefaultModel)
	assert.Equal(t, models.DefaultReferencePriceUSD, cfg.Router.ReferencePriceUSD)
}

func TestWithDecisionCache(t *testing.T) {
	cfg := New().WithDecisionCache(models.CacheConfig{
		Backend:      models.CacheBackendMemory,
		OpenAIAPIKey: "sk-test",
	}).Build()

	require.NotNil(t, cfg.Router)
	require.NotNil(t, cfg.Router.Cache)
	assert.True(t, cfg.Router.Cache.Enabled)
	assert.Equal(t, 0.9, cfg.Router.Cache.SemanticThreshold)
}

func TestWithManagedKeys(t *testing.T) {
	cfg := New().WithManagedKeys(pkgmodels.ManagedKeysConfig{
		AdminJWTSecret: "admin-secret",
		Database: models.DatabaseConfig{
			Type:     models.SQLite,
			FilePath: "managed.db",
		},
		APIKeys: models.APIKeyConfig{
			Enabled:       true,
			HeaderNames:   []string{"X-Custom-Key"},
			RequireForAll: true,
		},
	}).Build()

	require.NotNil(t, cfg.Database)
	assert.Equal(t, "managed.db", cfg.Database.FilePath)

	require.NotNil(t, cfg.Server.APIKeys)
	assert.True(t, cfg.Server.APIKeys.RequireForAll)
	assert.Equal(t, []string{"X-Custom-Key"}, cfg.Server.APIKeys.HeaderNames)

	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "admin-secret", cfg.Auth.JWTSecret)

	t.Run("zero key config falls back to defaults", func(t *testing.T) {
		cfg := New().WithManagedKeys(pkgmodels.ManagedKeysConfig{
			Database: models.DatabaseConfig{Type: models.SQLite, FilePath: "m.db"},
		}).Build()

		require.NotNil(t, cfg.Server.APIKeys)
		assert.True(t, cfg.Server.APIKeys.Enabled)
		assert.True(t, cfg.Server.APIKeys.AllowAnonymous)
		assert.False(t, cfg.Auth.Enabled)
	})
}

func TestMiddlewareOptions(t *testing.T) {
	b := New().
		WithRateLimit(250, 30*time.Second).
		WithTimeout(10 * time.Second).
		WithMiddleware(func(c *fiber.Ctx) error { return c.Next() })

	require.NotNil(t, b.GetRateLimitConfig())
	assert.Equal(t, 250, b.GetRateLimitConfig().Max)
	assert.Equal(t, 30*time.Second, b.GetRateLimitConfig().Expiration)

	require.NotNil(t, b.GetTimeoutConfig())
	assert.Equal(t, 10*time.Second, b.GetTimeoutConfig().Timeout)

	assert.Len(t, b.GetMiddlewares(), 1)
}

func TestFromYAML_MatchesFluent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8081"
  allowed_origins: "*"
  environment: development
  log_level: info
router:
  default_model: gemini-2.5-flash
  reference_price_usd: 100000
`), 0o600))

	fromYAML, err := FromYAML(path, nil)
	require.NoError(t, err)

	fluent := New().
		Port("8081").
		WithDefaultModel("gemini-2.5-flash").
		WithReferencePrice(100_000)

	assert.Equal(t, fluent.Build(), fromYAML.Build())
}
