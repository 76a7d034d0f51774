package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/apikey"
	"github.com/orangecat-xyz/autorouter/internal/services/auth"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	keys    *apikey.Service
	budgets *budget.Service
	credits *usage.CreditsService
	db      *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "middleware_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.APIKey{},
		&models.AccountCredit{},
		&models.CreditTransaction{},
	))

	return &testEnv{
		keys:    apikey.NewService(db),
		budgets: budget.NewService(db),
		credits: usage.NewCreditsService(db),
		db:      db,
	}
}

func (e *testEnv) newApp(mw *APIKeyMiddleware, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append([]fiber.Handler{mw.RequireAPIKey()}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	app.Get("/ping", chain...)
	return app
}

func enabledConfig() *models.APIKeyConfig {
	return &models.APIKeyConfig{
		Enabled:        true,
		HeaderNames:    []string{"X-API-Key"},
		AllowAnonymous: false,
	}
}

func ping(t *testing.T, app *fiber.App, key string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAPIKeyMiddleware_Disabled(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, &models.APIKeyConfig{Enabled: false})

	resp := ping(t, env.newApp(mw), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIKeyMiddleware_MissingKey(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())

	resp := ping(t, env.newApp(mw), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIKeyMiddleware_AnonymousAllowedOnOptionalRoutes(t *testing.T) {
	env := newTestEnv(t)
	cfg := enabledConfig()
	cfg.AllowAnonymous = true
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, cfg)

	app := fiber.New()
	app.Get("/open", mw.Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString("open")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("require_for_all overrides anonymous access", func(t *testing.T) {
		strict := enabledConfig()
		strict.AllowAnonymous = true
		strict.RequireForAll = true
		strictMw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, strict)

		strictApp := fiber.New()
		strictApp.Get("/open", strictMw.Authenticate(), func(c *fiber.Ctx) error {
			return c.SendString("open")
		})

		resp, err := strictApp.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPIKeyMiddleware_ValidKey(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())

	created, err := env.keys.CreateAPIKey(context.Background(), &models.APIKeyCreateRequest{Name: "ok"})
	require.NoError(t, err)

	var seen *models.APIKey
	app := env.newApp(mw, func(c *fiber.Ctx) error {
		seen, _ = auth.GetAPIKey(c)
		return c.Next()
	})

	resp := ping(t, app, created.Key)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, seen)
	assert.Equal(t, created.ID, seen.ID)

	t.Run("bearer header works too", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+created.Key)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("garbage key is rejected", func(t *testing.T) {
		resp := ping(t, app, "ork_garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPIKeyMiddleware_RateLimit(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())

	created, err := env.keys.CreateAPIKey(context.Background(), &models.APIKeyCreateRequest{Name: "limited", RateLimitRpm: 2})
	require.NoError(t, err)

	app := env.newApp(mw)
	assert.Equal(t, http.StatusOK, ping(t, app, created.Key).StatusCode)
	assert.Equal(t, http.StatusOK, ping(t, app, created.Key).StatusCode)

	resp := ping(t, app, created.Key)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestAPIKeyMiddleware_BudgetExhausted(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())
	ctx := context.Background()

	created, err := env.keys.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "broke", BudgetSats: 10})
	require.NoError(t, err)

	app := env.newApp(mw)
	assert.Equal(t, http.StatusOK, ping(t, app, created.Key).StatusCode)

	require.NoError(t, env.budgets.IncrementSpend(ctx, created.ID, 10))
	assert.Equal(t, http.StatusPaymentRequired, ping(t, app, created.Key).StatusCode)
}

func TestAPIKeyMiddleware_AccountBalanceGate(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())
	ctx := context.Background()

	created, err := env.keys.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "billed", UserID: "acct_gate"})
	require.NoError(t, err)

	app := env.newApp(mw)

	// No deposits yet: the account auto-creates at zero and is rejected.
	assert.Equal(t, http.StatusPaymentRequired, ping(t, app, created.Key).StatusCode)

	_, err = env.credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_gate", AmountSats: 5})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ping(t, app, created.Key).StatusCode)
}

func TestAPIKeyMiddleware_RequireScope(t *testing.T) {
	env := newTestEnv(t)
	mw := NewAPIKeyMiddleware(env.keys, env.budgets, env.credits, enabledConfig())
	ctx := context.Background()

	scoped, err := env.keys.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "scoped", Scopes: []string{"usage:read"}})
	require.NoError(t, err)
	wildcard, err := env.keys.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "wild", Scopes: []string{"*"}})
	require.NoError(t, err)

	app := env.newApp(mw, mw.RequireScope("admin"))

	assert.Equal(t, http.StatusForbidden, ping(t, app, scoped.Key).StatusCode)
	assert.Equal(t, http.StatusOK, ping(t, app, wildcard.Key).StatusCode)
}
