package middleware

import (
	"errors"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/apikey"
	"github.com/orangecat-xyz/autorouter/internal/services/auth"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// APIKeyMiddleware authenticates callers and enforces per-key rate limits,
// sats budgets, and account balances before a request reaches the router.
type APIKeyMiddleware struct {
	apiKeyService  *apikey.Service
	budgetService  *budget.Service
	creditsService *usage.CreditsService
	rateLimiter    *usage.RateLimiter
	config         *models.APIKeyConfig
}

func NewAPIKeyMiddleware(apiKeyService *apikey.Service, budgetService *budget.Service, creditsService *usage.CreditsService, config *models.APIKeyConfig) *APIKeyMiddleware {
	if config == nil {
		defaultConfig := models.DefaultAPIKeyConfig()
		config = &defaultConfig
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"X-API-Key"}
	}
	return &APIKeyMiddleware{
		apiKeyService:  apiKeyService,
		budgetService:  budgetService,
		creditsService: creditsService,
		rateLimiter:    usage.NewRateLimiter(),
		config:         config,
	}
}

// Authenticate validates a key when one is presented but lets anonymous
// requests through when the config allows them.
func (m *APIKeyMiddleware) Authenticate() fiber.Handler {
	return m.authenticate(false)
}

// RequireAPIKey rejects requests without a valid key.
func (m *APIKeyMiddleware) RequireAPIKey() fiber.Handler {
	return m.authenticate(true)
}

func (m *APIKeyMiddleware) authenticate(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled {
			return c.Next()
		}

		key := m.extractAPIKey(c)

		if key == "" {
			if !required && !m.config.RequireForAll && m.config.AllowAnonymous {
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "API key required",
			})
		}

		apiKey, err := m.apiKeyService.ValidateAPIKey(c.Context(), key)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired API key",
			})
		}

		if apiKey.RateLimitRpm > 0 && !m.rateLimiter.Allow(apiKey.ID, apiKey.RateLimitRpm) {
			c.Set("Retry-After", "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		if m.budgetService != nil && apiKey.BudgetSats > 0 {
			withinBudget, _, err := m.budgetService.CheckBudget(c.Context(), apiKey.ID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to check budget",
				})
			}
			if !withinBudget {
				return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
					"error": "Key budget exhausted",
				})
			}
		}

		// Settlement happens after the response, so an in-flight request may
		// overdraw. The gate here is only that the account is not already dry.
		if m.creditsService != nil && apiKey.UserID != "" {
			if err := m.creditsService.CheckSufficientSats(c.Context(), apiKey.UserID, 1); err != nil {
				var appErr *models.AppError
				if errors.As(err, &appErr) && appErr.Type == models.ErrorTypeInsufficientCredits {
					return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
						"error": "Account balance exhausted",
					})
				}
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to check account balance",
				})
			}
		}

		m.setLocals(c, apiKey)
		return c.Next()
	}
}

// RequireScope gates a route on API key scopes. The "*" scope grants
// everything.
func (m *APIKeyMiddleware) RequireScope(requiredScopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled {
			return c.Next()
		}

		authCtx := auth.GetAuthContext(c)
		if authCtx == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}

		for _, required := range requiredScopes {
			if !authCtx.HasScope(required) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Insufficient permissions",
				})
			}
		}

		return c.Next()
	}
}

func (m *APIKeyMiddleware) extractAPIKey(c *fiber.Ctx) string {
	for _, headerName := range m.config.HeaderNames {
		if key := c.Get(headerName); key != "" {
			return strings.TrimSpace(key)
		}
	}

	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return ""
}

func (m *APIKeyMiddleware) setLocals(c *fiber.Ctx, apiKey *models.APIKey) {
	var scopes []string
	if apiKey.Scopes != "" {
		scopes = strings.Split(apiKey.Scopes, ",")
	}

	auth.SetAuthContext(c, &auth.AuthContext{
		Type: auth.AuthTypeAPIKey,
		APIKey: &auth.APIKeyAuthContext{
			Key:    apiKey,
			UserID: apiKey.UserID,
			Scopes: scopes,
		},
	})

	c.Locals("api_key_id", apiKey.ID)
}
