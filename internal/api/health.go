package api

import (
	"context"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/services/database"
	"github.com/orangecat-xyz/autorouter/internal/services/pricefeed"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports the state of the service and its dependencies.
type HealthHandler struct {
	redisClient *redis.Client
	db          *database.DB
	feed        *pricefeed.Service
}

func NewHealthHandler(redisClient *redis.Client, db *database.DB, feed *pricefeed.Service) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		db:          db,
		feed:        feed,
	}
}

// HealthCheck returns per-dependency status. Any unhealthy dependency makes
// the overall status degraded with a 503; disabled dependencies do not.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	redisStatus := h.checkRedis()
	databaseStatus := h.checkDatabase()
	priceFeedStatus := h.checkPriceFeed()

	overallStatus := "healthy"
	statusCode := fiber.StatusOK

	for _, status := range []string{redisStatus, databaseStatus, priceFeedStatus} {
		if status == "unhealthy" {
			overallStatus = "degraded"
			statusCode = fiber.StatusServiceUnavailable
			break
		}
	}

	response := fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"redis":      redisStatus,
			"database":   databaseStatus,
			"price_feed": priceFeedStatus,
		},
	}

	return c.Status(statusCode).JSON(response)
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}

	return "healthy"
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return "disabled"
	}

	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}

	return "healthy"
}

// checkPriceFeed treats a feed running on its static fallback as healthy:
// estimates stay correct, just against a stale price.
func (h *HealthHandler) checkPriceFeed() string {
	if h.feed == nil {
		return "disabled"
	}

	st := h.feed.Status()
	if !st.Enabled {
		return "disabled"
	}
	if st.PriceUSD <= 0 {
		return "unhealthy"
	}

	return "healthy"
}
