package api

import (
	"strconv"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// UsageHandler serves the routing decision log.
type UsageHandler struct {
	usageService *usage.Service
}

func NewUsageHandler(usageService *usage.Service) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

func (h *UsageHandler) RegisterRoutes(router fiber.Router, basePath string) {
	group := router.Group(basePath)
	group.Get("/:apiKeyId", h.GetDecisionsByAPIKey)
	group.Get("/:apiKeyId/stats", h.GetDecisionStats)
	group.Get("/:apiKeyId/by-period", h.GetDecisionsByPeriod)
}

// GetDecisionsByAPIKey returns raw decision history, newest first.
func (h *UsageHandler) GetDecisionsByAPIKey(c *fiber.Ctx) error {
	apiKeyID, err := parseAPIKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	decisions, err := h.usageService.GetDecisionsByAPIKey(c.Context(), apiKeyID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get decisions",
		})
	}

	return c.JSON(decisions)
}

// UsageStatsResponse aggregates the window plus its tier distribution.
type UsageStatsResponse struct {
	models.DecisionStats
	Tiers []models.TierCount `json:"tiers"`
}

// GetDecisionStats returns aggregate stats for one key over a window.
func (h *UsageHandler) GetDecisionStats(c *fiber.Ctx) error {
	apiKeyID, err := parseAPIKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	startDate, endDate, err := parseDateWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	stats, err := h.usageService.GetDecisionStats(c.Context(), apiKeyID, startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get decision stats",
		})
	}

	tiers, err := h.usageService.GetTierDistribution(c.Context(), apiKeyID, startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get tier distribution",
		})
	}

	return c.JSON(UsageStatsResponse{
		DecisionStats: *stats,
		Tiers:         tiers,
	})
}

// GetDecisionsByPeriod returns stats bucketed by hour, day, week, or month.
func (h *UsageHandler) GetDecisionsByPeriod(c *fiber.Ctx) error {
	apiKeyID, err := parseAPIKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	startDate, endDate, err := parseDateWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	groupBy := c.Query("groupBy", "day")

	periods, err := h.usageService.GetDecisionsByPeriod(c.Context(), apiKeyID, startDate, endDate, groupBy)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get decisions by period",
		})
	}

	return c.JSON(periods)
}

func parseAPIKeyID(c *fiber.Ctx) (uint, error) {
	apiKeyID, err := strconv.ParseUint(c.Params("apiKeyId"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(apiKeyID), nil
}

// parseDateWindow reads optional RFC3339 startDate/endDate query params.
func parseDateWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	var startDate, endDate time.Time
	var err error

	if startDateStr := c.Query("startDate"); startDateStr != "" {
		startDate, err = time.Parse(time.RFC3339, startDateStr)
		if err != nil {
			return time.Time{}, time.Time{}, &dateError{"Invalid start date format"}
		}
	}
	if endDateStr := c.Query("endDate"); endDateStr != "" {
		endDate, err = time.Parse(time.RFC3339, endDateStr)
		if err != nil {
			return time.Time{}, time.Time{}, &dateError{"Invalid end date format"}
		}
	}

	return startDate, endDate, nil
}

type dateError struct {
	msg string
}

func (e *dateError) Error() string { return e.msg }
