package api

import (
	"errors"
	"strconv"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/apikey"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// APIKeyHandler exposes key management to the admin group.
type APIKeyHandler struct {
	service *apikey.Service
}

func NewAPIKeyHandler(service *apikey.Service) *APIKeyHandler {
	return &APIKeyHandler{
		service: service,
	}
}

func (h *APIKeyHandler) RegisterRoutes(router fiber.Router, basePath string) {
	group := router.Group(basePath)
	group.Post("/", h.CreateAPIKey)
	group.Get("/", h.ListAPIKeys)
	group.Get("/:id", h.GetAPIKey)
	group.Patch("/:id", h.UpdateAPIKey)
	group.Delete("/:id", h.RevokeAPIKey)
}

// CreateAPIKey mints a new key. The plaintext key appears only in this
// response.
func (h *APIKeyHandler) CreateAPIKey(c *fiber.Ctx) error {
	var req models.APIKeyCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.service.CreateAPIKey(c.Context(), &req)
	if err != nil {
		return respondAppError(c, err, "Failed to create API key")
	}

	fiberlog.Infof("Created API key %s (%s)", resp.KeyPrefix, resp.Name)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *APIKeyHandler) ListAPIKeys(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	keys, total, err := h.service.ListAPIKeys(c.Context(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list API keys",
		})
	}

	return c.JSON(fiber.Map{
		"api_keys": keys,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *APIKeyHandler) GetAPIKey(c *fiber.Ctx) error {
	id, err := parseKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	resp, err := h.service.GetAPIKey(c.Context(), id)
	if err != nil {
		return respondAppError(c, err, "Failed to get API key")
	}

	return c.JSON(resp)
}

func (h *APIKeyHandler) UpdateAPIKey(c *fiber.Ctx) error {
	id, err := parseKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	var updates map[string]any
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.service.UpdateAPIKey(c.Context(), id, updates); err != nil {
		return respondAppError(c, err, "Failed to update API key")
	}

	resp, err := h.service.GetAPIKey(c.Context(), id)
	if err != nil {
		return respondAppError(c, err, "Failed to get API key")
	}

	return c.JSON(resp)
}

// RevokeAPIKey deactivates a key. History stays queryable.
func (h *APIKeyHandler) RevokeAPIKey(c *fiber.Ctx) error {
	id, err := parseKeyID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid api key id",
		})
	}

	if err := h.service.RevokeAPIKey(c.Context(), id); err != nil {
		return respondAppError(c, err, "Failed to revoke API key")
	}

	fiberlog.Infof("Revoked API key %d", id)
	return c.JSON(fiber.Map{
		"revoked": true,
		"id":      id,
	})
}

func parseKeyID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// respondAppError maps typed service errors to their status; anything else
// becomes an opaque 500.
func respondAppError(c *fiber.Ctx, err error, fallbackMsg string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
			"error": appErr.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallbackMsg,
	})
}
