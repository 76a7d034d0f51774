package api

import (
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/router"

	"github.com/gofiber/fiber/v2"
)

// ModelsHandler serves the model catalog.
type ModelsHandler struct {
	routerService *router.Service
}

func NewModelsHandler(routerService *router.Service) *ModelsHandler {
	return &ModelsHandler{
		routerService: routerService,
	}
}

// ListModelsResponse is the catalog as returned over HTTP.
type ListModelsResponse struct {
	Models       []models.ModelDescriptor `json:"models"`
	DefaultModel string                   `json:"default_model"`
	Count        int                      `json:"count"`
}

// ListModels returns every catalog entry plus the configured default.
func (h *ModelsHandler) ListModels(c *fiber.Ctx) error {
	catalog := h.routerService.Catalog().Models()

	return c.JSON(ListModelsResponse{
		Models:       catalog,
		DefaultModel: h.routerService.DefaultModelID(),
		Count:        len(catalog),
	})
}
