package select_model

import (
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/response"

	"github.com/gofiber/fiber/v2"
)

// ResponseService handles HTTP responses for model selection operations.
// It embeds the base response service and specializes it for routing.
type ResponseService struct {
	*response.BaseService
}

// NewResponseService creates a new response service
func NewResponseService() *ResponseService {
	return &ResponseService{
		BaseService: response.NewBaseService(),
	}
}

// SelectModelResponse is the routing result as returned over HTTP.
type SelectModelResponse struct {
	RequestID string `json:"request_id"`
	models.RoutingResult
}

// BadRequest sends a bad request error response specific to model selection
func (rs *ResponseService) BadRequest(c *fiber.Ctx, message string) error {
	return rs.Error(c, fiber.StatusBadRequest, message, "invalid_request_error", "bad_request")
}

// InternalError sends an internal server error response specific to model selection
func (rs *ResponseService) InternalError(c *fiber.Ctx, message string) error {
	return rs.Error(c, fiber.StatusInternalServerError, message, "internal_error", "model_selection_failed")
}

// AppError translates a typed application error into its HTTP response.
func (rs *ResponseService) AppError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return rs.Error(c, appErr.GetStatusCode(), appErr.Message, string(appErr.Type), appErr.Code)
}
