package select_model

import (
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/request"

	"github.com/gofiber/fiber/v2"
)

// RequestService handles request parsing and validation for model selection.
// It embeds the base request service and specializes it for routing requests.
type RequestService struct {
	*request.BaseService
}

// NewRequestService creates a new request service for model selection
func NewRequestService() *RequestService {
	return &RequestService{
		BaseService: request.NewBaseService(),
	}
}

// ParseRouteRequest parses the routing request body
func (rs *RequestService) ParseRouteRequest(c *fiber.Ctx) (*models.RouteRequest, error) {
	var req models.RouteRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ValidateRouteRequest validates the parsed routing request. Empty messages
// and unknown tiers are absorbed by selection itself, so only the inputs it
// cannot interpret are rejected here.
func (rs *RequestService) ValidateRouteRequest(req *models.RouteRequest) error {
	if req.MaxCostSats < 0 {
		return &ValidationError{Field: "max_cost_sats", Message: "max_cost_sats cannot be negative"}
	}

	for _, turn := range req.History {
		if turn.Role == "" {
			return &ValidationError{Field: "conversation_history", Message: "history turns require a role"}
		}
	}

	return nil
}

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
