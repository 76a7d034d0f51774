// Package response fixes the JSON error envelope every endpoint shares.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// BaseService is embedded by endpoint response services.
type BaseService struct{}

func NewBaseService() *BaseService {
	return &BaseService{}
}

// ErrorResponse is the error envelope: {"error": {message, type, code}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Error sends the envelope with the given status.
func (s *BaseService) Error(c *fiber.Ctx, status int, message, errorType, code string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	})
}

// Success sends a 200 OK response with the provided data.
func (s *BaseService) Success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}
