package api

import (
	"fmt"

	"github.com/orangecat-xyz/autorouter/internal/services/auth"
	"github.com/orangecat-xyz/autorouter/internal/services/select_model"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// SelectModelHandler handles model selection requests. It resolves which
// model should serve a message without executing any completion.
type SelectModelHandler struct {
	requestSvc     *select_model.RequestService
	selectModelSvc *select_model.Service
	responseSvc    *select_model.ResponseService
}

// NewSelectModelHandler initializes the select model handler with injected dependencies.
func NewSelectModelHandler(
	requestSvc *select_model.RequestService,
	selectModelSvc *select_model.Service,
	responseSvc *select_model.ResponseService,
) *SelectModelHandler {
	return &SelectModelHandler{
		requestSvc:     requestSvc,
		selectModelSvc: selectModelSvc,
		responseSvc:    responseSvc,
	}
}

// SelectModel handles the model selection HTTP request.
func (h *SelectModelHandler) SelectModel(c *fiber.Ctx) error {
	reqID := h.requestSvc.GetRequestID(c)
	fiberlog.Infof("[%s] starting model selection request", reqID)

	routeReq, err := h.requestSvc.ParseRouteRequest(c)
	if err != nil {
		return h.responseSvc.BadRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	if err := h.requestSvc.ValidateRouteRequest(routeReq); err != nil {
		return h.responseSvc.BadRequest(c, err.Error())
	}

	// An authenticated key pins the decision to its owner unless the body
	// names a user explicitly.
	var apiKeyID uint
	if key, ok := auth.GetAPIKey(c); ok {
		apiKeyID = key.ID
		if routeReq.UserID == "" {
			routeReq.UserID = key.UserID
		}
	}

	resp := h.selectModelSvc.SelectModel(c.UserContext(), routeReq, reqID, apiKeyID)

	return h.responseSvc.Success(c, resp)
}
