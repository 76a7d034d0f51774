package select_model

import (
	"context"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/router"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Service orchestrates one model selection: routing, the async decision log
// write, and response shaping.
type Service struct {
	router *router.Service
	worker *usage.Worker
}

// NewService creates a new select model service. The worker may be nil when
// persistence is disabled; decisions are then served without being logged.
func NewService(routerService *router.Service, worker *usage.Worker) *Service {
	return &Service{
		router: routerService,
		worker: worker,
	}
}

// SelectModel resolves the request to a model and queues the decision record.
func (s *Service) SelectModel(ctx context.Context, req *models.RouteRequest, requestID string, apiKeyID uint) *SelectModelResponse {
	fiberlog.Infof("[%s] Starting model selection for user: %s", requestID, userLabel(req.UserID))

	start := time.Now()
	result, analysis, cacheTier := s.router.Route(ctx, req, requestID)
	latencyMs := int(time.Since(start).Milliseconds())

	fiberlog.Infof("[%s] Model selection completed - provider: %s, model: %s, sats: %d",
		requestID, result.Provider, result.Model, result.EstimatedCostSats)

	if s.worker != nil {
		params := models.RecordDecisionParams{
			RequestID:         requestID,
			APIKeyID:          apiKeyID,
			UserID:            req.UserID,
			Model:             result.Model,
			Provider:          result.Provider,
			Tier:              string(result.Tier),
			TaskType:          string(result.TaskType),
			ComplexityScore:   result.ComplexityScore,
			EstimatedCostSats: result.EstimatedCostSats,
			CacheTier:         cacheTier,
			Fallback:          s.router.IsDefaultFallback(result),
			Reason:            result.Reason,
			LatencyMs:         latencyMs,
		}
		if analysis != nil {
			params.TokensInput = analysis.EstimatedInputTokens
			params.TokensOutput = analysis.EstimatedOutputTokens
		} else {
			params.TokensTotal = result.EstimatedTokens
		}
		s.worker.Submit(params, requestID)
	}

	return &SelectModelResponse{
		RequestID:     requestID,
		RoutingResult: *result,
	}
}

func userLabel(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}
