package router

import (
	"fmt"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/models"
)

// Score thresholds mapping complexity to a tier.
const (
	standardScoreFloor = 0.3
	premiumScoreFloor  = 0.7
)

// defaultReasonMarker appears in the reason string of every default-model
// fallback. Callers that care can match on it; there is no typed signal.
const defaultReasonMarker = "using default"

// Selector chooses one model from a read-only catalog. Selection is total:
// every branch ends in a usable RoutingResult, with the default model as the
// terminal fallback when all filters come up empty.
type Selector struct {
	catalog        *models.Catalog
	defaultModelID string
	estimator      *CostEstimator
}

// NewSelector creates a Selector over the given catalog. An empty
// defaultModelID falls back to the built-in default.
func NewSelector(catalog *models.Catalog, defaultModelID string, estimator *CostEstimator) *Selector {
	if defaultModelID == "" {
		defaultModelID = models.DefaultModelID
	}
	return &Selector{
		catalog:        catalog,
		defaultModelID: defaultModelID,
		estimator:      estimator,
	}
}

// Select resolves a complexity analysis plus request constraints to a model.
// It never fails; an unsatisfiable constraint set degrades to the default
// model rather than an error.
func (s *Selector) Select(analysis models.ComplexityAnalysis, req *models.RouteRequest) models.RoutingResult {
	if req == nil {
		req = &models.RouteRequest{}
	}

	tier := req.PreferredTier
	if !tier.IsValid() {
		tier = tierForScore(analysis.Score)
	}

	// Stage 1: target tier, then allowed ids, then capabilities.
	candidates := s.filterTier(tier)
	candidates = filterAllowed(candidates, req.AllowedModels)
	candidates = filterCapabilities(candidates, req)

	// Stage 2: widen to the whole catalog, keeping the other filters.
	if len(candidates) == 0 {
		candidates = filterCapabilities(filterAllowed(s.availableModels(), req.AllowedModels), req)
	}

	// Stage 3: cost ceiling, only when the caller set one.
	if req.MaxCostSats > 0 {
		withinBudget := candidates[:0:0]
		for _, m := range candidates {
			if s.estimator.EstimateSats(m, analysis.EstimatedTokens) <= req.MaxCostSats {
				withinBudget = append(withinBudget, m)
			}
		}
		candidates = withinBudget
	}

	if len(candidates) == 0 {
		return s.defaultResult(analysis)
	}

	chosen := cheapestByInputRate(candidates)
	return s.buildResult(chosen, analysis, buildReason(analysis, chosen))
}

// tierForScore maps a complexity score to the target tier.
func tierForScore(score float64) models.ModelTier {
	switch {
	case score < standardScoreFloor:
		return models.TierEconomy
	case score < premiumScoreFloor:
		return models.TierStandard
	default:
		return models.TierPremium
	}
}

// availableModels returns every available catalog entry in catalog order.
func (s *Selector) availableModels() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, s.catalog.Len())
	for _, m := range s.catalog.Models() {
		if m.Available {
			out = append(out, m)
		}
	}
	return out
}

// filterTier returns the available entries of one tier in catalog order.
func (s *Selector) filterTier(tier models.ModelTier) []models.ModelDescriptor {
	var out []models.ModelDescriptor
	for _, m := range s.catalog.Models() {
		if m.Available && m.Tier == tier {
			out = append(out, m)
		}
	}
	return out
}

func filterAllowed(candidates []models.ModelDescriptor, allowed []string) []models.ModelDescriptor {
	if len(allowed) == 0 {
		return candidates
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}

	out := candidates[:0:0]
	for _, m := range candidates {
		if _, ok := allowedSet[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

func filterCapabilities(candidates []models.ModelDescriptor, req *models.RouteRequest) []models.ModelDescriptor {
	if !req.RequiresVision && !req.RequiresFunctionCalling {
		return candidates
	}

	out := candidates[:0:0]
	for _, m := range candidates {
		if req.RequiresVision && !m.SupportsVision {
			continue
		}
		if req.RequiresFunctionCalling && !m.SupportsFunctionCalling {
			continue
		}
		out = append(out, m)
	}
	return out
}

// cheapestByInputRate picks the candidate with the lowest input rate. The
// strict comparison keeps the first minimum, so catalog order breaks ties.
func cheapestByInputRate(candidates []models.ModelDescriptor) models.ModelDescriptor {
	chosen := candidates[0]
	for _, m := range candidates[1:] {
		if m.CostPer1MInputTokens < chosen.CostPer1MInputTokens {
			chosen = m
		}
	}
	return chosen
}

// defaultResult is the terminal fallback: the hardcoded default model,
// annotated from its catalog entry when present.
func (s *Selector) defaultResult(analysis models.ComplexityAnalysis) models.RoutingResult {
	m, ok := s.catalog.Get(s.defaultModelID)
	if !ok {
		m = models.ModelDescriptor{ID: s.defaultModelID}
	}

	reason := fmt.Sprintf("%s: no model matched the request constraints, %s %s (%s tier)",
		complexityDescriptor(analysis.Score), defaultReasonMarker, displayName(m), m.Tier)
	return s.buildResult(m, analysis, reason)
}

func (s *Selector) buildResult(m models.ModelDescriptor, analysis models.ComplexityAnalysis, reason string) models.RoutingResult {
	return models.RoutingResult{
		Model:             m.ID,
		ModelName:         m.Name,
		Provider:          m.Provider,
		Tier:              m.Tier,
		Reason:            reason,
		EstimatedCostSats: s.estimator.EstimateSats(m, analysis.EstimatedTokens),
		ComplexityScore:   analysis.Score,
		TaskType:          analysis.TaskType,
		EstimatedTokens:   analysis.EstimatedTokens,
	}
}

// complexityDescriptor labels the score bucket for reason strings.
func complexityDescriptor(score float64) string {
	switch {
	case score < standardScoreFloor:
		return "Simple task"
	case score < premiumScoreFloor:
		return "Moderate complexity"
	default:
		return "Complex task"
	}
}

// buildReason describes the selection: score bucket, task type (omitted for
// plain conversation), and the chosen model.
func buildReason(analysis models.ComplexityAnalysis, m models.ModelDescriptor) string {
	parts := []string{complexityDescriptor(analysis.Score)}
	if analysis.TaskType != models.TaskConversation && analysis.TaskType != "" {
		parts = append(parts, fmt.Sprintf("%s task", analysis.TaskType))
	}
	return fmt.Sprintf("%s: selected %s (%s tier)", strings.Join(parts, ", "), displayName(m), m.Tier)
}

func displayName(m models.ModelDescriptor) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
