// Package usage persists routing decisions and maintains the satoshi
// accounting attached to them: per-key budgets and the account credit
// ledger.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"

	"gorm.io/gorm"
)

// Service writes and queries the routing decision log.
type Service struct {
	db             *gorm.DB
	creditsService *CreditsService
	budgetService  *budget.Service
}

func NewService(db *gorm.DB, creditsService *CreditsService, budgetService *budget.Service) *Service {
	return &Service{
		db:             db,
		creditsService: creditsService,
		budgetService:  budgetService,
	}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.RouteDecision{})
}

// RecordDecision persists one routing outcome and applies its estimated cost
// to the key budget and the account ledger.
func (s *Service) RecordDecision(ctx context.Context, params models.RecordDecisionParams) (*models.RouteDecision, error) {
	tokensTotal := params.TokensInput + params.TokensOutput
	if params.TokensTotal > 0 {
		tokensTotal = params.TokensTotal
	}

	decision := models.RouteDecision{
		RequestID:         params.RequestID,
		APIKeyID:          params.APIKeyID,
		UserID:            params.UserID,
		Model:             params.Model,
		Provider:          params.Provider,
		Tier:              params.Tier,
		TaskType:          params.TaskType,
		ComplexityScore:   params.ComplexityScore,
		TokensInput:       params.TokensInput,
		TokensOutput:      params.TokensOutput,
		TokensTotal:       tokensTotal,
		EstimatedCostSats: params.EstimatedCostSats,
		CacheTier:         params.CacheTier,
		Fallback:          params.Fallback,
		Reason:            params.Reason,
		LatencyMs:         params.LatencyMs,
		Metadata:          params.Metadata,
	}

	if err := s.db.WithContext(ctx).Create(&decision).Error; err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	if params.EstimatedCostSats > 0 && params.APIKeyID > 0 && s.budgetService != nil {
		if err := s.budgetService.IncrementSpend(ctx, params.APIKeyID, params.EstimatedCostSats); err != nil {
			return &decision, fmt.Errorf("decision recorded but failed to update key budget: %w", err)
		}
	}

	if params.EstimatedCostSats > 0 && params.UserID != "" && s.creditsService != nil {
		_, err := s.creditsService.DeductSats(ctx, models.DeductSatsParams{
			AccountID:   params.UserID,
			UserID:      params.UserID,
			AmountSats:  params.EstimatedCostSats,
			Description: fmt.Sprintf("Routing: %s - %s", params.Provider, params.Model),
			Metadata: models.Metadata{
				"provider":  params.Provider,
				"model":     params.Model,
				"tier":      params.Tier,
				"task_type": params.TaskType,
			},
			APIKeyID:   params.APIKeyID,
			DecisionID: decision.ID,
		})
		if err != nil {
			return &decision, fmt.Errorf("decision recorded but failed to deduct credits: %w", err)
		}
	}

	return &decision, nil
}

// GetDecisionsByAPIKey returns decision history, newest first.
func (s *Service) GetDecisionsByAPIKey(ctx context.Context, apiKeyID uint, limit, offset int) ([]models.RouteDecision, error) {
	var decisions []models.RouteDecision

	query := s.db.WithContext(ctx).
		Where("api_key_id = ?", apiKeyID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}

	return decisions, nil
}

// GetDecisionStats aggregates the decision log for one key over a window.
func (s *Service) GetDecisionStats(ctx context.Context, apiKeyID uint, startDate, endDate time.Time) (*models.DecisionStats, error) {
	var stats models.DecisionStats

	query := s.db.WithContext(ctx).
		Model(&models.RouteDecision{}).
		Where("api_key_id = ?", apiKeyID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	err := query.
		Select(
			"COUNT(*) as total_requests",
			"COALESCE(SUM(estimated_cost_sats), 0) as total_cost_sats",
			"COALESCE(SUM(tokens_total), 0) as total_tokens",
			"COALESCE(SUM(CASE WHEN fallback THEN 1 ELSE 0 END), 0) as fallback_requests",
			"COALESCE(SUM(CASE WHEN cache_tier != '' THEN 1 ELSE 0 END), 0) as cache_hits",
			"COALESCE(AVG(complexity_score), 0) as avg_complexity_score",
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms",
		).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get decision stats: %w", err)
	}

	return &stats, nil
}

// GetDecisionsByPeriod buckets decision stats by hour, day, week, or month.
func (s *Service) GetDecisionsByPeriod(ctx context.Context, apiKeyID uint, startDate, endDate time.Time, groupBy string) ([]models.DecisionsByPeriod, error) {
	query := s.db.WithContext(ctx).
		Model(&models.RouteDecision{}).
		Where("api_key_id = ?", apiKeyID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	var decisions []models.RouteDecision
	if err := query.Order("created_at ASC").Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}

	periodMap := make(map[string]*models.DecisionStats)
	order := make([]string, 0)
	for _, d := range decisions {
		periodKey := formatPeriod(d.CreatedAt, groupBy)

		if periodMap[periodKey] == nil {
			periodMap[periodKey] = &models.DecisionStats{}
			order = append(order, periodKey)
		}

		stats := periodMap[periodKey]
		stats.TotalRequests++
		stats.TotalCostSats += d.EstimatedCostSats
		stats.TotalTokens += int64(d.TokensTotal)
		if d.Fallback {
			stats.FallbackRequests++
		}
		if d.CacheTier != "" {
			stats.CacheHits++
		}
		// Running averages over the bucket.
		n := float64(stats.TotalRequests)
		stats.AvgComplexityScore += (d.ComplexityScore - stats.AvgComplexityScore) / n
		stats.AvgLatencyMs += (float64(d.LatencyMs) - stats.AvgLatencyMs) / n
	}

	results := make([]models.DecisionsByPeriod, 0, len(order))
	for _, period := range order {
		results = append(results, models.DecisionsByPeriod{
			Period: period,
			Stats:  *periodMap[period],
		})
	}

	return results, nil
}

// GetTierDistribution counts decisions per tier for one key.
func (s *Service) GetTierDistribution(ctx context.Context, apiKeyID uint, startDate, endDate time.Time) ([]models.TierCount, error) {
	query := s.db.WithContext(ctx).
		Model(&models.RouteDecision{}).
		Where("api_key_id = ?", apiKeyID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	var counts []models.TierCount
	if err := query.
		Select("tier", "COUNT(*) as count").
		Group("tier").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to get tier distribution: %w", err)
	}

	return counts, nil
}

func formatPeriod(t time.Time, groupBy string) string {
	switch groupBy {
	case "hour":
		return t.Format("2006-01-02 15:00:00")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
