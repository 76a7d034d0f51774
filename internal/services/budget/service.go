// Package budget enforces per-key satoshi budgets and their reset schedules.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// IncrementSpend adds sats to a key's consumed budget.
func (s *Service) IncrementSpend(ctx context.Context, apiKeyID uint, sats int64) error {
	if sats <= 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", apiKeyID).
		Update("budget_sats_used", gorm.Expr("budget_sats_used + ?", sats))

	if result.Error != nil {
		return fmt.Errorf("failed to increment budget spend: %w", result.Error)
	}

	return nil
}

// CheckBudget reports whether the key still has budget. A zero budget means
// the key is uncapped.
func (s *Service) CheckBudget(ctx context.Context, apiKeyID uint) (bool, *models.APIKey, error) {
	var apiKey models.APIKey
	if err := s.db.WithContext(ctx).First(&apiKey, apiKeyID).Error; err != nil {
		return false, nil, fmt.Errorf("failed to get API key: %w", err)
	}

	if apiKey.BudgetSats <= 0 {
		return true, &apiKey, nil
	}

	if apiKey.BudgetSatsUsed >= apiKey.BudgetSats {
		return false, &apiKey, nil
	}

	return true, &apiKey, nil
}

// ResetBudget zeroes a key's consumed budget and schedules the next reset.
func (s *Service) ResetBudget(ctx context.Context, apiKeyID uint, resetType string) error {
	nextReset := calculateNextReset(time.Now(), resetType)

	result := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", apiKeyID).
		Updates(map[string]any{
			"budget_sats_used": 0,
			"budget_reset_at":  nextReset,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to reset budget: %w", result.Error)
	}

	return nil
}

// ProcessScheduledBudgetResets resets every key whose reset time has passed.
func (s *Service) ProcessScheduledBudgetResets(ctx context.Context) error {
	now := time.Now()

	var apiKeys []models.APIKey
	if err := s.db.WithContext(ctx).
		Where("budget_reset_type != ? AND budget_reset_at <= ?", models.BudgetResetNone, now).
		Find(&apiKeys).Error; err != nil {
		return fmt.Errorf("failed to find API keys for budget reset: %w", err)
	}

	for _, apiKey := range apiKeys {
		nextReset := calculateNextReset(now, apiKey.BudgetResetType)

		if err := s.db.WithContext(ctx).
			Model(&models.APIKey{}).
			Where("id = ?", apiKey.ID).
			Updates(map[string]any{
				"budget_sats_used": 0,
				"budget_reset_at":  nextReset,
			}).Error; err != nil {
			return fmt.Errorf("failed to reset budget for key %d: %w", apiKey.ID, err)
		}
	}

	return nil
}

// NextReset returns the reset time that follows from for the given schedule.
// The zero time means no schedule.
func NextReset(from time.Time, resetType string) time.Time {
	return calculateNextReset(from, resetType)
}

func calculateNextReset(from time.Time, resetType string) time.Time {
	switch resetType {
	case models.BudgetResetDaily:
		return from.AddDate(0, 0, 1)
	case models.BudgetResetWeekly:
		return from.AddDate(0, 0, 7)
	case models.BudgetResetMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return time.Time{}
	}
}
