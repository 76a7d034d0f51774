// Package apikey manages the keys that authenticate routing API callers.
// Keys are stored as sha256 hashes; the plaintext is returned exactly once,
// at creation.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.APIKey{})
}

// CreateAPIKey mints a new key. The response carries the plaintext key; it
// is not recoverable afterwards.
func (s *Service) CreateAPIKey(ctx context.Context, req *models.APIKeyCreateRequest) (*models.APIKeyResponse, error) {
	if req == nil || req.Name == "" {
		return nil, models.NewValidationError("api key name is required", nil)
	}

	key, err := models.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	apiKey := &models.APIKey{
		Name:            req.Name,
		KeyHash:         models.HashAPIKey(key),
		KeyPrefix:       models.ExtractKeyPrefix(key),
		UserID:          req.UserID,
		Metadata:        req.Metadata,
		Scopes:          strings.Join(req.Scopes, ","),
		RateLimitRpm:    req.RateLimitRpm,
		BudgetSats:      req.BudgetSats,
		BudgetResetType: req.BudgetResetType,
		IsActive:        true,
		ExpiresAt:       req.ExpiresAt,
	}

	if req.BudgetResetType != models.BudgetResetNone {
		apiKey.BudgetResetAt = budget.NextReset(time.Now(), req.BudgetResetType)
	}

	if err := s.db.WithContext(ctx).Create(apiKey).Error; err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}

	resp := toResponse(apiKey)
	resp.Key = key
	return resp, nil
}

// ValidateAPIKey resolves a plaintext key to its active record and bumps
// last_used_at.
func (s *Service) ValidateAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	if key == "" {
		return nil, models.NewAuthenticationError("API key is required")
	}

	keyHash := models.HashAPIKey(key)
	var apiKey models.APIKey

	if err := s.db.WithContext(ctx).Where("key_hash = ? AND is_active = ?", keyHash, true).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewAuthenticationError("invalid API key")
		}
		return nil, fmt.Errorf("failed to validate API key: %w", err)
	}

	if !apiKey.ExpiresAt.IsZero() && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, models.NewAuthenticationError("API key has expired")
	}

	s.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", apiKey.ID).UpdateColumn("last_used_at", time.Now())

	return &apiKey, nil
}

func (s *Service) ListAPIKeys(ctx context.Context, limit, offset int) ([]models.APIKeyResponse, int64, error) {
	var apiKeys []models.APIKey
	var total int64

	if err := s.db.WithContext(ctx).Model(&models.APIKey{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count API keys: %w", err)
	}

	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&apiKeys).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list API keys: %w", err)
	}

	responses := make([]models.APIKeyResponse, len(apiKeys))
	for i := range apiKeys {
		responses[i] = *toResponse(&apiKeys[i])
	}

	return responses, total, nil
}

func (s *Service) GetAPIKey(ctx context.Context, id uint) (*models.APIKeyResponse, error) {
	var apiKey models.APIKey

	if err := s.db.WithContext(ctx).First(&apiKey, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("API key")
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return toResponse(&apiKey), nil
}

// RevokeAPIKey deactivates a key without deleting its usage history.
func (s *Service) RevokeAPIKey(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke API key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("API key")
	}
	return nil
}

// UpdateAPIKey applies a partial update. Only the allowlisted columns may
// change; the key hash and prefix are immutable.
func (s *Service) UpdateAPIKey(ctx context.Context, id uint, updates map[string]any) error {
	allowedFields := map[string]bool{
		"name":              true,
		"metadata":          true,
		"scopes":            true,
		"rate_limit_rpm":    true,
		"budget_sats":       true,
		"budget_reset_type": true,
		"is_active":         true,
		"expires_at":        true,
	}

	filteredUpdates := make(map[string]any)
	for k, v := range updates {
		if allowedFields[k] {
			filteredUpdates[k] = v
		}
	}

	if len(filteredUpdates) == 0 {
		return models.NewValidationError("no updatable fields in request", nil)
	}

	if resetType, ok := filteredUpdates["budget_reset_type"].(string); ok {
		filteredUpdates["budget_reset_at"] = budget.NextReset(time.Now(), resetType)
	}

	result := s.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).Updates(filteredUpdates)
	if result.Error != nil {
		return fmt.Errorf("failed to update API key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("API key")
	}
	return nil
}

func toResponse(k *models.APIKey) *models.APIKeyResponse {
	return &models.APIKeyResponse{
		ID:                  k.ID,
		Name:                k.Name,
		KeyPrefix:           k.KeyPrefix,
		UserID:              k.UserID,
		Metadata:            k.Metadata,
		Scopes:              k.Scopes,
		RateLimitRpm:        k.RateLimitRpm,
		BudgetSats:          k.BudgetSats,
		BudgetSatsUsed:      k.BudgetSatsUsed,
		BudgetSatsRemaining: models.BudgetSatsRemaining(k.BudgetSats, k.BudgetSatsUsed),
		BudgetResetType:     k.BudgetResetType,
		BudgetResetAt:       k.BudgetResetAt,
		IsActive:            k.IsActive,
		ExpiresAt:           k.ExpiresAt,
		LastUsedAt:          k.LastUsedAt,
		CreatedAt:           k.CreatedAt,
		UpdatedAt:           k.UpdatedAt,
	}
}
