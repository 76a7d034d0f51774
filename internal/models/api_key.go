package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// APIKey authenticates callers of the routing API. Budgets are denominated
// in satoshis.
type APIKey struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"not null;size:255" json:"name"`
	KeyHash         string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	KeyPrefix       string    `gorm:"not null;index;size:12" json:"key_prefix"`
	UserID          string    `gorm:"size:255;index;default:''" json:"user_id,omitzero"`
	Metadata        string    `gorm:"type:text;default:''" json:"metadata,omitzero"`
	Scopes          string    `gorm:"type:text;default:''" json:"scopes,omitzero"`
	RateLimitRpm    int       `gorm:"default:0" json:"rate_limit_rpm,omitzero"`
	BudgetSats      int64     `gorm:"default:0" json:"budget_sats,omitzero"`
	BudgetSatsUsed  int64     `gorm:"not null;default:0" json:"budget_sats_used"`
	BudgetResetType string    `gorm:"size:20;default:''" json:"budget_reset_type,omitzero"`
	BudgetResetAt   time.Time `json:"budget_reset_at,omitzero"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
	LastUsedAt      time.Time `json:"last_used_at,omitzero"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

type APIKeyConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	HeaderNames    []string `yaml:"header_names,omitempty" json:"header_names,omitzero"`
	RequireForAll  bool     `yaml:"require_for_all,omitempty" json:"require_for_all,omitzero"`
	AllowAnonymous bool     `yaml:"allow_anonymous,omitempty" json:"allow_anonymous,omitzero"`
}

func DefaultAPIKeyConfig() APIKeyConfig {
	return APIKeyConfig{
		Enabled:        false,
		HeaderNames:    []string{"X-API-Key"},
		RequireForAll:  false,
		AllowAnonymous: true,
	}
}

type APIKeyCreateRequest struct {
	Name            string    `json:"name" validate:"required,min=1,max=255"`
	UserID          string    `json:"user_id,omitzero"`
	Metadata        string    `json:"metadata,omitzero"`
	Scopes          []string  `json:"scopes,omitzero"`
	RateLimitRpm    int       `json:"rate_limit_rpm,omitzero"`
	BudgetSats      int64     `json:"budget_sats,omitzero"`
	BudgetResetType string    `json:"budget_reset_type,omitzero"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
}

type APIKeyResponse struct {
	ID                  uint      `json:"id"`
	Name                string    `json:"name"`
	Key                 string    `json:"key,omitzero"`
	KeyPrefix           string    `json:"key_prefix"`
	UserID              string    `json:"user_id,omitzero"`
	Metadata            string    `json:"metadata,omitzero"`
	Scopes              string    `json:"scopes,omitzero"`
	RateLimitRpm        int       `json:"rate_limit_rpm,omitzero"`
	BudgetSats          int64     `json:"budget_sats,omitzero"`
	BudgetSatsUsed      int64     `json:"budget_sats_used"`
	BudgetSatsRemaining int64     `json:"budget_sats_remaining,omitzero"`
	BudgetResetType     string    `json:"budget_reset_type,omitzero"`
	BudgetResetAt       time.Time `json:"budget_reset_at,omitzero"`
	IsActive            bool      `json:"is_active"`
	ExpiresAt           time.Time `json:"expires_at,omitzero"`
	LastUsedAt          time.Time `json:"last_used_at,omitzero"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

const (
	BudgetResetNone    = ""
	BudgetResetDaily   = "daily"
	BudgetResetWeekly  = "weekly"
	BudgetResetMonthly = "monthly"
)

// GenerateAPIKey returns a new random key. The ork_ prefix survives in the
// stored KeyPrefix so keys stay identifiable after hashing.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return "ork_" + base64.URLEncoding.EncodeToString(b)[:43], nil
}

func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}

func ExtractKeyPrefix(key string) string {
	if len(key) < 12 {
		return key
	}
	return key[:12]
}

// BudgetSatsRemaining returns the remaining sats budget; a limit of zero
// means unlimited and yields zero remaining (callers treat it as no cap).
func BudgetSatsRemaining(limit, used int64) int64 {
	if limit <= 0 {
		return 0
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
