package models

import "time"

// RouteDecision is the persisted record of one routing outcome.
type RouteDecision struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID         string    `gorm:"size:100;index;default:''" json:"request_id,omitzero"`
	APIKeyID          uint      `gorm:"index;default:0" json:"api_key_id,omitzero"`
	UserID            string    `gorm:"size:255;index;default:''" json:"user_id,omitzero"`
	Model             string    `gorm:"size:100;index;default:''" json:"model"`
	Provider          string    `gorm:"size:50;default:''" json:"provider"`
	Tier              string    `gorm:"size:20;index;default:''" json:"tier"`
	TaskType          string    `gorm:"size:30;index;default:''" json:"task_type"`
	ComplexityScore   float64   `gorm:"default:0" json:"complexity_score"`
	TokensInput       int       `gorm:"default:0" json:"tokens_input"`
	TokensOutput      int       `gorm:"default:0" json:"tokens_output"`
	TokensTotal       int       `gorm:"default:0" json:"tokens_total"`
	EstimatedCostSats int64     `gorm:"default:0" json:"estimated_cost_sats"`
	CacheTier         string    `gorm:"size:20;default:''" json:"cache_tier,omitzero"`
	Fallback          bool      `gorm:"default:false" json:"fallback"`
	Reason            string    `gorm:"type:text;default:''" json:"reason,omitzero"`
	LatencyMs         int       `gorm:"default:0" json:"latency_ms"`
	Metadata          Metadata  `json:"metadata"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (RouteDecision) TableName() string {
	return "routing_decisions"
}

// RecordDecisionParams carries one decision into the async log writer.
type RecordDecisionParams struct {
	RequestID         string
	APIKeyID          uint
	UserID            string
	Model             string
	Provider          string
	Tier              string
	TaskType          string
	ComplexityScore   float64
	TokensInput       int
	TokensOutput      int
	// TokensTotal overrides the input+output sum when the split is unknown
	// (cache-served decisions carry only the total).
	TokensTotal       int
	EstimatedCostSats int64
	CacheTier         string
	Fallback          bool
	Reason            string
	LatencyMs         int
	Metadata          Metadata
}

// DecisionStats aggregates the decision log.
type DecisionStats struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalCostSats      int64   `json:"total_cost_sats"`
	TotalTokens        int64   `json:"total_tokens"`
	FallbackRequests   int64   `json:"fallback_requests"`
	CacheHits          int64   `json:"cache_hits"`
	AvgComplexityScore float64 `json:"avg_complexity_score"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
}

// DecisionsByPeriod buckets stats for dashboard charts.
type DecisionsByPeriod struct {
	Period string        `json:"period"`
	Stats  DecisionStats `json:"stats"`
}

// TierCount is one row of the tier distribution query.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int64  `json:"count"`
}
