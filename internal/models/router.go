// Package models defines the data model for complexity analysis, model
// selection, and the surrounding service configuration.
package models

// RouterConfig configures the routing engine.
type RouterConfig struct {
	// DefaultModel overrides the built-in fallback model id.
	DefaultModel string `json:"default_model,omitzero" yaml:"default_model"`
	// ReferencePriceUSD seeds the BTC/USD price used for sats conversion
	// until the price feed delivers a live value.
	ReferencePriceUSD float64 `json:"reference_price_usd,omitzero" yaml:"reference_price_usd"`
	// Models replaces the built-in catalog when non-empty.
	Models []ModelDescriptor `json:"models,omitzero" yaml:"models"`
	// Cache enables the semantic decision cache.
	Cache *CacheConfig `json:"cache,omitzero" yaml:"cache"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	URL string `json:"url,omitzero" yaml:"url"`
}

// TaskType classifies the apparent intent of a message.
type TaskType string

const (
	TaskSimpleQuestion   TaskType = "simple_question"
	TaskCoding           TaskType = "coding"
	TaskAnalysis         TaskType = "analysis"
	TaskCreative         TaskType = "creative"
	TaskResearch         TaskType = "research"
	TaskConversation     TaskType = "conversation"
	TaskTranslation      TaskType = "translation"
	TaskSummarization    TaskType = "summarization"
	TaskComplexReasoning TaskType = "complex_reasoning"
)

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RouteRequest asks for a model recommendation for one message.
type RouteRequest struct {
	// The message to analyze.
	Message string `json:"message"`
	// Prior turns, oldest first.
	History []Message `json:"conversation_history,omitzero"`
	// Restricts selection to these model ids when non-empty.
	AllowedModels []string `json:"allowed_models,omitzero"`
	// Overrides the complexity-derived tier when set.
	PreferredTier ModelTier `json:"preferred_tier,omitzero"`
	// Drops candidates whose estimated cost exceeds this many sats (>0 to activate).
	MaxCostSats int64 `json:"max_cost_sats,omitzero"`
	// Capability requirements.
	RequiresVision          bool `json:"requires_vision,omitzero"`
	RequiresFunctionCalling bool `json:"requires_function_calling,omitzero"`
	// Optional caller identifier for the decision log.
	UserID string `json:"user_id,omitzero"`
}

// ComplexityAnalysis is the scored interpretation of one message.
type ComplexityAnalysis struct {
	Score                 float64  `json:"score"`
	TaskType              TaskType `json:"task_type"`
	EstimatedInputTokens  int      `json:"estimated_input_tokens"`
	EstimatedOutputTokens int      `json:"estimated_output_tokens"`
	// EstimatedTokens is the input + output sum the cost estimator works from.
	EstimatedTokens int    `json:"estimated_tokens"`
	Reason          string `json:"reason"`
}

// RoutingResult is the outcome of one selection. Selection never fails: the
// degenerate branches all terminate in the default model, not an error.
type RoutingResult struct {
	Model             string    `json:"model"`
	ModelName         string    `json:"model_name,omitzero"`
	Provider          string    `json:"provider,omitzero"`
	Tier              ModelTier `json:"tier"`
	Reason            string    `json:"reason"`
	EstimatedCostSats int64     `json:"estimated_cost_sats"`
	ComplexityScore   float64   `json:"complexity_score"`
	TaskType          TaskType  `json:"task_type,omitzero"`
	EstimatedTokens   int       `json:"estimated_tokens,omitzero"`
	CacheTier         string    `json:"cache_tier,omitzero"`
}

// IsValid reports whether the result identifies a model.
func (r *RoutingResult) IsValid() bool {
	return r != nil && r.Model != ""
}

// Cache tier annotations for RoutingResult.CacheTier.
const (
	CacheTierSemanticExact   = "semantic_exact"
	CacheTierSemanticSimilar = "semantic_similar"
)

// CacheResult represents the result of a decision cache lookup.
type CacheResult struct {
	Response *RoutingResult `json:"response,omitzero"`
	Source   string         `json:"source,omitzero"`
	Hit      bool           `json:"hit"`
}
