package models

import "fmt"

// ModelTier buckets models by cost and capability.
type ModelTier string

const (
	TierEconomy  ModelTier = "economy"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// IsValid reports whether the tier is one of the known buckets.
func (t ModelTier) IsValid() bool {
	switch t {
	case TierEconomy, TierStandard, TierPremium:
		return true
	}
	return false
}

// DefaultModelID is the universal fallback: selection returns this model when
// every filter stage comes up empty.
const DefaultModelID = "gemini-2.5-flash"

// ModelDescriptor describes one selectable model in the routing catalog.
// Cost rates are USD per million tokens.
type ModelDescriptor struct {
	ID                      string    `json:"id" yaml:"id"`
	Name                    string    `json:"name" yaml:"name"`
	Provider                string    `json:"provider" yaml:"provider"`
	Tier                    ModelTier `json:"tier" yaml:"tier"`
	CostPer1MInputTokens    float64   `json:"cost_per_1m_input_tokens" yaml:"cost_per_1m_input_tokens"`
	CostPer1MOutputTokens   float64   `json:"cost_per_1m_output_tokens" yaml:"cost_per_1m_output_tokens"`
	SupportsVision          bool      `json:"supports_vision,omitzero" yaml:"supports_vision,omitempty"`
	SupportsFunctionCalling bool      `json:"supports_function_calling,omitzero" yaml:"supports_function_calling,omitempty"`
	Available               bool      `json:"available" yaml:"available"`
}

// Catalog is the immutable, ordered model registry the selector draws from.
// Iteration order is declaration order; it also breaks cost ties.
type Catalog struct {
	models []ModelDescriptor
	index  map[string]int
}

// NewCatalog builds a catalog from descriptors, rejecting blank or duplicate
// ids and unknown tiers.
func NewCatalog(models []ModelDescriptor) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog requires at least one model")
	}

	c := &Catalog{
		models: make([]ModelDescriptor, len(models)),
		index:  make(map[string]int, len(models)),
	}
	copy(c.models, models)

	for i, m := range c.models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if !m.Tier.IsValid() {
			return nil, fmt.Errorf("model %s has unknown tier %q", m.ID, m.Tier)
		}
		if _, dup := c.index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		c.index[m.ID] = i
	}

	return c, nil
}

// Get looks up a descriptor by id.
func (c *Catalog) Get(id string) (ModelDescriptor, bool) {
	i, ok := c.index[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return c.models[i], true
}

// Has reports whether the catalog contains the id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Models returns the descriptors in catalog order. Callers must not modify
// the returned slice.
func (c *Catalog) Models() []ModelDescriptor {
	return c.models
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.models)
}

// DefaultCatalogModels returns the built-in registry used when the
// configuration supplies no catalog of its own.
func DefaultCatalogModels() []ModelDescriptor {
	return []ModelDescriptor{
		// Economy
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "gemini", Tier: TierEconomy, CostPer1MInputTokens: 0.30, CostPer1MOutputTokens: 1.20, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", Tier: TierEconomy, CostPer1MInputTokens: 0.15, CostPer1MOutputTokens: 0.60, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "gemini", Tier: TierEconomy, CostPer1MInputTokens: 0.10, CostPer1MOutputTokens: 0.40, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gpt-5-nano", Name: "GPT-5 Nano", Provider: "openai", Tier: TierEconomy, CostPer1MInputTokens: 0.05, CostPer1MOutputTokens: 0.40, SupportsFunctionCalling: true, Available: true},
		{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B Instant", Provider: "groq", Tier: TierEconomy, CostPer1MInputTokens: 0.05, CostPer1MOutputTokens: 0.08, SupportsFunctionCalling: true, Available: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "anthropic", Tier: TierEconomy, CostPer1MInputTokens: 0.80, CostPer1MOutputTokens: 4.00, SupportsFunctionCalling: true, Available: true},

		// Standard
		{ID: "gpt-5", Name: "GPT-5", Provider: "openai", Tier: TierStandard, CostPer1MInputTokens: 1.25, CostPer1MOutputTokens: 10.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "gemini", Tier: TierStandard, CostPer1MInputTokens: 1.25, CostPer1MOutputTokens: 10.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", Tier: TierStandard, CostPer1MInputTokens: 2.50, CostPer1MOutputTokens: 10.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", Provider: "anthropic", Tier: TierStandard, CostPer1MInputTokens: 3.00, CostPer1MOutputTokens: 15.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: "deepseek", Tier: TierStandard, CostPer1MInputTokens: 0.27, CostPer1MOutputTokens: 1.10, SupportsFunctionCalling: true, Available: true},

		// Premium
		{ID: "claude-opus-4.1", Name: "Claude Opus 4.1", Provider: "anthropic", Tier: TierPremium, CostPer1MInputTokens: 15.00, CostPer1MOutputTokens: 75.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "gpt-5-pro", Name: "GPT-5 Pro", Provider: "openai", Tier: TierPremium, CostPer1MInputTokens: 15.00, CostPer1MOutputTokens: 75.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "grok-4", Name: "Grok 4", Provider: "grok", Tier: TierPremium, CostPer1MInputTokens: 15.00, CostPer1MOutputTokens: 75.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
		{ID: "o3", Name: "OpenAI o3", Provider: "openai", Tier: TierPremium, CostPer1MInputTokens: 60.00, CostPer1MOutputTokens: 240.00, SupportsVision: true, SupportsFunctionCalling: true, Available: true},
	}
}

// DefaultCatalog builds the built-in registry. The entries are compile-time
// constants, so a construction failure is a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultCatalogModels())
	if err != nil {
		panic("built-in catalog invalid: " + err.Error())
	}
	return c
}
