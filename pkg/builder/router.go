package builder

import "github.com/orangecat-xyz/autorouter/internal/models"

func (b *Builder) WithRouter(cfg models.RouterConfig) *Builder {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = models.DefaultModelID
	}
	if cfg.ReferencePriceUSD <= 0 {
		cfg.ReferencePriceUSD = models.DefaultReferencePriceUSD
	}

	b.cfg.Router = &cfg
	return b
}

func (b *Builder) WithDefaultModel(modelID string) *Builder {
	b.ensureRouter().DefaultModel = modelID
	return b
}

func (b *Builder) WithReferencePrice(priceUSD float64) *Builder {
	b.ensureRouter().ReferencePriceUSD = priceUSD
	return b
}

// WithCatalog replaces the built-in model catalog.
func (b *Builder) WithCatalog(descriptors ...models.ModelDescriptor) *Builder {
	b.ensureRouter().Models = descriptors
	return b
}

// WithDecisionCache enables semantic caching of routing decisions.
func (b *Builder) WithDecisionCache(cfg models.CacheConfig) *Builder {
	if cfg.SemanticThreshold == 0 {
		cfg.SemanticThreshold = 0.9
	}
	cfg.Enabled = true

	b.ensureRouter().Cache = &cfg
	return b
}

func (b *Builder) ensureRouter() *models.RouterConfig {
	if b.cfg.Router == nil {
		b.cfg.Router = &models.RouterConfig{}
	}
	return b.cfg.Router
}
