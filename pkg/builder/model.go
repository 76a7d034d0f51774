package builder

import "github.com/orangecat-xyz/autorouter/internal/models"

// ModelBuilder assembles one catalog entry.
type ModelBuilder struct {
	descriptor models.ModelDescriptor
}

func NewModelBuilder(id string) *ModelBuilder {
	return &ModelBuilder{
		descriptor: models.ModelDescriptor{
			ID:        id,
			Name:      id,
			Available: true,
		},
	}
}

func (mb *ModelBuilder) WithName(name string) *ModelBuilder {
	mb.descriptor.Name = name
	return mb
}

func (mb *ModelBuilder) WithProvider(provider string) *ModelBuilder {
	mb.descriptor.Provider = provider
	return mb
}

func (mb *ModelBuilder) WithTier(tier models.ModelTier) *ModelBuilder {
	mb.descriptor.Tier = tier
	return mb
}

// WithPricing sets the USD rates per million input and output tokens.
func (mb *ModelBuilder) WithPricing(inputPer1M, outputPer1M float64) *ModelBuilder {
	mb.descriptor.CostPer1MInputTokens = inputPer1M
	mb.descriptor.CostPer1MOutputTokens = outputPer1M
	return mb
}

func (mb *ModelBuilder) WithVision() *ModelBuilder {
	mb.descriptor.SupportsVision = true
	return mb
}

func (mb *ModelBuilder) WithFunctionCalling() *ModelBuilder {
	mb.descriptor.SupportsFunctionCalling = true
	return mb
}

func (mb *ModelBuilder) Unavailable() *ModelBuilder {
	mb.descriptor.Available = false
	return mb
}

func (mb *ModelBuilder) Build() models.ModelDescriptor {
	return mb.descriptor
}

// AddModel appends one entry to the catalog. The first AddModel call on a
// builder without an explicit catalog starts from empty, not from the
// built-in catalog.
func (b *Builder) AddModel(descriptor models.ModelDescriptor) *Builder {
	router := b.ensureRouter()
	router.Models = append(router.Models, descriptor)
	return b
}
