package router

import (
	"math"
	"sync"

	"github.com/orangecat-xyz/autorouter/internal/models"
)

const (
	satsPerBTC = 100_000_000

	// Estimated total tokens split into input and output volume.
	inputShare  = 0.4
	outputShare = 0.6

	tokensPerMillion = 1_000_000
)

// CostEstimator converts model token rates into sats using a BTC/USD
// reference price. The price is the only mutable state in the routing core;
// writers and readers may interleave freely (last write wins).
type CostEstimator struct {
	mu    sync.RWMutex
	price float64 // USD per BTC
}

// NewCostEstimator creates an estimator seeded with the given reference
// price. Non-positive prices fall back to the built-in default.
func NewCostEstimator(referencePriceUSD float64) *CostEstimator {
	if referencePriceUSD <= 0 {
		referencePriceUSD = models.DefaultReferencePriceUSD
	}
	return &CostEstimator{price: referencePriceUSD}
}

// ReferencePrice returns the current BTC/USD reference price.
func (e *CostEstimator) ReferencePrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.price
}

// SetReferencePrice replaces the reference price. Non-positive values are
// ignored.
func (e *CostEstimator) SetReferencePrice(priceUSD float64) {
	if priceUSD <= 0 {
		return
	}
	e.mu.Lock()
	e.price = priceUSD
	e.mu.Unlock()
}

// EstimateUSD prices totalTokens against the model's rates, assuming a
// 40% input / 60% output split.
func (e *CostEstimator) EstimateUSD(m models.ModelDescriptor, totalTokens int) float64 {
	if totalTokens <= 0 {
		return 0
	}

	inputTokens := float64(totalTokens) * inputShare
	outputTokens := float64(totalTokens) * outputShare

	return inputTokens/tokensPerMillion*m.CostPer1MInputTokens +
		outputTokens/tokensPerMillion*m.CostPer1MOutputTokens
}

// EstimateSats converts the USD estimate into whole sats, rounded up.
func (e *CostEstimator) EstimateSats(m models.ModelDescriptor, totalTokens int) int64 {
	costUSD := e.EstimateUSD(m, totalTokens)
	if costUSD <= 0 {
		return 0
	}

	sats := int64(math.Ceil(costUSD * satsPerBTC / e.ReferencePrice()))
	if sats < 0 {
		return 0
	}
	return sats
}
