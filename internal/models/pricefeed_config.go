package models

// PriceFeedConfig configures the BTC/USD reference price collaborator. The
// routing engine itself never touches the network; this feed pushes prices
// into it.
type PriceFeedConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// BaseURL of the CoinGecko-compatible price API.
	BaseURL           string `json:"base_url,omitzero" yaml:"base_url"`
	RefreshIntervalMs int    `json:"refresh_interval_ms,omitzero" yaml:"refresh_interval_ms"`
	TimeoutMs         int    `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
	Retries           int    `json:"retries,omitzero" yaml:"retries"`
	// FallbackPriceUSD is served when no live value was ever obtained.
	FallbackPriceUSD float64               `json:"fallback_price_usd,omitzero" yaml:"fallback_price_usd"`
	CircuitBreaker   *CircuitBreakerConfig `json:"circuit_breaker,omitzero" yaml:"circuit_breaker,omitempty"`
}

// DefaultPriceFeedConfig returns the standard CoinGecko setup.
func DefaultPriceFeedConfig() PriceFeedConfig {
	return PriceFeedConfig{
		Enabled:           true,
		BaseURL:           "https://api.coingecko.com/api/v3",
		RefreshIntervalMs: 60000,
		TimeoutMs:         5000,
		Retries:           2,
		FallbackPriceUSD:  DefaultReferencePriceUSD,
	}
}

// DefaultReferencePriceUSD is the BTC/USD rate assumed when neither the
// configuration nor the price feed supplies one.
const DefaultReferencePriceUSD = 100000.0
