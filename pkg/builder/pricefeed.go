package builder

import "github.com/orangecat-xyz/autorouter/internal/models"

func (b *Builder) WithPriceFeed(cfg models.PriceFeedConfig) *Builder {
	b.cfg.PriceFeed = &cfg
	return b
}

// EnablePriceFeed turns on the live BTC/USD feed with default tuning.
func (b *Builder) EnablePriceFeed() *Builder {
	cfg := models.DefaultPriceFeedConfig()
	cfg.Enabled = true
	b.cfg.PriceFeed = &cfg
	return b
}

// WithRedis points the snapshot cache, circuit breaker, and redis-backed
// decision cache at one server.
func (b *Builder) WithRedis(url string) *Builder {
	b.cfg.Redis = &models.RedisConfig{URL: url}
	return b
}
