package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/circuitbreaker"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	snapshotKey     = "autorouter:pricefeed:snapshot"
	snapshotTTL     = 24 * time.Hour
	refreshGroupKey = "refresh"
	breakerName     = "pricefeed"
)

// Price sources reported by Status.
const (
	SourceFallback = "fallback"
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
	SourceOverride = "override"
)

// PriceSink receives reference price updates. The routing engine's cost
// estimator satisfies this.
type PriceSink interface {
	SetReferencePrice(price float64)
}

// snapshot is the redis-persisted last known good price.
type snapshot struct {
	PriceUSD  float64   `json:"price_usd"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status describes the feed for health reporting.
type Status struct {
	Enabled      bool      `json:"enabled"`
	PriceUSD     float64   `json:"price_usd"`
	Source       string    `json:"source"`
	LastUpdated  time.Time `json:"last_updated,omitzero"`
	BreakerState string    `json:"breaker_state,omitzero"`
}

// Service keeps the BTC/USD reference price current. It never surfaces feed
// failures to callers of the routing engine: the sink always holds the best
// known price (live, snapshot, override, or configured fallback).
type Service struct {
	cfg     models.PriceFeedConfig
	client  *Client
	sink    PriceSink
	redis   *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	group   singleflight.Group

	mu          sync.RWMutex
	priceUSD    float64
	source      string
	lastUpdated time.Time

	started  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewService wires the feed. redisClient may be nil; the snapshot cache and
// the circuit breaker are skipped then.
func NewService(cfg *models.PriceFeedConfig, sink PriceSink, redisClient *redis.Client) *Service {
	feedCfg := models.DefaultPriceFeedConfig()
	if cfg != nil {
		feedCfg = *cfg
	}

	fallback := feedCfg.FallbackPriceUSD
	if fallback <= 0 {
		fallback = models.DefaultReferencePriceUSD
	}

	clientCfg := DefaultClientConfig(feedCfg.BaseURL)
	if feedCfg.TimeoutMs > 0 {
		clientCfg.Timeout = time.Duration(feedCfg.TimeoutMs) * time.Millisecond
	}
	if feedCfg.Retries > 0 {
		clientCfg.Retries = feedCfg.Retries
	}

	s := &Service{
		cfg:      feedCfg,
		client:   NewClientWithConfig(clientCfg),
		sink:     sink,
		redis:    redisClient,
		priceUSD: fallback,
		source:   SourceFallback,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	if redisClient != nil {
		s.breaker = circuitbreaker.NewWithConfig(redisClient, breakerName, circuitbreaker.ConfigFromModel(feedCfg.CircuitBreaker))
	}

	return s
}

// Start loads the snapshot, performs an initial refresh, and launches the
// background refresher. It returns immediately; the refresher runs until
// Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	if !s.cfg.Enabled {
		fiberlog.Info("pricefeed: disabled, using configured fallback price")
		s.push()
		close(s.doneChan)
		return
	}

	s.loadSnapshot(ctx)
	s.push()

	if _, err := s.Refresh(ctx); err != nil {
		fiberlog.Warnf("pricefeed: initial refresh failed, continuing with %s price: %v", s.Source(), err)
	}

	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneChan)

	interval := time.Duration(s.cfg.RefreshIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fiberlog.Infof("pricefeed: refresher started, interval %s", interval)

	for {
		select {
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				fiberlog.Warnf("pricefeed: refresh failed, keeping %s price %.2f: %v", s.Source(), s.CurrentPrice(), err)
			}
		case <-s.stopChan:
			fiberlog.Info("pricefeed: refresher stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("pricefeed: refresher stopped, context cancelled")
			return
		}
	}
}

// Refresh fetches a fresh price, deduplicating concurrent callers. On
// success the price becomes the live value; on failure the previous value
// stands.
func (s *Service) Refresh(ctx context.Context) (float64, error) {
	v, err, _ := s.group.Do(refreshGroupKey, func() (any, error) {
		if s.breaker != nil && !s.breaker.CanExecute() {
			return 0.0, fmt.Errorf("pricefeed circuit breaker is open")
		}

		price, err := s.client.FetchPrice(ctx)
		if err != nil {
			if s.breaker != nil {
				s.breaker.RecordFailure()
			}
			return 0.0, err
		}

		if s.breaker != nil {
			s.breaker.RecordSuccess()
		}

		s.setPrice(price, SourceLive)
		s.storeSnapshot(ctx, price)
		fiberlog.Debugf("pricefeed: refreshed BTC/USD to %.2f", price)
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Override pins the reference price until the next successful refresh or a
// restart.
func (s *Service) Override(price float64) error {
	if price <= 0 {
		return models.NewValidationError(fmt.Sprintf("override price must be positive, got %f", price), nil)
	}

	s.setPrice(price, SourceOverride)
	fiberlog.Infof("pricefeed: reference price manually set to %.2f", price)
	return nil
}

// CurrentPrice returns the best known BTC/USD price.
func (s *Service) CurrentPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priceUSD
}

// Source reports where the current price came from.
func (s *Service) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Status snapshots the feed state for health reporting.
func (s *Service) Status() Status {
	s.mu.RLock()
	st := Status{
		Enabled:     s.cfg.Enabled,
		PriceUSD:    s.priceUSD,
		Source:      s.source,
		LastUpdated: s.lastUpdated,
	}
	s.mu.RUnlock()

	if s.breaker != nil {
		st.BreakerState = s.breaker.GetState().String()
	}
	return st
}

// Stop halts the refresher and releases the HTTP client.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.doneChan
	}
	s.client.Close()
}

func (s *Service) setPrice(price float64, source string) {
	s.mu.Lock()
	s.priceUSD = price
	s.source = source
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	s.push()
}

func (s *Service) push() {
	if s.sink == nil {
		return
	}
	s.sink.SetReferencePrice(s.CurrentPrice())
}

func (s *Service) loadSnapshot(ctx context.Context) {
	if s.redis == nil {
		return
	}

	data, err := s.redis.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			fiberlog.Warnf("pricefeed: snapshot load failed: %v", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fiberlog.Warnf("pricefeed: snapshot corrupt, ignoring: %v", err)
		return
	}

	if snap.PriceUSD <= 0 {
		return
	}

	s.mu.Lock()
	s.priceUSD = snap.PriceUSD
	s.source = SourceSnapshot
	s.lastUpdated = snap.UpdatedAt
	s.mu.Unlock()

	fiberlog.Infof("pricefeed: restored snapshot price %.2f from %s", snap.PriceUSD, snap.UpdatedAt.Format(time.RFC3339))
}

func (s *Service) storeSnapshot(ctx context.Context, price float64) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(snapshot{PriceUSD: price, UpdatedAt: time.Now()})
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		fiberlog.Warnf("pricefeed: snapshot store failed: %v", err)
	}
}
