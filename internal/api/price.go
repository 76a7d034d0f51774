package api

import (
	"time"

	"github.com/orangecat-xyz/autorouter/internal/services/pricefeed"
	"github.com/orangecat-xyz/autorouter/internal/services/router"

	"github.com/gofiber/fiber/v2"
)

const satsPerBTC = 100_000_000

// PriceHandler reports the BTC/USD reference price driving sats estimates.
type PriceHandler struct {
	feed          *pricefeed.Service
	routerService *router.Service
}

func NewPriceHandler(feed *pricefeed.Service, routerService *router.Service) *PriceHandler {
	return &PriceHandler{
		feed:          feed,
		routerService: routerService,
	}
}

// PriceResponse is the reference price as returned over HTTP.
type PriceResponse struct {
	BTCUSD      float64   `json:"btc_usd"`
	SatsPerUSD  float64   `json:"sats_per_usd"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// GetPrice returns the price the estimator is currently converting with.
func (h *PriceHandler) GetPrice(c *fiber.Ctx) error {
	resp := PriceResponse{
		// The estimator is the authority: it holds whatever the feed or an
		// operator last pushed into it.
		BTCUSD: h.routerService.ReferencePrice(),
		Source: "fallback",
	}

	if h.feed != nil {
		status := h.feed.Status()
		resp.Source = status.Source
		resp.LastUpdated = status.LastUpdated
	}

	if resp.BTCUSD > 0 {
		resp.SatsPerUSD = satsPerBTC / resp.BTCUSD
	}

	return c.JSON(resp)
}
