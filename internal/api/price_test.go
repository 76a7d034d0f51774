package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orangecat-xyz/autorouter/internal/services/pricefeed"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPrice(t *testing.T, h *PriceHandler) PriceResponse {
	t.Helper()

	app := fiber.New()
	app.Get("/price", h.GetPrice)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/price", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body PriceResponse
	decodeBody(t, resp, &body)
	return body
}

func TestGetPrice_WithoutFeed(t *testing.T) {
	h := NewPriceHandler(nil, newTestRouter(t))

	body := getPrice(t, h)
	assert.Equal(t, float64(100_000), body.BTCUSD)
	assert.Equal(t, float64(1000), body.SatsPerUSD)
	assert.Equal(t, "fallback", body.Source)
}

func TestGetPrice_ReflectsOverride(t *testing.T) {
	routerSvc := newTestRouter(t)
	feed := pricefeed.NewService(nil, routerSvc, nil)
	h := NewPriceHandler(feed, routerSvc)

	body := getPrice(t, h)
	assert.Equal(t, "fallback", body.Source)
	assert.Equal(t, float64(100_000), body.BTCUSD)

	require.NoError(t, feed.Override(125_000))

	body = getPrice(t, h)
	assert.Equal(t, "override", body.Source)
	assert.Equal(t, float64(125_000), body.BTCUSD)
	assert.InDelta(t, 800, body.SatsPerUSD, 0.001)
	assert.False(t, body.LastUpdated.IsZero())
}
