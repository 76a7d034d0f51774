package api

import (
	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/pricefeed"
	"github.com/orangecat-xyz/autorouter/internal/services/router"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// AdminHandler serves the operator endpoints: price overrides and ledger
// deposits.
type AdminHandler struct {
	feed           *pricefeed.Service
	routerService  *router.Service
	creditsService *usage.CreditsService
}

func NewAdminHandler(feed *pricefeed.Service, routerService *router.Service, creditsService *usage.CreditsService) *AdminHandler {
	return &AdminHandler{
		feed:           feed,
		routerService:  routerService,
		creditsService: creditsService,
	}
}

// OverridePriceRequest pins the BTC/USD reference price.
type OverridePriceRequest struct {
	PriceUSD float64 `json:"price_usd"`
}

// OverridePrice pins the reference price until the next successful feed
// refresh or a restart.
func (h *AdminHandler) OverridePrice(c *fiber.Ctx) error {
	var req OverridePriceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if h.feed != nil {
		if err := h.feed.Override(req.PriceUSD); err != nil {
			return respondAppError(c, err, "Failed to override price")
		}
	} else {
		if req.PriceUSD <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "price_usd must be positive",
			})
		}
		h.routerService.SetReferencePrice(req.PriceUSD)
	}

	fiberlog.Infof("Admin override: reference price set to %.2f USD", req.PriceUSD)
	return c.JSON(fiber.Map{
		"btc_usd": h.routerService.ReferencePrice(),
		"source":  "override",
	})
}

// AddCreditsRequest deposits sats into an account.
type AddCreditsRequest struct {
	AccountID   string `json:"account_id"`
	AmountSats  int64  `json:"amount_sats"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// AddCredits records a ledger deposit.
func (h *AdminHandler) AddCredits(c *fiber.Ctx) error {
	var req AddCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if req.AccountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account_id is required",
		})
	}

	tx, err := h.creditsService.AddSats(c.Context(), models.AddSatsParams{
		AccountID:   req.AccountID,
		AmountSats:  req.AmountSats,
		Type:        models.CreditTransactionType(req.Type),
		Description: req.Description,
	})
	if err != nil {
		return respondAppError(c, err, "Failed to add credits")
	}

	fiberlog.Infof("Admin deposit: %d sats to %s (%s)", req.AmountSats, req.AccountID, tx.TransactionID)
	return c.Status(fiber.StatusCreated).JSON(tx)
}
