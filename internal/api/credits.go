package api

import (
	"strconv"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/usage"

	"github.com/gofiber/fiber/v2"
)

// CreditsHandler serves the satoshi ledger.
type CreditsHandler struct {
	creditsService *usage.CreditsService
}

func NewCreditsHandler(creditsService *usage.CreditsService) *CreditsHandler {
	return &CreditsHandler{
		creditsService: creditsService,
	}
}

func (h *CreditsHandler) RegisterRoutes(router fiber.Router, basePath string) {
	group := router.Group(basePath)
	group.Get("/balance/:account_id", h.GetBalance)
	group.Post("/check", h.CheckCredits)
	group.Get("/transactions/:account_id", h.GetTransactionHistory)
}

// GetBalanceResponse represents the response for balance queries
type GetBalanceResponse struct {
	AccountID      string `json:"account_id"`
	BalanceSats    int64  `json:"balance_sats"`
	TotalDeposited int64  `json:"total_deposited"`
	TotalUsed      int64  `json:"total_used"`
}

// GetBalance retrieves the current sats balance for an account
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	accountID := c.Params("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account_id is required",
		})
	}

	credit, err := h.creditsService.GetAccountCredit(c.Context(), accountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get credit balance",
		})
	}

	return c.JSON(GetBalanceResponse{
		AccountID:      credit.AccountID,
		BalanceSats:    credit.BalanceSats,
		TotalDeposited: credit.TotalDeposited,
		TotalUsed:      credit.TotalUsed,
	})
}

// CheckCreditsRequest represents the request body for checking credits
type CheckCreditsRequest struct {
	AccountID    string `json:"account_id"`
	RequiredSats int64  `json:"required_sats"`
}

// CheckCreditsResponse represents the response for credit checks
type CheckCreditsResponse struct {
	HasEnoughSats bool  `json:"has_enough_sats"`
	BalanceSats   int64 `json:"balance_sats"`
	RequiredSats  int64 `json:"required_sats"`
	ShortfallSats int64 `json:"shortfall_sats,omitempty"`
}

// CheckCredits checks whether an account can cover a sats amount
func (h *CreditsHandler) CheckCredits(c *fiber.Ctx) error {
	var req CheckCreditsRequest
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
	if req.RequiredSats < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "required_sats cannot be negative",
		})
	}

	credit, err := h.creditsService.GetAccountCredit(c.Context(), req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get credit balance",
		})
	}

	hasEnough := credit.BalanceSats >= req.RequiredSats
	response := CheckCreditsResponse{
		HasEnoughSats: hasEnough,
		BalanceSats:   credit.BalanceSats,
		RequiredSats:  req.RequiredSats,
	}

	if !hasEnough {
		response.ShortfallSats = req.RequiredSats - credit.BalanceSats
	}

	return c.JSON(response)
}

// GetTransactionHistoryResponse wraps a page of ledger entries
type GetTransactionHistoryResponse struct {
	Transactions []models.CreditTransaction `json:"transactions"`
	Total        int                        `json:"total"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// GetTransactionHistory retrieves ledger history for an account
func (h *CreditsHandler) GetTransactionHistory(c *fiber.Ctx) error {
	accountID := c.Params("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account_id is required",
		})
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	transactions, err := h.creditsService.GetTransactionHistory(c.Context(), accountID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get transaction history",
		})
	}

	return c.JSON(GetTransactionHistoryResponse{
		Transactions: transactions,
		Total:        len(transactions),
		Limit:        limit,
		Offset:       offset,
	})
}
