package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/budget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "usage_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.RouteDecision{},
		&models.APIKey{},
		&models.AccountCredit{},
		&models.CreditTransaction{},
	))

	return db
}

func newTestServices(t *testing.T) (*Service, *CreditsService, *budget.Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	credits := NewCreditsService(db)
	budgets := budget.NewService(db)
	return NewService(db, credits, budgets), credits, budgets, db
}

func decisionParams() models.RecordDecisionParams {
	return models.RecordDecisionParams{
		RequestID:         "req_0011aabb",
		Model:             "gpt-5-nano",
		Provider:          "openai",
		Tier:              "economy",
		TaskType:          "coding",
		ComplexityScore:   0.45,
		TokensInput:       320,
		TokensOutput:      640,
		EstimatedCostSats: 12,
		Reason:            "Moderate complexity, coding task: selected GPT-5 Nano (economy tier)",
		LatencyMs:         4,
	}
}

func TestRecordDecision(t *testing.T) {
	svc, _, _, db := newTestServices(t)

	decision, err := svc.RecordDecision(context.Background(), decisionParams())
	require.NoError(t, err)
	require.NotZero(t, decision.ID)

	var stored models.RouteDecision
	require.NoError(t, db.First(&stored, decision.ID).Error)
	assert.Equal(t, "gpt-5-nano", stored.Model)
	assert.Equal(t, 960, stored.TokensTotal)
	assert.Equal(t, int64(12), stored.EstimatedCostSats)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestRecordDecision_IncrementsKeyBudget(t *testing.T) {
	svc, _, _, db := newTestServices(t)

	key := models.APIKey{Name: "test", KeyHash: "h1", KeyPrefix: "ork_aaaa", BudgetSats: 100, IsActive: true}
	require.NoError(t, db.Create(&key).Error)

	params := decisionParams()
	params.APIKeyID = key.ID

	_, err := svc.RecordDecision(context.Background(), params)
	require.NoError(t, err)

	var updated models.APIKey
	require.NoError(t, db.First(&updated, key.ID).Error)
	assert.Equal(t, int64(12), updated.BudgetSatsUsed)
}

func TestRecordDecision_DeductsAccountCredits(t *testing.T) {
	svc, credits, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_1", AmountSats: 100})
	require.NoError(t, err)

	params := decisionParams()
	params.UserID = "acct_1"

	_, err = svc.RecordDecision(ctx, params)
	require.NoError(t, err)

	credit, err := credits.GetAccountCredit(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, int64(88), credit.BalanceSats)
	assert.Equal(t, int64(12), credit.TotalUsed)

	history, err := credits.GetTransactionHistory(ctx, "acct_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.CreditTransactionUsage, history[0].Type)
	assert.Equal(t, int64(-12), history[0].AmountSats)
	assert.Equal(t, int64(88), history[0].BalanceAfterSats)
}

func TestGetDecisionStats(t *testing.T) {
	svc, _, _, _ := openStatsFixture(t)

	stats, err := svc.GetDecisionStats(context.Background(), 7, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(60), stats.TotalCostSats)
	assert.Equal(t, int64(3000), stats.TotalTokens)
	assert.Equal(t, int64(1), stats.FallbackRequests)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.InDelta(t, 0.5, stats.AvgComplexityScore, 1e-9)
}

// openStatsFixture seeds three decisions for key 7: one fallback, one cache
// hit, scores 0.2 / 0.5 / 0.8, 10/20/30 sats, 1000 tokens each.
func openStatsFixture(t *testing.T) (*Service, *CreditsService, *budget.Service, *gorm.DB) {
	t.Helper()
	svc, credits, budgets, db := newTestServices(t)

	rows := []models.RouteDecision{
		{APIKeyID: 7, Model: "a", Tier: "economy", ComplexityScore: 0.2, TokensTotal: 1000, EstimatedCostSats: 10, CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{APIKeyID: 7, Model: "b", Tier: "standard", ComplexityScore: 0.5, TokensTotal: 1000, EstimatedCostSats: 20, Fallback: true, CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{APIKeyID: 7, Model: "c", Tier: "standard", ComplexityScore: 0.8, TokensTotal: 1000, EstimatedCostSats: 30, CacheTier: "semantic_exact", CreatedAt: time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)},
		{APIKeyID: 9, Model: "other", Tier: "premium", ComplexityScore: 1.0, TokensTotal: 9999, EstimatedCostSats: 999, CreatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	return svc, credits, budgets, db
}

func TestGetDecisionsByPeriod(t *testing.T) {
	svc, _, _, _ := openStatsFixture(t)

	periods, err := svc.GetDecisionsByPeriod(context.Background(), 7, time.Time{}, time.Time{}, "day")
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, "2026-03-01", periods[0].Period)
	assert.Equal(t, int64(1), periods[0].Stats.TotalRequests)
	assert.Equal(t, "2026-03-02", periods[1].Period)
	assert.Equal(t, int64(2), periods[1].Stats.TotalRequests)
	assert.Equal(t, int64(50), periods[1].Stats.TotalCostSats)
	assert.Equal(t, int64(1), periods[1].Stats.FallbackRequests)
}

func TestGetTierDistribution(t *testing.T) {
	svc, _, _, _ := openStatsFixture(t)

	counts, err := svc.GetTierDistribution(context.Background(), 7, time.Time{}, time.Time{})
	require.NoError(t, err)

	byTier := make(map[string]int64, len(counts))
	for _, c := range counts {
		byTier[c.Tier] = c.Count
	}
	assert.Equal(t, int64(1), byTier["economy"])
	assert.Equal(t, int64(2), byTier["standard"])
}

func TestGetDecisionsByAPIKey(t *testing.T) {
	svc, _, _, _ := openStatsFixture(t)

	decisions, err := svc.GetDecisionsByAPIKey(context.Background(), 7, 2, 0)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	// Newest first.
	assert.Equal(t, "c", decisions[0].Model)
	assert.Equal(t, "b", decisions[1].Model)
}

func TestCredits_Ledger(t *testing.T) {
	_, credits, _, _ := newTestServices(t)
	ctx := context.Background()

	t.Run("first contact creates zero balance", func(t *testing.T) {
		credit, err := credits.GetAccountCredit(ctx, "acct_new")
		require.NoError(t, err)
		assert.Equal(t, int64(0), credit.BalanceSats)
	})

	t.Run("deposit raises balance and total", func(t *testing.T) {
		tx, err := credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_a", AmountSats: 500, Description: "initial"})
		require.NoError(t, err)
		assert.Equal(t, models.CreditTransactionDeposit, tx.Type)
		assert.Equal(t, int64(500), tx.BalanceAfterSats)
		assert.NotEmpty(t, tx.TransactionID)

		credit, err := credits.GetAccountCredit(ctx, "acct_a")
		require.NoError(t, err)
		assert.Equal(t, int64(500), credit.BalanceSats)
		assert.Equal(t, int64(500), credit.TotalDeposited)
	})

	t.Run("deduction may overdraw", func(t *testing.T) {
		_, err := credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_b", AmountSats: 10})
		require.NoError(t, err)

		tx, err := credits.DeductSats(ctx, models.DeductSatsParams{AccountID: "acct_b", AmountSats: 25})
		require.NoError(t, err)
		assert.Equal(t, int64(-25), tx.AmountSats)
		assert.Equal(t, int64(-15), tx.BalanceAfterSats)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_c", AmountSats: 0})
		require.Error(t, err)
		_, err = credits.DeductSats(ctx, models.DeductSatsParams{AccountID: "acct_c", AmountSats: -3})
		require.Error(t, err)
	})

	t.Run("sufficiency check", func(t *testing.T) {
		_, err := credits.AddSats(ctx, models.AddSatsParams{AccountID: "acct_d", AmountSats: 40})
		require.NoError(t, err)

		require.NoError(t, credits.CheckSufficientSats(ctx, "acct_d", 40))

		err = credits.CheckSufficientSats(ctx, "acct_d", 41)
		require.Error(t, err)

		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrorTypeInsufficientCredits, appErr.Type)
		assert.Equal(t, 402, appErr.GetStatusCode())
	})
}

func TestWorker_RecordsAsync(t *testing.T) {
	svc, _, _, db := newTestServices(t)

	w := NewWorker(svc, 1, 8)

	w.Submit(decisionParams(), "req_worker1")

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&models.RouteDecision{}).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()
}

func TestWorker_StopDrainsQueue(t *testing.T) {
	svc, _, _, db := newTestServices(t)

	w := NewWorker(svc, 1, 16)
	for i := 0; i < 5; i++ {
		w.Submit(decisionParams(), "req_drain")
	}
	w.Stop()

	var count int64
	require.NoError(t, db.Model(&models.RouteDecision{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	// Submissions after Stop are dropped, not panics.
	w.Submit(decisionParams(), "req_late")
	require.NoError(t, db.Model(&models.RouteDecision{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()

	t.Run("zero limit is unlimited", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			assert.True(t, rl.Allow(1, 0))
		}
	})

	t.Run("blocks at the limit", func(t *testing.T) {
		assert.True(t, rl.Allow(2, 2))
		assert.True(t, rl.Allow(2, 2))
		assert.False(t, rl.Allow(2, 2))
	})

	t.Run("keys are independent", func(t *testing.T) {
		assert.False(t, rl.Allow(2, 2))
		assert.True(t, rl.Allow(3, 2))
	})
}
