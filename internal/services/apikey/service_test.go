package apikey

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "apikey_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	svc := NewService(db)
	require.NoError(t, svc.AutoMigrate())
	return svc
}

func TestCreateAPIKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{
		Name:         "ci",
		UserID:       "acct_1",
		Scopes:       []string{"route", "usage:read"},
		RateLimitRpm: 60,
		BudgetSats:   5000,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Key, "ork_"))
	assert.Len(t, resp.Key, 47)
	assert.Equal(t, resp.Key[:12], resp.KeyPrefix)
	assert.Equal(t, "route,usage:read", resp.Scopes)
	assert.Equal(t, int64(5000), resp.BudgetSats)
	assert.Equal(t, int64(5000), resp.BudgetSatsRemaining)
	assert.True(t, resp.IsActive)
	assert.True(t, resp.BudgetResetAt.IsZero())

	t.Run("name is required", func(t *testing.T) {
		_, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{})
		require.Error(t, err)

		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
	})

	t.Run("reset schedule sets the first reset time", func(t *testing.T) {
		resp, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{
			Name:            "scheduled",
			BudgetSats:      100,
			BudgetResetType: models.BudgetResetDaily,
		})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 1), resp.BudgetResetAt, time.Minute)
	})
}

func TestValidateAPIKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "live"})
	require.NoError(t, err)

	t.Run("valid key resolves and bumps last_used_at", func(t *testing.T) {
		key, err := svc.ValidateAPIKey(ctx, created.Key)
		require.NoError(t, err)
		assert.Equal(t, created.ID, key.ID)

		again, err := svc.ValidateAPIKey(ctx, created.Key)
		require.NoError(t, err)
		assert.False(t, again.LastUsedAt.IsZero())
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		_, err := svc.ValidateAPIKey(ctx, "ork_definitely-not-a-real-key-aaaaaaaaaaaaaa")
		requireAuthError(t, err)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		_, err := svc.ValidateAPIKey(ctx, "")
		requireAuthError(t, err)
	})

	t.Run("revoked key is rejected", func(t *testing.T) {
		revoked, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "revoked"})
		require.NoError(t, err)
		require.NoError(t, svc.RevokeAPIKey(ctx, revoked.ID))

		_, err = svc.ValidateAPIKey(ctx, revoked.Key)
		requireAuthError(t, err)
	})

	t.Run("expired key is rejected", func(t *testing.T) {
		expired, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{
			Name:      "expired",
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		_, err = svc.ValidateAPIKey(ctx, expired.Key)
		requireAuthError(t, err)
	})
}

func requireAuthError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeAuthentication, appErr.Type)
}

func TestListAndGetAPIKeys(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		_, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: name})
		require.NoError(t, err)
	}

	keys, total, err := svc.ListAPIKeys(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, keys, 2)
	// The plaintext never appears after creation.
	for _, k := range keys {
		assert.Empty(t, k.Key)
		assert.NotEmpty(t, k.KeyPrefix)
	}

	got, err := svc.GetAPIKey(ctx, keys[0].ID)
	require.NoError(t, err)
	assert.Equal(t, keys[0].Name, got.Name)

	_, err = svc.GetAPIKey(ctx, 424242)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeNotFound, appErr.Type)
}

func TestUpdateAPIKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "mutable", BudgetSats: 100})
	require.NoError(t, err)

	t.Run("allowlisted fields change", func(t *testing.T) {
		err := svc.UpdateAPIKey(ctx, created.ID, map[string]any{
			"name":        "renamed",
			"budget_sats": int64(9000),
		})
		require.NoError(t, err)

		got, err := svc.GetAPIKey(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, int64(9000), got.BudgetSats)
	})

	t.Run("unknown fields are dropped", func(t *testing.T) {
		err := svc.UpdateAPIKey(ctx, created.ID, map[string]any{"key_hash": "forged"})
		require.Error(t, err)

		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
	})

	t.Run("reset type change reschedules", func(t *testing.T) {
		err := svc.UpdateAPIKey(ctx, created.ID, map[string]any{"budget_reset_type": models.BudgetResetWeekly})
		require.NoError(t, err)

		got, err := svc.GetAPIKey(ctx, created.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), got.BudgetResetAt, time.Minute)
	})

	t.Run("missing key reports not found", func(t *testing.T) {
		err := svc.UpdateAPIKey(ctx, 424242, map[string]any{"name": "ghost"})
		require.Error(t, err)
	})
}

func TestRevokeAPIKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateAPIKey(ctx, &models.APIKeyCreateRequest{Name: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAPIKey(ctx, created.ID))

	got, err := svc.GetAPIKey(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = svc.RevokeAPIKey(ctx, 424242)
	require.Error(t, err)
}
