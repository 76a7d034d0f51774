package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-admin-secret"

func signedToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops@orangecat",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAdminApp(mw *AdminAuth) *fiber.App {
	app := fiber.New()
	app.Put("/admin/price", mw.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString(auth.GetAuthContext(c).Admin.Subject)
	})
	return app
}

func adminRequest(t *testing.T, app *fiber.App, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/admin/price", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAdminAuth_ValidToken(t *testing.T) {
	mw := NewAdminAuth(&models.AuthConfig{Enabled: true, JWTSecret: testSecret})
	app := newAdminApp(mw)

	resp := adminRequest(t, app, signedToken(t, testSecret, time.Hour))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminAuth_Rejections(t *testing.T) {
	mw := NewAdminAuth(&models.AuthConfig{Enabled: true, JWTSecret: testSecret})
	app := newAdminApp(mw)

	t.Run("missing token", func(t *testing.T) {
		resp := adminRequest(t, app, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		resp := adminRequest(t, app, signedToken(t, "some-other-secret", time.Hour))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		resp := adminRequest(t, app, signedToken(t, testSecret, -time.Hour))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("mangled token", func(t *testing.T) {
		resp := adminRequest(t, app, "not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAdminAuth_Disabled(t *testing.T) {
	mw := NewAdminAuth(&models.AuthConfig{Enabled: false})

	app := fiber.New()
	app.Put("/admin/price", mw.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("open")
	})

	resp := adminRequest(t, app, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminAuth_EnabledWithoutSecret(t *testing.T) {
	mw := NewAdminAuth(&models.AuthConfig{Enabled: true})
	app := newAdminApp(mw)

	resp := adminRequest(t, app, signedToken(t, testSecret, time.Hour))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
