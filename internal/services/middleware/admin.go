package middleware

import (
	"fmt"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/models"
	"github.com/orangecat-xyz/autorouter/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminAuth guards the admin route group with HS256 bearer tokens signed by
// the shared platform secret.
type AdminAuth struct {
	secret  []byte
	enabled bool
}

func NewAdminAuth(config *models.AuthConfig) *AdminAuth {
	if config == nil {
		return &AdminAuth{}
	}
	return &AdminAuth{
		secret:  []byte(config.JWTSecret),
		enabled: config.Enabled,
	}
}

func (m *AdminAuth) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.enabled {
			return c.Next()
		}

		if len(m.secret) == 0 {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Admin authentication is not configured",
			})
		}

		tokenString := m.extractToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin token required",
			})
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired admin token",
			})
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		subject, _ := claims.GetSubject()

		auth.SetAuthContext(c, &auth.AuthContext{
			Type: auth.AuthTypeAdmin,
			Admin: &auth.AdminAuthContext{
				Subject: subject,
				Claims:  claims,
			},
		})

		return c.Next()
	}
}

func (m *AdminAuth) extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(header)
}
