// Package auth carries the request's authentication identity through fiber
// locals so handlers can read who is calling without re-validating.
package auth

import (
	"github.com/orangecat-xyz/autorouter/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeAdmin  AuthType = "admin"
)

const localsKey = "auth_context"

type AuthContext struct {
	Type   AuthType
	APIKey *APIKeyAuthContext
	Admin  *AdminAuthContext
}

type APIKeyAuthContext struct {
	Key    *models.APIKey
	UserID string
	Scopes []string
}

type AdminAuthContext struct {
	Subject string
	Claims  jwt.MapClaims
}

func (a *AuthContext) GetUserID() (string, bool) {
	switch a.Type {
	case AuthTypeAPIKey:
		if a.APIKey != nil {
			return a.APIKey.UserID, a.APIKey.UserID != ""
		}
	case AuthTypeAdmin:
		if a.Admin != nil {
			return a.Admin.Subject, a.Admin.Subject != ""
		}
	}
	return "", false
}

func (a *AuthContext) IsAPIKey() bool {
	return a.Type == AuthTypeAPIKey
}

func (a *AuthContext) IsAdmin() bool {
	return a.Type == AuthTypeAdmin
}

// HasScope reports whether an API key grants the scope. The "*" scope
// grants everything; admin tokens are never scope-limited.
func (a *AuthContext) HasScope(scope string) bool {
	if a.IsAdmin() {
		return true
	}
	if a.APIKey == nil {
		return false
	}
	for _, s := range a.APIKey.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

func SetAuthContext(c *fiber.Ctx, authCtx *AuthContext) {
	c.Locals(localsKey, authCtx)
}

func GetAuthContext(c *fiber.Ctx) *AuthContext {
	authCtx, ok := c.Locals(localsKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

func GetUserID(c *fiber.Ctx) (string, bool) {
	authCtx := GetAuthContext(c)
	if authCtx == nil {
		return "", false
	}
	return authCtx.GetUserID()
}

func GetAPIKey(c *fiber.Ctx) (*models.APIKey, bool) {
	authCtx := GetAuthContext(c)
	if authCtx == nil || authCtx.APIKey == nil {
		return nil, false
	}
	return authCtx.APIKey.Key, authCtx.APIKey.Key != nil
}

func IsAdminAuth(c *fiber.Ctx) bool {
	authCtx := GetAuthContext(c)
	return authCtx != nil && authCtx.IsAdmin()
}
