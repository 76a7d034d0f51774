package models

import "github.com/orangecat-xyz/autorouter/internal/models"

// ManagedKeysConfig bundles the pieces a keyed deployment needs: a store for
// the keys, the key middleware in front of the routes, and admin endpoints
// to mint and fund them.
type ManagedKeysConfig struct {
	AdminJWTSecret string
	Database       models.DatabaseConfig
	APIKeys        models.APIKeyConfig
}
