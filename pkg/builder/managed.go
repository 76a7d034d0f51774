package builder

import (
	pkgmodels "github.com/orangecat-xyz/autorouter/pkg/models"
)

// WithManagedKeys turns on the whole keyed stack in one call: persistence,
// key authentication, and the admin group that manages keys and credits.
func (b *Builder) WithManagedKeys(cfg pkgmodels.ManagedKeysConfig) *Builder {
	b.WithDatabase(cfg.Database)

	if cfg.APIKeys.Enabled {
		b.WithAPIKeyAuth(cfg.APIKeys)
	} else {
		b.EnableAPIKeyAuth()
	}

	if cfg.AdminJWTSecret != "" {
		b.WithAdminAuth(cfg.AdminJWTSecret)
	}

	return b
}
