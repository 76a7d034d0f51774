package builder

import "github.com/orangecat-xyz/autorouter/internal/models"

func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}

func (b *Builder) WithAPIKeyAuth(cfg models.APIKeyConfig) *Builder {
	if len(cfg.HeaderNames) == 0 {
		cfg.HeaderNames = []string{"X-API-Key"}
	}
	b.cfg.Server.APIKeys = &cfg
	return b
}

func (b *Builder) EnableAPIKeyAuth() *Builder {
	cfg := models.DefaultAPIKeyConfig()
	cfg.Enabled = true
	b.cfg.Server.APIKeys = &cfg
	return b
}

// WithAdminAuth enables the admin route group, guarded by HS256 tokens
// signed with the given secret.
func (b *Builder) WithAdminAuth(jwtSecret string) *Builder {
	b.cfg.Auth = models.AuthConfig{
		Enabled:   true,
		JWTSecret: jwtSecret,
	}
	return b
}
