package models

// AuthConfig configures admin authentication. Admin routes require a bearer
// token signed with the shared HS256 secret.
type AuthConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	JWTSecret string `json:"jwt_secret,omitzero" yaml:"jwt_secret"`
}
