package builder

import "github.com/orangecat-xyz/autorouter/internal/models"

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

// WithSQLite configures a file-backed SQLite store, the smallest deployment
// that still records decisions.
func (b *Builder) WithSQLite(path string) *Builder {
	b.cfg.Database = &models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: path,
	}
	return b
}
