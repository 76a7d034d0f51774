package builder

import (
	"github.com/orangecat-xyz/autorouter/internal/config"

	"github.com/gofiber/fiber/v2"
)

// FromYAML creates a Builder from a YAML configuration file. The envFiles
// are loaded first, in order, so their variables are available for ${VAR}
// substitution in the YAML.
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}, nil
}
