package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/orangecat-xyz/autorouter/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig     `yaml:"server"`
	Auth      models.AuthConfig       `yaml:"auth"`
	Router    *models.RouterConfig    `yaml:"router,omitempty"`
	PriceFeed *models.PriceFeedConfig `yaml:"price_feed,omitempty"`
	Database  *models.DatabaseConfig  `yaml:"database,omitempty"`
	Redis     *models.RedisConfig     `yaml:"redis,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	// Ensure the path doesn't contain directory traversal attempts
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	// Restrict to certain file extensions for security
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	// Read the file
	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	// Parse YAML with env vars substituted
	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize tier names to lowercase for case-insensitive catalog entries
	if config.Router != nil {
		for i := range config.Router.Models {
			config.Router.Models[i].Tier = models.ModelTier(strings.ToLower(string(config.Router.Models[i].Tier)))
		}
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			// File exists, try to load it
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	// Pattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		// Extract variable name and default value
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			// Remove the leading '-' from default value
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		// Get environment variable value
		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// MergeRouterConfig merges the YAML router config with a programmatic override.
// The override takes precedence over YAML config for non-empty values; unset
// fields fall back to the built-in defaults so callers always get a complete
// routing configuration back.
func (c *Config) MergeRouterConfig(override *models.RouterConfig) *models.RouterConfig {
	merged := &models.RouterConfig{
		DefaultModel:      models.DefaultModelID,
		ReferencePriceUSD: models.DefaultReferencePriceUSD,
	}

	// Layer YAML values over the defaults
	if c.Router != nil {
		if c.Router.DefaultModel != "" {
			merged.DefaultModel = c.Router.DefaultModel
		}
		if c.Router.ReferencePriceUSD > 0 {
			merged.ReferencePriceUSD = c.Router.ReferencePriceUSD
		} else if c.Router.ReferencePriceUSD != 0 {
			fiberlog.Debugf("Ignoring invalid reference_price_usd %.2f from YAML config (must be > 0)", c.Router.ReferencePriceUSD)
		}
		if len(c.Router.Models) > 0 {
			merged.Models = slices.Clone(c.Router.Models)
		}
		merged.Cache = c.Router.Cache
	}

	if override == nil {
		return merged
	}

	// Apply overrides (programmatic config takes precedence)
	if override.DefaultModel != "" {
		merged.DefaultModel = override.DefaultModel
	}
	if override.ReferencePriceUSD > 0 {
		merged.ReferencePriceUSD = override.ReferencePriceUSD
	} else if override.ReferencePriceUSD != 0 {
		// Only log if there was an actual override attempt (not default zero value)
		fiberlog.Debugf("Ignoring invalid reference_price_usd override %.2f (must be > 0)", override.ReferencePriceUSD)
	}
	if len(override.Models) > 0 {
		merged.Models = slices.Clone(override.Models)
	}
	if override.Cache != nil {
		merged.Cache = override.Cache
	}

	return merged
}

// MergePriceFeedConfig merges the YAML price feed config with a programmatic override.
// The override takes precedence over YAML config; unset fields fall back to defaults.
func (c *Config) MergePriceFeedConfig(override *models.PriceFeedConfig) *models.PriceFeedConfig {
	merged := models.DefaultPriceFeedConfig()

	// Layer YAML values over the defaults
	if c.PriceFeed != nil {
		mergePriceFeedInto(&merged, c.PriceFeed)
	}

	if override == nil {
		return &merged
	}

	mergePriceFeedInto(&merged, override)
	return &merged
}

func mergePriceFeedInto(dst, src *models.PriceFeedConfig) {
	dst.Enabled = src.Enabled
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.RefreshIntervalMs > 0 {
		dst.RefreshIntervalMs = src.RefreshIntervalMs
	}
	if src.TimeoutMs > 0 {
		dst.TimeoutMs = src.TimeoutMs
	}
	if src.Retries > 0 {
		dst.Retries = src.Retries
	}
	if src.FallbackPriceUSD > 0 {
		dst.FallbackPriceUSD = src.FallbackPriceUSD
	}
	if src.CircuitBreaker != nil {
		dst.CircuitBreaker = src.CircuitBreaker
	}
}

// CatalogModels returns the configured model catalog entries, falling back to
// the built-in catalog when the config does not declare any models.
func (c *Config) CatalogModels() []models.ModelDescriptor {
	if c.Router != nil && len(c.Router.Models) > 0 {
		return c.Router.Models
	}
	return models.DefaultCatalogModels()
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
