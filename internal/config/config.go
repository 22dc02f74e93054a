package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/fourbyte/selectortrace/internal/herr"
)

// Config holds all application configuration, loaded from environment
// variables (and a local .env file, if present).
type Config struct {
	// Mode selects the runtime mode: "harvest", "query" or "migrate".
	Mode string `env:"SELECTORTRACE_MODE" envDefault:"query"`

	// Query service
	Host string `env:"SELECTORTRACE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SELECTORTRACE_PORT" envDefault:"8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Redis (negative-cache / dedup of in-flight lookups across workers)
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Metrics
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`

	// CORS (query service only)
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Code-host credentials. A harvester needs at least one to crawl/scrape;
	// CodeHostTokens is a pool, the first surviving member becomes active
	// and the rest are rotated in on rate-limit exhaustion or invalidation.
	CodeHostTokens []string `env:"CODEHOST_TOKENS" envSeparator:","`

	// TargetLanguage is the smart-contract source language the crawler
	// filters repositories on and the scraper extracts signatures from.
	TargetLanguage string `env:"TARGET_LANGUAGE" envDefault:"Solidity"`

	// Third-party signature registry (the "4byte"-style lookup service).
	RegistryBaseURL string `env:"REGISTRY_BASE_URL" envDefault:"https://www.4byte.directory"`

	// Block explorer (verified-contract listing + ABI fetch).
	ExplorerBaseURL  string `env:"EXPLORER_BASE_URL" envDefault:"https://etherscan.io"`
	ExplorerAPIURL   string `env:"EXPLORER_API_URL" envDefault:"https://api.etherscan.io/api"`
	ExplorerAPIToken string `env:"EXPLORER_API_TOKEN"`

	// Code host (the code-search/crawl target, e.g. GitHub's REST API).
	CodeHostAPIURL string `env:"CODEHOST_API_URL" envDefault:"https://api.github.com"`
	CodeHostWebURL string `env:"CODEHOST_WEB_URL" envDefault:"https://github.com"`

	// Scraper clone working directory.
	ScrapeCloneDir string `env:"SCRAPE_CLONE_DIR" envDefault:"/tmp/selectortrace"`
}

// Load reads configuration from a local .env file (if present) and then
// from environment variables, validating the fields every mode needs.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: loading .env file: %w", herr.ErrConfig, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config from env: %w", herr.ErrConfig, err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required", herr.ErrConfig)
	}

	return cfg, nil
}

// ListenAddr returns the address the query service should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequireHarvestCredentials validates the fields the harvest mode needs
// beyond the ones Load already checked.
func (c *Config) RequireHarvestCredentials() error {
	if len(c.CodeHostTokens) == 0 {
		return fmt.Errorf("%w: CODEHOST_TOKENS is required in harvest mode", herr.ErrConfig)
	}
	if strings.TrimSpace(c.ExplorerAPIToken) == "" {
		return fmt.Errorf("%w: EXPLORER_API_TOKEN is required in harvest mode", herr.ErrConfig)
	}
	return nil
}
