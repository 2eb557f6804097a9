// Package config loads service configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Metadata MetadataConfig
	Server   ServerConfig
	Auth     AuthConfig
	Catalog  CatalogConfig
	Staging  StagingConfig
	Search   SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// MetadataConfig holds the data directory. The catalog database, pending
// action store, search index and token key all live beneath BasePath.
type MetadataConfig struct {
	BasePath string
}

// CatalogDBPath is the SQLite catalog file.
func (m MetadataConfig) CatalogDBPath() string { return filepath.Join(m.BasePath, "catalog.db") }

// PendingPath is the Badger directory for pending actions.
func (m MetadataConfig) PendingPath() string { return filepath.Join(m.BasePath, "pending") }

// SearchPath is the bleve index directory.
func (m MetadataConfig) SearchPath() string { return filepath.Join(m.BasePath, "search") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string // CORS; empty allows any origin
	RateLimitRPS   float64  // per session, or per IP when anonymous
	RateLimitBurst int
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	// PASETO v4 symmetric key (32 bytes). Set by auth.LoadOrGenerateKey.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
}

// CatalogConfig holds external catalog client settings.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// StagingConfig holds saga timing.
type StagingConfig struct {
	PendingTTL     time.Duration // lifetime of a pending action (default: 30m)
	SweepThreshold time.Duration // provisional age before Sweep reclaims it (default: 60m)
	SweepInterval  time.Duration // how often the sweep job runs (default: 10m)
}

// SearchConfig holds hybrid search settings.
type SearchConfig struct {
	PageSize          int
	MaxExternal       int
	ImportConcurrency int
}

// LoadConfig loads configuration from the process command line.
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load parses args into fs and resolves every value with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	metadataPath := fs.String("metadata-path", "", "Base path for data storage")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	allowedOrigins := fs.String("cors-origins", "", "Comma-separated CORS origins (default: any)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")

	catalogURL := fs.String("catalog-url", "", "External catalog base URL")
	catalogTimeout := fs.String("catalog-timeout", "", "External catalog request timeout (default: 10s)")

	pendingTTL := fs.String("pending-ttl", "", "Pending action lifetime (default: 30m)")
	sweepThreshold := fs.String("sweep-threshold", "", "Provisional entity age before sweep (default: 60m)")
	sweepInterval := fs.String("sweep-interval", "", "Sweep job interval (default: 10m)")

	pageSize := fs.String("page-size", "", "Default search page size (default: 20)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "CORS_ALLOWED_ORIGINS", "")),
			RateLimitRPS:   getFloatConfigValue("", "RATE_LIMIT_RPS", 10),
			RateLimitBurst: getIntConfigValue("", "RATE_LIMIT_BURST", 20),
		},
		Catalog: CatalogConfig{
			BaseURL: getConfigValue(*catalogURL, "CATALOG_BASE_URL", "https://openlibrary.org"),
			RPS:     getFloatConfigValue("", "CATALOG_RPS", 5),
			Burst:   getIntConfigValue("", "CATALOG_BURST", 10),
		},
		Search: SearchConfig{
			PageSize:          getIntConfigValue(*pageSize, "SEARCH_PAGE_SIZE", 20),
			MaxExternal:       getIntConfigValue("", "SEARCH_MAX_EXTERNAL", 20),
			ImportConcurrency: getIntConfigValue("", "SEARCH_IMPORT_CONCURRENCY", 4),
		},
	}

	durations := []struct {
		flag, env, def string
		dst            *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*catalogTimeout, "CATALOG_TIMEOUT", "10s", &cfg.Catalog.Timeout},
		{*pendingTTL, "PENDING_TTL", "30m", &cfg.Staging.PendingTTL},
		{*sweepThreshold, "SWEEP_THRESHOLD", "60m", &cfg.Staging.SweepThreshold},
		{*sweepInterval, "SWEEP_INTERVAL", "10m", &cfg.Staging.SweepInterval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandMetadataPath(); err != nil {
		return nil, fmt.Errorf("invalid metadata path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	if c.Catalog.BaseURL == "" {
		return errors.New("catalog base URL is required")
	}

	if c.Staging.PendingTTL <= 0 {
		return errors.New("pending TTL must be positive")
	}

	// Anything younger than the pending TTL may still be held by a live session.
	if c.Staging.SweepThreshold < c.Staging.PendingTTL {
		return fmt.Errorf("sweep threshold %s must not be shorter than pending TTL %s",
			c.Staging.SweepThreshold, c.Staging.PendingTTL)
	}

	if c.Search.PageSize <= 0 || c.Search.PageSize > 100 {
		return fmt.Errorf("search page size %d out of range (1-100)", c.Search.PageSize)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// An empty path resolves to defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandMetadataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Metadata.BasePath, filepath.Join(homeDir, ".stagehand"))
	if err != nil {
		return err
	}
	c.Metadata.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path. Variables already present in
// the environment win over the file.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from operator flag
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
