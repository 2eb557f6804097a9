package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Metadata: MetadataConfig{BasePath: "/some/path"},
		Catalog:  CatalogConfig{BaseURL: "https://openlibrary.org"},
		Staging: StagingConfig{
			PendingTTL:     30 * time.Minute,
			SweepThreshold: 60 * time.Minute,
			SweepInterval:  10 * time.Minute,
		},
		Search: SearchConfig{PageSize: 20},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_SweepThresholdBelowTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Staging.SweepThreshold = 10 * time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep threshold")
}

func TestValidate_PageSizeRange(t *testing.T) {
	for _, size := range []int{0, -1, 101} {
		cfg := validConfig()
		cfg.Search.PageSize = size
		assert.Error(t, cfg.Validate(), "page size %d", size)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	cfg, err := Load(fs, []string{"--metadata-path", dir, "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, dir, cfg.Metadata.BasePath)
	assert.Equal(t, 30*time.Minute, cfg.Staging.PendingTTL)
	assert.Equal(t, 60*time.Minute, cfg.Staging.SweepThreshold)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 20, cfg.Search.PageSize)
	assert.Equal(t, filepath.Join(dir, "catalog.db"), cfg.Metadata.CatalogDBPath())
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PENDING_TTL", "45m")
	t.Setenv("SWEEP_THRESHOLD", "2h")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--metadata-path", dir, "--pending-ttl", "5m", "--env-file", filepath.Join(dir, "none")})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Staging.PendingTTL)
	assert.Equal(t, 2*time.Hour, cfg.Staging.SweepThreshold)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	_, err := Load(fs, []string{"--metadata-path", dir, "--pending-ttl", "soon", "--env-file", filepath.Join(dir, "none")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending_ttl")
}

func TestLoad_CORSOrigins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--metadata-path", dir, "--env-file", filepath.Join(dir, "none")})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 10.0, cfg.Server.RateLimitRPS, 0.001)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nSTAGEHAND_TEST_A=\"quoted\"\n\nSTAGEHAND_TEST_B=plain\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("STAGEHAND_TEST_B", "from-env")
	os.Unsetenv("STAGEHAND_TEST_A")
	t.Cleanup(func() { os.Unsetenv("STAGEHAND_TEST_A") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "quoted", os.Getenv("STAGEHAND_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("STAGEHAND_TEST_B"))
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOEQUALS\n"), 0o600))

	assert.Error(t, loadEnvFile(path))
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = expandPath("~/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)
}
