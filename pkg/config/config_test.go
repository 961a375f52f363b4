package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Collector defaults mirror the observed convergence behaviour
	assert.Equal(t, 3, cfg.Collector.MaxPasses)
	assert.Equal(t, 3, cfg.Collector.StallThreshold)
	assert.Equal(t, 150, cfg.Collector.MaxLoadAttempts)
	assert.Equal(t, 0.90, cfg.Collector.QualityThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Collector.Pause)
	assert.Equal(t, 3*time.Second, cfg.Collector.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Collector.ResetDelay)

	assert.True(t, cfg.Reciprocity.Enabled)
	assert.Equal(t, 5, cfg.Reciprocity.PrefixSize)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 10*time.Second, cfg.Browser.ElementTimeout)
	assert.Equal(t, 5*time.Second, cfg.Browser.OptionalStepTimeout)

	assert.NotEmpty(t, cfg.Storage.DatabasePath)
	assert.Equal(t, "report.html", cfg.Report.OutputPath)
	assert.Equal(t, 50, cfg.Report.RecentEvents)
	assert.Equal(t, 10, cfg.Server.RecentEvents)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestDataDirectoryHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME only applies on linux")
	}
	tempDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tempDir)

	dir, err := DataDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "igtracker"), dir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INSTAGRAM_USERNAME", "legacy_user")
	t.Setenv("IGTRACKER_USERNAME", "tracked_user")
	t.Setenv("IGTRACKER_PASSWORD", "secret")
	t.Setenv("HEADLESS_MODE", "false")
	t.Setenv("DATABASE_PATH", "/tmp/legacy.db")
	t.Setenv("IGTRACKER_QUALITY_THRESHOLD", "0.85")
	t.Setenv("IGTRACKER_RECIPROCITY_PREFIX", "8")
	t.Setenv("IGTRACKER_MAX_LOAD_ATTEMPTS", "60")
	t.Setenv("DELAY_BETWEEN_REQUESTS", "4")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "tracked_user", cfg.Instagram.Username)
	assert.Equal(t, "secret", cfg.Instagram.Password)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/legacy.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 0.85, cfg.Collector.QualityThreshold)
	assert.Equal(t, 8, cfg.Reciprocity.PrefixSize)
	assert.Equal(t, 60, cfg.Collector.MaxLoadAttempts)
	assert.Equal(t, 4*time.Second, cfg.Collector.PassDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("IGTRACKER_MAX_PASSES", "many")
	t.Setenv("IGTRACKER_HEADLESS", "sometimes")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGTRACKER_MAX_PASSES")
	assert.Contains(t, err.Error(), "IGTRACKER_HEADLESS")
	assert.Equal(t, 3, cfg.Collector.MaxPasses)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "quality threshold above one",
			mutate:    func(c *Config) { c.Collector.QualityThreshold = 1.5 },
			wantError: "quality threshold",
		},
		{
			name:      "zero quality threshold",
			mutate:    func(c *Config) { c.Collector.QualityThreshold = 0 },
			wantError: "quality threshold",
		},
		{
			name:      "ceiling below stall threshold",
			mutate:    func(c *Config) { c.Collector.MaxLoadAttempts = 2 },
			wantError: "max load attempts",
		},
		{
			name:      "zero passes",
			mutate:    func(c *Config) { c.Collector.MaxPasses = 0 },
			wantError: "max passes",
		},
		{
			name:      "zero reciprocity prefix",
			mutate:    func(c *Config) { c.Reciprocity.PrefixSize = 0 },
			wantError: "prefix size",
		},
		{
			name:      "missing database path",
			mutate:    func(c *Config) { c.Storage.DatabasePath = "" },
			wantError: "database path",
		},
		{
			name:      "unknown report format",
			mutate:    func(c *Config) { c.Report.Format = "pdf" },
			wantError: "report format",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "password")

	cfg.Instagram.Username = "me"
	cfg.Instagram.Password = "pw"
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoadFromFileAndSave(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Instagram.Username = "tracked_user"
	cfg.Collector.QualityThreshold = 0.8
	cfg.Reciprocity.PrefixSize = 10
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "tracked_user", loaded.Instagram.Username)
	assert.Equal(t, 0.8, loaded.Collector.QualityThreshold)
	assert.Equal(t, 10, loaded.Reciprocity.PrefixSize)
}

func TestLoadFromFilePartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := map[string]interface{}{
		"collector": map[string]interface{}{
			"max_passes": 5,
			"pause":      "250ms",
		},
	}
	data, err := yaml.Marshal(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, 5, cfg.Collector.MaxPasses)
	assert.Equal(t, 250*time.Millisecond, cfg.Collector.Pause)
	// untouched fields keep their defaults
	assert.Equal(t, 0.90, cfg.Collector.QualityThreshold)
	assert.Equal(t, 3, cfg.Collector.StallThreshold)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collector: [unterminated"), 0600))

	cfg := DefaultConfig()
	err := cfg.LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"username":           "flag_user",
		"headless":           false,
		"database":           "/tmp/flag.db",
		"max-passes":         4,
		"quality-threshold":  0.75,
		"reciprocity-prefix": 7,
		"skip-reciprocity":   true,
		"format":             "JSON",
		"interval":           6 * time.Hour,
		"log-level":          "WARN",
	})

	assert.Equal(t, "flag_user", cfg.Instagram.Username)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/flag.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 4, cfg.Collector.MaxPasses)
	assert.Equal(t, 0.75, cfg.Collector.QualityThreshold)
	assert.Equal(t, 7, cfg.Reciprocity.PrefixSize)
	assert.False(t, cfg.Reciprocity.Enabled)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, 6*time.Hour, cfg.Server.CycleInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instagram:\n  username: file_user\nreciprocity:\n  prefix_size: 6\n"), 0600))

	t.Setenv("IGTRACKER_RECIPROCITY_PREFIX", "9")

	cfg, err := Load(path, map[string]interface{}{"username": "flag_user"})
	require.NoError(t, err)
	assert.Equal(t, "flag_user", cfg.Instagram.Username)
	assert.Equal(t, 9, cfg.Reciprocity.PrefixSize)
}
