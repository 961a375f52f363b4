package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the follow tracker
type Config struct {
	// Account being tracked and its login credentials
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Convergent collection tuning
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Reciprocity heuristic
	Reciprocity ReciprocityConfig `yaml:"reciprocity" json:"reciprocity"`

	// Persistent state
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Static report output
	Report ReportConfig `yaml:"report" json:"report"`

	// Dashboard server
	Server ServerConfig `yaml:"server" json:"server"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the tracked account and its credentials
type InstagramConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// BrowserConfig controls the automated browser session
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" json:"headless"`
	BinPath      string `yaml:"bin_path" json:"bin_path"`
	ControlURL   string `yaml:"control_url" json:"control_url"`
	WindowWidth  int    `yaml:"window_width" json:"window_width"`
	WindowHeight int    `yaml:"window_height" json:"window_height"`
	Language     string `yaml:"language" json:"language"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`

	// Per-wait bound for an element or condition to appear
	ElementTimeout time.Duration `yaml:"element_timeout" json:"element_timeout"`
	// Bound for the optional "not now" prompt after login
	OptionalStepTimeout time.Duration `yaml:"optional_step_timeout" json:"optional_step_timeout"`
	PageSettleDelay     time.Duration `yaml:"page_settle_delay" json:"page_settle_delay"`
	LoginSettleDelay    time.Duration `yaml:"login_settle_delay" json:"login_settle_delay"`
	DialogSettleDelay   time.Duration `yaml:"dialog_settle_delay" json:"dialog_settle_delay"`
}

// CollectorConfig tunes the convergent collection loop
type CollectorConfig struct {
	MaxPasses        int           `yaml:"max_passes" json:"max_passes"`
	StallThreshold   int           `yaml:"stall_threshold" json:"stall_threshold"`
	MaxLoadAttempts  int           `yaml:"max_load_attempts" json:"max_load_attempts"`
	QualityThreshold float64       `yaml:"quality_threshold" json:"quality_threshold"`
	Pause            time.Duration `yaml:"pause" json:"pause"`
	SettleDelay      time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ResetDelay       time.Duration `yaml:"reset_delay" json:"reset_delay"`
	PassDelay        time.Duration `yaml:"pass_delay" json:"pass_delay"`
}

// ReciprocityConfig tunes the follow-back heuristic
type ReciprocityConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	PrefixSize int  `yaml:"prefix_size" json:"prefix_size"`
}

// StorageConfig locates the state database
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
}

// ReportConfig holds static report settings
type ReportConfig struct {
	OutputPath   string `yaml:"output_path" json:"output_path"`
	Format       string `yaml:"format" json:"format"`
	RecentEvents int    `yaml:"recent_events" json:"recent_events"`
}

// ServerConfig holds dashboard settings
type ServerConfig struct {
	Address      string `yaml:"address" json:"address"`
	RecentEvents int    `yaml:"recent_events" json:"recent_events"`
	// Run a collection cycle on this interval while serving; zero disables it
	CycleInterval time.Duration `yaml:"cycle_interval" json:"cycle_interval"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnUnfollow bool `yaml:"on_unfollow" json:"on_unfollow"`
	OnFailure  bool `yaml:"on_failure" json:"on_failure"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:            true,
			WindowWidth:         1920,
			WindowHeight:        1080,
			Language:            "en-US",
			ElementTimeout:      10 * time.Second,
			OptionalStepTimeout: 5 * time.Second,
			PageSettleDelay:     3 * time.Second,
			LoginSettleDelay:    5 * time.Second,
			DialogSettleDelay:   3 * time.Second,
		},
		Collector: CollectorConfig{
			MaxPasses:        3,
			StallThreshold:   3,
			MaxLoadAttempts:  150,
			QualityThreshold: 0.90,
			Pause:            1500 * time.Millisecond,
			SettleDelay:      3 * time.Second,
			ResetDelay:       2 * time.Second,
			PassDelay:        2 * time.Second,
		},
		Reciprocity: ReciprocityConfig{
			Enabled:    true,
			PrefixSize: 5,
		},
		Storage: StorageConfig{
			DatabasePath: defaultDatabasePath(),
		},
		Report: ReportConfig{
			OutputPath:   "report.html",
			Format:       "html",
			RecentEvents: 50,
		},
		Server: ServerConfig{
			Address:      ":8080",
			RecentEvents: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnUnfollow: true,
			OnFailure:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

func defaultDatabasePath() string {
	dir, err := DataDirectory()
	if err != nil {
		return filepath.Join("data", "igtracker.db")
	}
	return filepath.Join(dir, "igtracker.db")
}

// LoadFromEnv loads configuration from environment variables.
// The unprefixed names are accepted for compatibility with older .env files;
// IGTRACKER_* names take precedence when both are set.
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(target *string, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*target = v
			}
		}
	}
	setInt := func(target *int, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				var val int
				if _, err := fmt.Sscanf(v, "%d", &val); err != nil || val <= 0 {
					errs = append(errs, fmt.Errorf("%s: expected a positive integer, got %q", name, v))
					continue
				}
				*target = val
			}
		}
	}
	setBool := func(target *bool, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				b, err := strconv.ParseBool(strings.ToLower(v))
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: expected a boolean, got %q", name, v))
					continue
				}
				*target = b
			}
		}
	}

	// Instagram credentials
	setString(&c.Instagram.Username, "INSTAGRAM_USERNAME", "IGTRACKER_USERNAME")
	setString(&c.Instagram.Password, "INSTAGRAM_PASSWORD", "IGTRACKER_PASSWORD")

	// Browser
	setBool(&c.Browser.Headless, "HEADLESS_MODE", "IGTRACKER_HEADLESS")
	setString(&c.Browser.BinPath, "CHROME_BIN", "IGTRACKER_BROWSER_BIN")
	setString(&c.Browser.ControlURL, "IGTRACKER_CONTROL_URL")
	setString(&c.Browser.UserAgent, "IGTRACKER_USER_AGENT")

	// Collector
	setInt(&c.Collector.MaxPasses, "MAX_RETRIES", "IGTRACKER_MAX_PASSES")
	setInt(&c.Collector.MaxLoadAttempts, "IGTRACKER_MAX_LOAD_ATTEMPTS")
	if v := os.Getenv("IGTRACKER_QUALITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGTRACKER_QUALITY_THRESHOLD: expected a number, got %q", v))
		} else {
			c.Collector.QualityThreshold = f
		}
	}
	if v := os.Getenv("DELAY_BETWEEN_REQUESTS"); v != "" {
		var secs int
		if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs >= 0 {
			c.Collector.PassDelay = time.Duration(secs) * time.Second
		}
	}

	// Reciprocity
	setInt(&c.Reciprocity.PrefixSize, "IGTRACKER_RECIPROCITY_PREFIX")
	setBool(&c.Reciprocity.Enabled, "IGTRACKER_RECIPROCITY_ENABLED")

	// Storage
	setString(&c.Storage.DatabasePath, "DATABASE_PATH", "IGTRACKER_DATABASE_PATH")

	// Server
	setString(&c.Server.Address, "IGTRACKER_SERVER_ADDRESS")

	// Notifications
	setBool(&c.Notifications.Enabled, "IGTRACKER_NOTIFICATIONS_ENABLED")

	// Logging
	setString(&c.Logging.Level, "LOG_LEVEL", "IGTRACKER_LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE", "IGTRACKER_LOG_FILE")

	c.Logging.Level = strings.ToLower(c.Logging.Level)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".igtracker.yaml",
		".igtracker.yml",
		filepath.Join(home, ".config", "igtracker", "config.yaml"),
		filepath.Join(home, ".config", "igtracker", "config.yml"),
		filepath.Join(home, ".igtracker.yaml"),
		filepath.Join(home, ".igtracker.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Collector
	if c.Collector.MaxPasses <= 0 {
		errs = append(errs, errors.New("collector max passes must be positive"))
	}
	if c.Collector.StallThreshold <= 0 {
		errs = append(errs, errors.New("collector stall threshold must be positive"))
	}
	if c.Collector.MaxLoadAttempts < c.Collector.StallThreshold {
		errs = append(errs, errors.New("collector max load attempts must be at least the stall threshold"))
	}
	if c.Collector.QualityThreshold <= 0 || c.Collector.QualityThreshold > 1 {
		errs = append(errs, errors.New("collector quality threshold must be in (0, 1]"))
	}
	if c.Collector.Pause < 0 || c.Collector.SettleDelay < 0 || c.Collector.ResetDelay < 0 || c.Collector.PassDelay < 0 {
		errs = append(errs, errors.New("collector delays cannot be negative"))
	}

	// Reciprocity
	if c.Reciprocity.PrefixSize <= 0 {
		errs = append(errs, errors.New("reciprocity prefix size must be positive"))
	}

	// Browser
	if c.Browser.ElementTimeout <= 0 {
		errs = append(errs, errors.New("browser element timeout must be positive"))
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, errors.New("browser window size must be positive"))
	}

	// Storage
	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	// Report
	validFormats := map[string]bool{"html": true, "json": true}
	if !validFormats[strings.ToLower(c.Report.Format)] {
		errs = append(errs, errors.New("report format must be html or json"))
	}
	if c.Report.RecentEvents <= 0 || c.Server.RecentEvents <= 0 {
		errs = append(errs, errors.New("recent event limits must be positive"))
	}
	if c.Server.CycleInterval < 0 {
		errs = append(errs, errors.New("server cycle interval cannot be negative"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks the settings needed to log in and collect
func (c *Config) ValidateCredentials() error {
	var errs []error
	if c.Instagram.Username == "" {
		errs = append(errs, errors.New("Instagram username is required"))
	}
	if c.Instagram.Password == "" {
		errs = append(errs, errors.New("Instagram password is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Instagram.Username = username
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if controlURL, ok := flags["control-url"].(string); ok && controlURL != "" {
		c.Browser.ControlURL = controlURL
	}
	if dbPath, ok := flags["database"].(string); ok && dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}
	if passes, ok := flags["max-passes"].(int); ok && passes > 0 {
		c.Collector.MaxPasses = passes
	}
	if threshold, ok := flags["quality-threshold"].(float64); ok && threshold > 0 {
		c.Collector.QualityThreshold = threshold
	}
	if prefix, ok := flags["reciprocity-prefix"].(int); ok && prefix > 0 {
		c.Reciprocity.PrefixSize = prefix
	}
	if skip, ok := flags["skip-reciprocity"].(bool); ok && skip {
		c.Reciprocity.Enabled = false
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Report.OutputPath = output
	}
	if format, ok := flags["format"].(string); ok && format != "" {
		c.Report.Format = strings.ToLower(format)
	}
	if addr, ok := flags["address"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if interval, ok := flags["interval"].(time.Duration); ok && interval > 0 {
		c.Server.CycleInterval = interval
	}
	if notify, ok := flags["notify"].(bool); ok && notify {
		c.Notifications.Enabled = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = strings.ToLower(logLevel)
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".igtracker.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Includes values from .env
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
