package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igtracker/pkg/config"
	"igtracker/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igtracker configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .igtracker.yaml unless --config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The password is
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# igtracker configuration
#
# Environment variables override this file, for example
# IGTRACKER_USERNAME, IGTRACKER_PASSWORD, IGTRACKER_DATABASE_PATH.

instagram:
  # Account whose following list is tracked
  username: ""
  # Prefer 'igtracker auth login' over storing the password here
  password: ""

browser:
  headless: true
  # Chromium binary; empty downloads or finds one automatically
  bin_path: ""
  # Attach to a running browser instead of launching one
  control_url: ""
  window_width: 1920
  window_height: 1080
  language: "en-US"
  user_agent: ""
  element_timeout: 10s
  optional_step_timeout: 5s
  page_settle_delay: 3s
  login_settle_delay: 5s
  dialog_settle_delay: 3s

collector:
  # Whole passes before the cycle fails
  max_passes: 3
  # Consecutive loads that reveal nothing before a pass converges
  stall_threshold: 3
  # Hard ceiling on loads per pass
  max_load_attempts: 150
  # Fraction of the advertised count a pass must reach
  quality_threshold: 0.90
  pause: 1.5s
  settle_delay: 3s
  reset_delay: 2s
  pass_delay: 2s

reciprocity:
  enabled: true
  # Following entries inspected per account
  prefix_size: 5

storage:
  # Defaults to igtracker.db in the per-user data directory
  # database_path: "/var/lib/igtracker/igtracker.db"

report:
  output_path: "report.html"
  # html or json
  format: "html"
  recent_events: 50

server:
  address: ":8080"
  recent_events: 10
  # Run a cycle on this interval while serving; 0 disables it
  cycle_interval: 0s

metrics:
  enabled: true
  path: "/metrics"

notifications:
  enabled: false
  on_unfollow: true
  on_failure: true

logging:
  # debug, info, warn, error
  level: "info"
  # JSON log file in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".igtracker.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Set instagram.username, then run 'igtracker auth login'")
	fmt.Fprintln(ui.Output, "2. Run 'igtracker config validate' to check the configuration")
	fmt.Fprintln(ui.Output, "3. Run 'igtracker collect'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	display := *cfg
	if display.Instagram.Password != "" {
		display.Instagram.Password = "********"
	}
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintWarning("Credentials incomplete", err.Error())
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			ui.PrintWarning("Cannot create log directory", err.Error())
		}
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Account: %s\n", cfg.Instagram.Username)
	fmt.Fprintf(ui.Output, "  Database: %s\n", cfg.Storage.DatabasePath)
	fmt.Fprintf(ui.Output, "  Passes: %d, quality threshold %.0f%%, load ceiling %d\n",
		cfg.Collector.MaxPasses, cfg.Collector.QualityThreshold*100, cfg.Collector.MaxLoadAttempts)
	fmt.Fprintf(ui.Output, "  Follow-back checks: %v (prefix %d)\n", cfg.Reciprocity.Enabled, cfg.Reciprocity.PrefixSize)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
