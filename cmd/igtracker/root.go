package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"igtracker/pkg/auth"
	"igtracker/pkg/config"
	"igtracker/pkg/logger"
	"igtracker/pkg/runstate"
	"igtracker/pkg/store"
	"igtracker/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "igtracker",
	Short: "Track who you follow on Instagram and who follows you back",
	Long: `igtracker signs in to Instagram with a headless browser, collects the
complete list of accounts you follow and records every change in a local
database.

Each cycle:
  - scrolls the following dialog until the list stops growing
  - accepts the result only when it covers at least 90% of the advertised count
  - checks whether each account follows you back
  - records NEW_FOLLOW and UNFOLLOW events atomically`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
		}
		logger.Version = version
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is .igtracker.yaml or ~/.config/igtracker/config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.StringP("username", "u", "", "Instagram account to track")
	pf.String("database", "", "path to the state database")
	pf.Bool("headless", true, "run the browser without a window")
	pf.String("control-url", "", "attach to a running browser instead of launching one")
	pf.Bool("notify", false, "send desktop notifications")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress terminal output except errors")

	rootCmd.SetVersionTemplate(`igtracker {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects the flags set on the command line, keyed by name,
// in the shape config.MergeCommandLineFlags expects.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()
	fs.Visit(func(f *pflag.Flag) {
		var v interface{}
		var err error
		switch f.Value.Type() {
		case "bool":
			v, err = fs.GetBool(f.Name)
		case "int":
			v, err = fs.GetInt(f.Name)
		case "float64":
			v, err = fs.GetFloat64(f.Name)
		case "duration":
			v, err = fs.GetDuration(f.Name)
		default:
			v = f.Value.String()
		}
		if err == nil {
			flags[f.Name] = v
		}
	})
	return flags
}

// loadConfig loads configuration and sets up the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return loadConfigWith(changedFlags(cmd))
}

func loadConfigWith(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// loadCredentials fills in the password from the credential stores
func loadCredentials(cfg *config.Config) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Resolve(&cfg.Instagram); err != nil {
		logger.WithError(err).Debug("No stored credentials")
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("%w\n\nStore credentials with 'igtracker auth login' or set IGTRACKER_USERNAME and IGTRACKER_PASSWORD", err)
	}
	return nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return st, nil
}

// runState keeps the last-cycle record next to the database
func runState(cfg *config.Config) (*runstate.Manager, error) {
	return runstate.NewManager(filepath.Dir(cfg.Storage.DatabasePath))
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
