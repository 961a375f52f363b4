package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"igtracker/internal/dashboard"
	"igtracker/pkg/logger"
	"igtracker/pkg/tracker"
	"igtracker/pkg/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tracking dashboard",
	Long: `Serve a read-only dashboard of the tracked state, with JSON endpoints
and Prometheus metrics.

With --interval the server also runs a collect-and-reconcile cycle on that
schedule, and POST /api/cycle starts one on demand.`,
	Example: `  igtracker serve
  igtracker serve --address 127.0.0.1:9000 --interval 6h`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("address", "", "listen address (default :8080)")
	serveCmd.Flags().Duration("interval", 0, "run a cycle on this interval")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := runState(cfg)
	if err != nil {
		return err
	}

	log := logger.GetLogger()

	// cycles need a login, browsing the dashboard does not
	var cycle dashboard.CycleFunc
	if err := loadCredentials(cfg); err != nil {
		if cfg.Server.CycleInterval > 0 {
			return err
		}
		log.WithError(err).Info("No credentials, cycles disabled")
	} else {
		t := tracker.New(cfg, st, tracker.BrowserSessions(cfg.Browser, log),
			tracker.WithRunState(runs),
			tracker.WithNotifier(ui.NewNotifier()),
			tracker.WithLogger(log),
		)
		cycle = func(ctx context.Context) error {
			_, err := t.RunCycle(ctx)
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	ui.PrintLogo()
	ui.PrintInfo("Dashboard", fmt.Sprintf("http://%s/", displayAddress(cfg.Server.Address)))
	if cfg.Server.CycleInterval > 0 {
		ui.PrintInfo("Cycle interval", cfg.Server.CycleInterval.String())
	}

	logger.LogComponentStart("dashboard", map[string]interface{}{
		"address":        cfg.Server.Address,
		"cycle_interval": cfg.Server.CycleInterval,
		"metrics":        cfg.Metrics.Enabled,
	})
	err = dashboard.New(cfg, st, runs, cycle, log).Run(ctx)
	logger.LogComponentStop("dashboard", "shutdown")
	return err
}

func displayAddress(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
