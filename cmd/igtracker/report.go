package main

import (
	"context"

	"github.com/spf13/cobra"

	"igtracker/pkg/logger"
	"igtracker/pkg/report"
	"igtracker/pkg/ui"
)

var includeInactive bool

var reportCmd = &cobra.Command{
	Use:   "report [output]",
	Short: "Write a static report of the tracked state",
	Long: `Write the tracked following list, follow-back status and recent events
to a standalone HTML page with an embedded JSON block, or to plain JSON.

No browser session is started; the report reads only the state database.`,
	Example: `  igtracker report
  igtracker report following.html
  igtracker report --format json --output following.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("output", "o", "", "report path (default report.html)")
	reportCmd.Flags().StringP("format", "f", "", "report format: html or json")
	reportCmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "list accounts you no longer follow")
}

func runReport(cmd *cobra.Command, args []string) error {
	flags := changedFlags(cmd)
	if len(args) == 1 {
		flags["output"] = args[0]
	}
	cfg, err := loadConfigWith(flags)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := report.Options{
		Username:        cfg.Instagram.Username,
		RecentEvents:    cfg.Report.RecentEvents,
		IncludeInactive: includeInactive,
	}
	if runs, err := runState(cfg); err == nil {
		if last, err := runs.Load(); err == nil {
			opts.LastRun = last
		} else {
			logger.WithError(err).Warn("Could not read last cycle")
		}
	}

	data, err := report.FromStore(context.Background(), st, opts)
	if err != nil {
		return err
	}
	if err := report.WriteFile(cfg.Report.OutputPath, cfg.Report.Format, data); err != nil {
		return err
	}

	ui.PrintSuccess("Report written")
	ui.PrintInfo("Path", cfg.Report.OutputPath)
	return nil
}
