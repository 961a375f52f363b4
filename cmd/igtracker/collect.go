package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"igtracker/pkg/logger"
	"igtracker/pkg/report"
	"igtracker/pkg/tracker"
	"igtracker/pkg/ui"
)

var collectReport bool

var collectCmd = &cobra.Command{
	Use:     "collect",
	Aliases: []string{"run"},
	Short:   "Run one collect-and-reconcile cycle",
	Long: `Sign in, collect the full following list and reconcile it against the
state database.

A collection that stays below the quality threshold after every pass is
discarded: the database is left untouched and the command exits non-zero.`,
	Example: `  # Run a cycle with stored credentials
  igtracker collect

  # Skip follow-back checks and write a report afterwards
  igtracker collect --skip-reciprocity --report

  # Attach to a browser started with --remote-debugging-port
  igtracker collect --control-url ws://127.0.0.1:9222/devtools/browser/...`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().Int("max-passes", 0, "collection passes before giving up")
	collectCmd.Flags().Float64("quality-threshold", 0, "fraction of the advertised count a pass must reach")
	collectCmd.Flags().Int("reciprocity-prefix", 0, "following entries inspected per follow-back check")
	collectCmd.Flags().Bool("skip-reciprocity", false, "do not check who follows back")
	collectCmd.Flags().BoolVar(&collectReport, "report", false, "write the static report after a successful cycle")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := loadCredentials(cfg); err != nil {
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

	ctx, cancel := signalContext()
	defer cancel()

	ui.PrintLogo()
	ui.PrintInfo("Account", cfg.Instagram.Username)

	log := logger.GetLogger()
	t := tracker.New(cfg, st, tracker.BrowserSessions(cfg.Browser, log),
		tracker.WithRunState(runs),
		tracker.WithNotifier(ui.NewNotifier()),
		tracker.WithLogger(log),
	)
	progress := ui.NewCycleProgress(ui.Output)
	t.OnExpected = progress.SetExpected
	t.OnCollect = progress.Collect
	t.OnReciprocity = progress.Reciprocity

	res, err := t.RunCycle(ctx)
	progress.Finish()
	if err != nil {
		ui.PrintError("Cycle failed", err.Error())
		return err
	}

	run := res.Run
	ui.PrintSuccess("Cycle completed")
	ui.PrintInfo("Collected", fmt.Sprintf("%d of %d (%.1f%%, %d pass(es))", run.Collected, run.Expected, run.Quality*100, run.Passes))
	ui.PrintInfo("New follows", fmt.Sprint(run.NewFollows))
	ui.PrintInfo("Unfollows", fmt.Sprint(run.Unfollows))
	if r := res.Reconcile; r != nil {
		ui.PrintInfo("Active", fmt.Sprint(r.Active))
		ui.PrintInfo("Mutual", fmt.Sprint(r.Mutual))
		if r.ReciprocityFailures > 0 {
			ui.PrintWarning("Follow-back checks failed", r.ReciprocityFailures)
		}
	}

	if collectReport {
		data, err := report.FromStore(ctx, st, report.Options{
			Username:     cfg.Instagram.Username,
			RecentEvents: cfg.Report.RecentEvents,
			LastRun:      run,
		})
		if err != nil {
			return err
		}
		if err := report.WriteFile(cfg.Report.OutputPath, cfg.Report.Format, data); err != nil {
			return err
		}
		ui.PrintInfo("Report", cfg.Report.OutputPath)
	}
	return nil
}
