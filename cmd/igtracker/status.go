package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igtracker/pkg/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last cycle and the tracked totals",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := st.Summary(context.Background())
	if err != nil {
		return err
	}

	ui.PrintHighlight("Tracked state")
	ui.PrintInfo("Database", cfg.Storage.DatabasePath)
	ui.PrintInfo("Active following", fmt.Sprint(sum.Active))
	ui.PrintInfo("Mutual", fmt.Sprint(sum.Mutual))
	ui.PrintInfo("Not following back", fmt.Sprint(sum.NotMutual))
	ui.PrintInfo("No longer followed", fmt.Sprint(sum.Inactive))
	ui.PrintInfo("History events", fmt.Sprint(sum.Events))
	if !sum.LastActivity.IsZero() {
		ui.PrintInfo("Last change", sum.LastActivity.Local().Format(time.RFC1123))
	}

	runs, err := runState(cfg)
	if err != nil {
		return err
	}
	run, err := runs.Load()
	if err != nil {
		return err
	}

	fmt.Fprintln(ui.Output)
	if run == nil {
		ui.PrintInfo("Last cycle", "none recorded")
		return nil
	}

	ui.PrintHighlight("Last cycle")
	ui.PrintInfo("ID", run.ID)
	ui.PrintInfo("Account", run.Username)
	ui.PrintInfo("Started", run.StartedAt.Local().Format(time.RFC1123))
	if !run.FinishedAt.IsZero() {
		ui.PrintInfo("Duration", run.Duration.Round(time.Second).String())
	}
	if run.Succeeded() {
		ui.PrintSuccess("Outcome: " + string(run.Outcome))
	} else {
		ui.PrintError("Outcome: " + string(run.Outcome))
	}
	if run.Error != "" {
		ui.PrintWarning("Reason", run.Error)
	}
	ui.PrintInfo("Collected", fmt.Sprintf("%d of %d (%.1f%%, %d pass(es))", run.Collected, run.Expected, run.Quality*100, run.Passes))
	ui.PrintInfo("Events", fmt.Sprintf("%d new, %d unfollowed", run.NewFollows, run.Unfollows))
	if run.ReciprocityFailures > 0 {
		ui.PrintWarning("Follow-back checks failed", run.ReciprocityFailures)
	}
	return nil
}
