package main

import (
	"github.com/spf13/cobra"

	"igtracker/pkg/logger"
	"igtracker/pkg/tracker"
	"igtracker/pkg/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check <identifier>",
	Short: "Check whether one account follows you back",
	Long: `Sign in and inspect the first entries of the account's following list
for your own profile. The database is not changed.`,
	Example: `  igtracker check natgeo
  igtracker check natgeo --reciprocity-prefix 10`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Int("reciprocity-prefix", 0, "following entries to inspect")
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext()
	defer cancel()

	log := logger.GetLogger()
	t := tracker.New(cfg, st, tracker.BrowserSessions(cfg.Browser, log), tracker.WithLogger(log))

	identifier := args[0]
	follows, err := t.CheckReciprocity(ctx, identifier)
	if err != nil {
		ui.PrintError("Check failed", err.Error())
		return err
	}
	if follows {
		ui.PrintSuccess(identifier + " follows you back")
	} else {
		ui.PrintWarning(identifier + " does not follow you back")
	}
	return nil
}
