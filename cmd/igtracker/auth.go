package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igtracker/pkg/auth"
	"igtracker/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram login credentials",
	Long: `Manage the Instagram login used by collection cycles.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file (AES-GCM, argon2id key derivation)
  - Environment variables IGTRACKER_USERNAME / IGTRACKER_PASSWORD (read-only)`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a username and password",
	Example: `  igtracker auth login
  igtracker auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Fprint(ui.Output, "Instagram username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = input
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Fprintf(ui.Output, "Account '%s' already exists. Update the password? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprint(ui.Output, "Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := manager.Store(&auth.Account{Username: username, Password: password}); err != nil {
		return err
	}
	ui.PrintSuccess("Credentials stored for " + username)
	fmt.Fprintln(ui.Output, "\nRun a cycle with:")
	fmt.Fprintf(ui.Output, "  igtracker collect --username %s\n", username)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Credentials removed for " + args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'igtracker auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(ui.Output, "%d. %s\n", i+1, sanitized.Username)
		fmt.Fprintf(ui.Output, "   Password: %s\n", sanitized.Password)
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(ui.Output, "   Last Modified: %s\n", sanitized.LastModified.Local().Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// readPassword reads without echo on a terminal and falls back to a plain line
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return string(password), nil
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
