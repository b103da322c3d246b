// Package cli implements the dash command.
package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docdash/internal/dashboard"
	"docdash/internal/tui"
	"docdash/pkg/client"
	"docdash/pkg/logger"
)

var (
	serverURL   string
	token       string
	sessionPath string
	logFile     string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "dash",
	Short: "Shared document dashboard",
	Long: `Browse and edit your private documents and the shared public documents.

Controls:
  tab     - Switch between private and public
  n       - New document
  enter   - Open in editor (ctrl+s save, esc close)
  d       - Delete (y/n to confirm)
  x       - Dismiss notification
  S       - Sign out
  q       - Quit`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("DOCDASH_SERVER", "http://localhost:8080"), "Server base URL")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session-file", os.Getenv("DOCDASH_SESSION_FILE"), "Session file (default ~/.docdash/session.toml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("DOCDASH_TOKEN"), "Custom token to redeem when there is no session")
}

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupLogging sends logs to --log-file. Without it logging stays off
// because the terminal belongs to the UI.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if logFile == "" {
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logger.InitWithWriter(f, logLevel)
	cobra.OnFinalize(func() {
		logger.Sync()
		f.Close()
	})
	return nil
}

func newClient() (*client.Client, error) {
	sessions, err := client.NewSessionFile(sessionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	return client.New(serverURL, sessions), nil
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	d := dashboard.New(c, c, dashboard.Options{Token: token})
	defer d.Close()

	app := tui.NewApp(ctx, d)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
