package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"satellitor-desktop/internal/cache"
	"satellitor-desktop/internal/config"
	"satellitor-desktop/internal/session"
)

var (
	configPath string
	sessionID  string
	verbose    bool
	settings   *config.UserSettings
)

var rootCmd = &cobra.Command{
	Use:           "satellitor",
	Short:         "Capture map views of Egypt for land analysis and fetch the resulting charts and report",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			log.SetOutput(io.Discard)
		}

		var err error
		settings, err = config.LoadSettingsFrom(configPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetSettingsPath(), "Path to the settings file")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session to use (defaults to the current one)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func currentSessionFile() string {
	return filepath.Join(cache.GetCacheRoot(), "sessions", "current")
}

// openSession opens the session named by --session or the current one.
// With create set, a missing current session is started and remembered.
func openSession(create bool) (*session.FileRepository, error) {
	root := cache.GetCacheRoot()
	if sessionID != "" {
		return session.OpenFileRepository(root, sessionID)
	}

	data, err := os.ReadFile(currentSessionFile())
	if err == nil && strings.TrimSpace(string(data)) != "" {
		return session.OpenFileRepository(root, strings.TrimSpace(string(data)))
	}
	if !create {
		return nil, fmt.Errorf("no current session; run `satellitor capture` first")
	}

	repo, err := session.NewFileRepository(root)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(currentSessionFile(), []byte(repo.ID()+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to remember session: %w", err)
	}
	return repo, nil
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
