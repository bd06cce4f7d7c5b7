// Package cli implements the pluginhub command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eshaffer321/pluginhub-go/internal/config"
	"github.com/eshaffer321/pluginhub-go/internal/logging"
	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

const sessionFileName = "session.json"

var (
	flagBaseURL     string
	flagSessionFile string
	flagDebug       bool
	flagLogLevel    string
	flagLogFormat   string
	flagJSON        bool

	logger *slog.Logger
	client *pluginhub.Client
)

// NewRootCmd creates the root cobra command for the pluginhub CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pluginhub",
		Short: "Plugin marketplace client",
		Long:  "pluginhub signs in to the plugin marketplace, browses the catalog and manages subscriptions and affiliate accounts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("base-url") {
				cfg.BaseURL = flagBaseURL
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			if flagSessionFile != "" {
				cfg.SessionFile = flagSessionFile
			}
			if cfg.SessionFile == "" {
				if cfg.SessionFile, err = defaultSessionPath(); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

			client, err = pluginhub.NewClient(cfg.ClientOptions(logger))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if client != nil {
				client.Close()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "Marketplace API base URL (or PLUGINHUB_API_BASE_URL env)")
	root.PersistentFlags().StringVar(&flagSessionFile, "session-file", "", "Where the access token is kept (default ~/.pluginhub/session.json)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newWhoamiCmd(),
		newPasswordCmd(),
		newPluginsCmd(),
		newSubscriptionCmd(),
		newAffiliateCmd(),
		newChatCmd(),
	)

	return root
}

// defaultSessionPath returns ~/.pluginhub/session.json
func defaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".pluginhub", sessionFileName), nil
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
