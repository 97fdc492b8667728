package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/lobbynet/internal/config"
	"github.com/mcoot/lobbynet/internal/dirclient"
	"github.com/mcoot/lobbynet/internal/telemetry"
)

var (
	cfg             *Config
	client          *dirclient.Client
	logger          *slog.Logger
	shutdownTracing telemetry.ShutdownFunc
)

// NewRootCmd creates the root command
func NewRootCmd() (*cobra.Command, error) {
	var err error
	if cfg, err = DefaultConfig(); err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "lobbynet",
		Short: "Host, find and join multiplayer sessions",
		Long: `lobbynet is a peer for the lobbynet directory.

It signs in to a directory server, lists and joins public sessions, and hosts
sessions that other peers connect to directly. While in a session it keeps the
shared roster in sync and reports when every player is ready.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			level := config.ParseLevel(cfg.LogLevel)
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			var err error
			if shutdownTracing, err = telemetry.Setup(cmd.Context(), "lobbynet", cfg.OTelEndpoint); err != nil {
				return err
			}

			client = dirclient.New(cfg.DirectoryURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.DirectoryURL, "directory", cfg.DirectoryURL, "Directory URL (env: LOBBYNET_DIRECTORY_URL)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: LOBBYNET_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: LOBBYNET_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Debug logging to stderr")

	rootCmd.AddCommand(newIdentityCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newHostCmd())
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd, nil
}

// Execute runs the root command
func Execute() {
	rootCmd, err := NewRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	err = rootCmd.Execute()
	flushTraces()
	if err != nil {
		os.Exit(1)
	}
}

func flushTraces() {
	if shutdownTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("failed to flush traces", slog.String("error", err.Error()))
	}
}
