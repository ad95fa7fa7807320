package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/strangerchat/internal/app"
	"github.com/vovakirdan/strangerchat/internal/auth"
	"github.com/vovakirdan/strangerchat/internal/config"
	"github.com/vovakirdan/strangerchat/internal/log"
)

var (
	flagConfig   string
	flagLogLevel string
	flagServer   string
	flagAddr     string
	flagTokenTTL time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "strangerchat",
	Short:         "Anonymous interest-based one-to-one chat",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the terminal chat client (default)",
	RunE:  runChat,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development matchmaking server",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a privileged token for a user id with the server admin secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "path to config.yaml (default ./config.yaml or $STRANGERCHAT_CONFIG_DEFAULT_PATH)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{rootCmd, chatCmd} {
		cmd.Flags().StringVar(&flagServer, "server", "", "matchmaking server WebSocket URL override")
	}
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address override")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", auth.DefaultTTL, "token lifetime")

	rootCmd.AddCommand(chatCmd, serveCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "strangerchat:", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration, logging bootstrap problems to stderr.
func loadConfig() (config.Config, error) {
	bootstrap := log.New("warn", os.Stderr)
	cfg, path, err := config.Load(bootstrap, flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.UpdateFrom(flagOverrides())
	return cfg, nil
}

// flagOverrides collects command line values; empty flags leave config untouched.
func flagOverrides() config.Config {
	return config.Config{
		ServerURL: flagServer,
		LogLevel:  flagLogLevel,
		Server:    config.ServerConfig{Addr: flagAddr},
	}
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The UI owns the terminal, so logs go to a file.
	var out io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := log.OpenFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(cfg.LogLevel, out)
	logger.Info().Str("server_url", cfg.ServerURL).Msg("starting chat client")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.NewChat(cfg, logger).Run(ctx)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewServer(cfg, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken(auth.NewJWTConfig(cfg.Server.AdminSecret, flagTokenTTL), args[0])
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
