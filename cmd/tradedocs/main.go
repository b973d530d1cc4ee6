// Package main provides the tradedocs command-line tool: validate documents,
// run batches, query invoice analytics and manage the reference corpus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tradedocs/internal/app"
	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// cli carries what the persistent pre-run resolves for every subcommand.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *common.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "tradedocs",
		Short:         "Trade-finance document validation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := app.NewLogger(cmd.ErrOrStderr(), c.logLevel, c.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			c.logger = logger

			cfg, err := common.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file (env vars override it)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		validateCmd(c),
		batchCmd(c),
		tuiCmd(c),
		analyzeCmd(c),
		exportCmd(c),
		dbHealthCmd(c),
		indexCmd(c),
		chatCmd(c),
		keygenCmd(c),
	)
	return cmd
}

func closeQuietly(logger *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close.failed", "what", what, "error", err)
	}
}
