package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tradedocs/internal/analytics"
	"github.com/joseph-ayodele/tradedocs/internal/app"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/export"
	"github.com/joseph-ayodele/tradedocs/internal/repository"
)

func (c *cli) openDB(ctx context.Context) (*pgxpool.Pool, error) {
	if err := c.cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	db := c.cfg.Database
	return repository.Open(ctx, repository.Config{
		DSN:              db.DSN,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}, c.logger)
}

func analyzeCmd(c *cli) *cobra.Command {
	var msmeID, topic string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize an MSME's invoices on a topic (premium only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer repository.Close(pool, c.logger)

			box, err := app.NewCipher(c.cfg.Security, c.logger)
			if err != nil {
				return err
			}
			gen, closeGen, err := app.NewGenerator(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer closeQuietly(c.logger, "generator", closeGen)
			summaryGen, closeSummary, err := app.NewSummaryGenerator(ctx, c.cfg, gen, c.logger)
			if err != nil {
				return err
			}
			defer closeQuietly(c.logger, "summary generator", closeSummary)

			svc := analytics.NewService(
				repository.NewMSMERepository(pool, c.logger),
				repository.NewInvoiceRepository(pool, c.logger),
				box,
				analytics.NewSecureSummarizer(box, summaryGen, c.logger),
				c.logger,
			)
			res, err := svc.Analyze(ctx, msmeID, topic)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Response)
			fmt.Fprintf(cmd.OutOrStdout(), "\npremium days remaining: %d\n", res.PremiumDays)
			return nil
		},
	}
	cmd.Flags().StringVar(&msmeID, "msme", "", "MSME id")
	cmd.Flags().StringVar(&topic, "topic", "", "What to summarize, e.g. \"monthly sales\"")
	return cmd
}

func exportCmd(c *cli) *cobra.Command {
	var msmeID, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an MSME's invoice table as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "xlsx" {
				return common.InvalidInputError("--format must be csv or xlsx")
			}
			ctx := cmd.Context()
			pool, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer repository.Close(pool, c.logger)

			svc := export.NewService(
				repository.NewMSMERepository(pool, c.logger),
				repository.NewInvoiceRepository(pool, c.logger),
				c.logger,
			)
			var data []byte
			if format == "csv" {
				data, err = svc.ExportInvoicesCSV(ctx, msmeID)
			} else {
				data, err = svc.ExportInvoicesXLSX(ctx, msmeID)
			}
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("invoices_%s.%s", msmeID, format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			c.logger.Info("export.written", "path", out, "bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&msmeID, "msme", "", "MSME id")
	cmd.Flags().StringVar(&format, "format", "xlsx", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default invoices_<msme>.<format>)")
	return cmd
}

func dbHealthCmd(c *cli) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check the PostgreSQL connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer repository.Close(pool, c.logger)

			if err := repository.HealthCheck(ctx, pool, timeout, c.logger); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "Ping timeout")
	return cmd
}
