// Command tradedocsd serves the document-validation HTTP API, the gRPC
// health service and, when INBOX_DIR is set, a watched inbox that feeds the
// same pipeline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/analytics"
	"github.com/joseph-ayodele/tradedocs/internal/app"
	"github.com/joseph-ayodele/tradedocs/internal/async"
	"github.com/joseph-ayodele/tradedocs/internal/chat"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/export"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/ingest"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/repository"
	"github.com/joseph-ayodele/tradedocs/internal/server"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

const sessionTTL = 2 * time.Hour

func main() {
	configPath := flag.String("config", "", "YAML config file (env vars override it)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "json", "Log format (text, json)")
	flag.Parse()

	logger, err := app.NewLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		slog.Error("logger", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("tradedocsd.exit", "error", err)
		os.Exit(1)
	}
	logger.Info("tradedocsd.stopped")
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, err := app.NewBackend(cfg.Extraction, logger)
	if err != nil {
		return err
	}
	gen, closeGen, err := app.NewGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "generator", closeGen)
	proc := app.NewProcessor(cfg, backend, gen, reg, logger)

	store, err := app.OpenFeedback(ctx, cfg.Server.FeedbackDB, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "feedback", store.Close)

	sessions := session.NewStore()
	deps := server.Deps{
		Pipeline: proc,
		Sessions: sessions,
		Feedback: store,
		Gatherer: reg,
		Metrics:  server.NewHTTPMetrics(reg),
	}

	// Analytics and export need the invoice database.
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer repository.Close(pool, logger)

		box, err := app.NewCipher(cfg.Security, logger)
		if err != nil {
			return err
		}
		summaryGen, closeSummary, err := app.NewSummaryGenerator(ctx, cfg, gen, logger)
		if err != nil {
			return err
		}
		defer closeQuietly(logger, "summary generator", closeSummary)

		msmes := repository.NewMSMERepository(pool, logger)
		invoices := repository.NewInvoiceRepository(pool, logger)
		deps.Analytics = analytics.NewService(msmes, invoices, box, analytics.NewSecureSummarizer(box, summaryGen, logger), logger)
		deps.Export = export.NewService(msmes, invoices, logger)
		deps.Health = func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, 2*time.Second, logger)
		}
	} else {
		logger.Info("tradedocsd.database_disabled", "reason", "DB_URL not set")
	}

	idx, _, err := app.OpenCorpus(ctx, cfg.Corpus, false, logger)
	if err != nil {
		return err
	}
	var retriever chat.Retriever
	if idx != nil {
		retriever = idx
	}
	deps.Chat = chat.NewService(gen, retriever, cfg.Corpus.TopK, logger)

	q := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Server.QueueWorkers),
		async.WithQueueSize(1024),
		async.WithProcessTimeout(4*cfg.Pipeline.StageTimeout),
		async.WithSink(saveSink(store, logger)),
	)
	ing := ingest.NewFSIngestor(q, logger)
	deps.Ingestor = ing

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.InboxDir != "" {
		paths, errs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
			Roots:       []string{cfg.Server.InboxDir},
			InitialScan: true,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			ingest.Feed(gctx, ing, paths, logger)
			return nil
		})
		g.Go(func() error {
			for err := range errs {
				logger.Warn("watcher.error", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n := sessions.Prune(sessionTTL); n > 0 {
					logger.Info("session.pruned", "count", n)
				}
			}
		}
	})

	hs := health.NewServer()
	g.Go(func() error {
		server.WatchHealth(gctx, hs, deps.Health, 15*time.Second, logger)
		return nil
	})
	g.Go(func() error {
		return server.ServeGRPC(gctx, cfg.Server.GRPCAddr, server.NewGRPCServer(hs), logger)
	})

	srv := server.New(deps, logger, server.WithMaxUploadMB(cfg.Server.MaxUploadMB))
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Server.HTTPAddr, srv.Handler(), logger)
	})

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	q.Shutdown(drainCtx)
	return err
}

// saveSink stores every validated inbox document as a feedback record.
func saveSink(store feedback.Store, logger *slog.Logger) async.Sink {
	return async.SinkFunc(func(ctx context.Context, job async.Job, status constants.JobStatus, res pipeline.Result, err error) {
		if err != nil || status != constants.JobStatusValidated {
			return
		}
		rec := feedback.Record{
			ID:        job.ID,
			DocType:   job.DocType,
			Filename:  job.Path,
			Result:    res,
			CreatedAt: time.Now().UTC(),
		}
		if err := store.Save(ctx, rec); err != nil {
			logger.Error("inbox.save_failed", "path", job.Path, "error", err)
		}
	})
}

func closeQuietly(logger *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close.failed", "what", what, "error", err)
	}
}
