package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/app"
	"github.com/joseph-ayodele/tradedocs/internal/async"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/ingest"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/tui"
)

// buildProcessor validates the config and wires the full pipeline.
func (c *cli) buildProcessor(ctx context.Context) (*pipeline.Processor, func(), error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	backend, err := app.NewBackend(c.cfg.Extraction, c.logger)
	if err != nil {
		return nil, nil, err
	}
	gen, closeGen, err := app.NewGenerator(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, nil, err
	}
	proc := app.NewProcessor(c.cfg, backend, gen, nil, c.logger)
	return proc, func() { closeQuietly(c.logger, "generator", closeGen) }, nil
}

func parseDocType(s string) (constants.DocType, error) {
	if s == "" {
		return "", nil
	}
	dt, ok := constants.Canonicalize(s)
	if !ok {
		return "", common.UnsupportedFormatError(fmt.Sprintf("unsupported document type %q", s))
	}
	return dt, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd(c *cli) *cobra.Command {
	var docType string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Extract one document and run the three validation agents over it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := parseDocType(docType)
			if err != nil {
				return err
			}
			if dt == "" {
				var ok bool
				if dt, ok = ingest.DocTypeFromPath(args[0]); !ok {
					return common.InvalidInputError("--type is required when the parent directory does not name a document type")
				}
			}
			proc, done, err := c.buildProcessor(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			req, err := async.LoadRequest(args[0], dt)
			if err != nil {
				return err
			}
			res, err := proc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type ("+joinDocTypes()+")")
	return cmd
}

func joinDocTypes() string {
	return strings.Join(constants.AsStringSlice(), ", ")
}

// batchSink saves every finished job and tallies outcomes.
type batchSink struct {
	store  feedback.Store
	logger *slog.Logger

	mu        sync.Mutex
	records   []feedback.Record
	validated int
	failed    int
	degraded  int
}

func (s *batchSink) Done(ctx context.Context, job async.Job, status constants.JobStatus, res pipeline.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || status != constants.JobStatusValidated {
		s.failed++
		return
	}
	s.validated++
	if len(res.Degraded) > 0 {
		s.degraded++
	}
	rec := feedback.Record{
		ID:        job.ID,
		DocType:   job.DocType,
		Filename:  job.Path,
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	s.records = append(s.records, rec)
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("batch.save_failed", "path", job.Path, "error", err)
	}
}

func batchCmd(c *cli) *cobra.Command {
	var (
		dir        string
		docType    string
		workers    int
		skipHidden bool
		out        string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Validate every supported document under a directory",
		Long: `Walks --dir, queues each pdf/jpeg/png/tiff file and runs it through the
pipeline on a worker pool. Without --type, the document type is read from the
nearest parent directory name (e.g. inbox/invoice/a.pdf). Results are stored
in the feedback database (FEEDBACK_DB) and written as JSON to --out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				return common.InvalidInputError("--dir is required")
			}
			dt, err := parseDocType(docType)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			proc, done, err := c.buildProcessor(ctx)
			if err != nil {
				return err
			}
			defer done()

			store, err := app.OpenFeedback(ctx, c.cfg.Server.FeedbackDB, c.logger)
			if err != nil {
				return err
			}
			defer closeQuietly(c.logger, "feedback", store.Close)

			if workers <= 0 {
				workers = c.cfg.Server.QueueWorkers
			}
			sink := &batchSink{store: store, logger: c.logger}
			q := async.NewProcessorQueue(proc, c.logger,
				async.WithWorkers(workers),
				async.WithProcessTimeout(4*c.cfg.Pipeline.StageTimeout),
				async.WithSink(sink),
			)
			ing := ingest.NewFSIngestor(q, c.logger)

			_, stats, err := ing.IngestDirectory(ctx, dir, dt, skipHidden)
			q.Shutdown(context.Background())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeJSON(w, sink.records); err != nil {
				return err
			}
			c.logger.Info("batch.done",
				"matched", stats.Matched,
				"deduplicated", stats.Deduplicated,
				"validated", sink.validated,
				"degraded", sink.degraded,
				"failed", sink.failed+int(stats.Failed),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to scan (required)")
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type for every file")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (default QUEUE_WORKERS)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip dot files and directories")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Write results JSON here (- for stdout)")
	return cmd
}

func tuiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive document review in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the alt screen owns the terminal, so logs go to a file
			logFile, err := tea.LogToFile("tradedocs-tui.log", "")
			if err != nil {
				return err
			}
			defer logFile.Close()
			if c.logger, err = app.NewLogger(logFile, c.logLevel, c.logFormat); err != nil {
				return err
			}

			ctx := cmd.Context()
			proc, done, err := c.buildProcessor(ctx)
			if err != nil {
				return err
			}
			defer done()
			store, err := app.OpenFeedback(ctx, c.cfg.Server.FeedbackDB, c.logger)
			if err != nil {
				return err
			}
			defer closeQuietly(c.logger, "feedback", store.Close)

			model := tui.NewApp(proc, tui.WithFeedbackStore(store), tui.WithTimeout(4*c.cfg.Pipeline.StageTimeout))
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
