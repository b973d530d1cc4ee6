package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/tradedocs/internal/analytics"
	"github.com/joseph-ayodele/tradedocs/internal/chat"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/ingest"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

// Pipeline is the part of pipeline.Processor the document routes use.
type Pipeline interface {
	Extract(ctx context.Context, req extract.Request) (extract.Document, error)
	RunExtracted(ctx context.Context, doc extract.Document) pipeline.Result
}

type Chatter interface {
	Reply(ctx context.Context, message string) (chat.Reply, error)
}

type InvoiceAnalyzer interface {
	Analyze(ctx context.Context, msmeID, topic string) (analytics.Result, error)
}

type InvoiceExporter interface {
	ExportInvoicesCSV(ctx context.Context, msmeID string) ([]byte, error)
	ExportInvoicesXLSX(ctx context.Context, msmeID string) ([]byte, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker func(ctx context.Context) error

// Deps are the services behind the routes. Nil optional services leave
// their routes unregistered.
type Deps struct {
	Pipeline  Pipeline
	Sessions  *session.Store
	Feedback  feedback.Store
	Chat      Chatter         // optional
	Analytics InvoiceAnalyzer // optional
	Export    InvoiceExporter // optional
	Ingestor  ingest.Ingestor // optional
	Health    HealthChecker   // optional
	Gatherer  prometheus.Gatherer
	Metrics   *HTTPMetrics
}

// Server is the JSON HTTP surface.
type Server struct {
	deps           Deps
	logger         *slog.Logger
	metrics        *HTTPMetrics
	maxUploadBytes int64
}

type Option func(*Server)

func WithMaxUploadMB(mb int) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxUploadBytes = int64(mb) << 20
		}
	}
}

func New(deps Deps, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore()
	}
	if deps.Feedback == nil {
		deps.Feedback = feedback.NewMemoryStore()
	}
	s := &Server{deps: deps, logger: logger, metrics: deps.Metrics, maxUploadBytes: 20 << 20}
	if s.metrics == nil {
		s.metrics = NewHTTPMetrics(nil)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /documents", s.handleUpload)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("POST /documents/{id}/process", s.handleProcess)
	mux.HandleFunc("GET /documents/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("GET /feedback", s.handleListFeedback)

	if s.deps.Chat != nil {
		mux.HandleFunc("POST /chat", s.handleChat)
	}
	if s.deps.Analytics != nil {
		mux.HandleFunc("GET /analyze_invoice/", s.handleAnalyze)
		mux.HandleFunc("POST /analyze_invoice/", s.handleAnalyze)
	}
	if s.deps.Export != nil {
		mux.HandleFunc("GET /msme/{id}/invoices.csv", s.handleExportCSV)
		mux.HandleFunc("GET /msme/{id}/invoices.xlsx", s.handleExportXLSX)
	}
	if s.deps.Ingestor != nil {
		mux.HandleFunc("POST /ingest", s.handleIngest)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return s.instrument(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			s.logger.Warn("health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Status: statusError, Code: codeUnavailable, Response: err.Error()})
			return
		}
	}
	writeSuccess(w, http.StatusOK, "ok", nil)
}

// ListenAndServe serves h on addr until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("http.shutdown")
	return srv.Shutdown(shutdownCtx)
}
