package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
)

// Processor runs extraction, analysis, compliance and enhancement in order.
type Processor struct {
	Logger       *slog.Logger
	Extractor    Extractor
	Analyzer     Analyzer
	Compliance   ComplianceValidator
	Enhancer     Enhancer
	StageTimeout time.Duration
	Metrics      *Metrics
}

func NewProcessor(logger *slog.Logger, ex Extractor, an Analyzer, cv ComplianceValidator, en Enhancer, stageTimeout time.Duration, metrics *Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Processor{
		Logger:       logger,
		Extractor:    ex,
		Analyzer:     an,
		Compliance:   cv,
		Enhancer:     en,
		StageTimeout: stageTimeout,
		Metrics:      metrics,
	}
}

// Run extracts the document and, on success, runs the three agents.
// An extraction error aborts and is returned unchanged; agent stages never fail.
func (p *Processor) Run(ctx context.Context, req extract.Request) (Result, error) {
	start := time.Now()
	reqID := requestID(ctx)
	ctx = common.WithRequestID(ctx, reqID)

	doc, err := p.Extract(ctx, req)
	if err != nil {
		p.Metrics.Documents.WithLabelValues("extract_failed").Inc()
		p.Logger.Error("pipeline.extract.failed", "req_id", reqID, "error", err)
		return Result{RequestID: reqID}, err
	}

	res := p.RunExtracted(ctx, doc)
	res.ElapsedMS = time.Since(start).Milliseconds()
	return res, nil
}

// Extract runs only the first stage, under the stage timeout.
func (p *Processor) Extract(ctx context.Context, req extract.Request) (extract.Document, error) {
	stageCtx, cancel := common.WithTimeout(ctx, p.StageTimeout)
	defer cancel()
	t := time.Now()
	doc, err := p.Extractor.Extract(stageCtx, req)
	p.observe(StageExtract, t)
	return doc, err
}

// RunExtracted starts at the analyzer with a caller-supplied extraction,
// which may have been edited by a reviewer. It always returns a full Result.
func (p *Processor) RunExtracted(ctx context.Context, doc extract.Document) Result {
	start := time.Now()
	reqID := requestID(ctx)
	res := Result{RequestID: reqID, Extraction: doc}

	var ok bool
	p.stage(ctx, StageAnalyze, func(c context.Context) bool {
		res.Analysis, ok = p.Analyzer.Analyze(c, doc)
		return ok
	}, &res)
	p.stage(ctx, StageComply, func(c context.Context) bool {
		res.Compliance, ok = p.Compliance.Validate(c, doc, res.Analysis)
		return ok
	}, &res)
	p.stage(ctx, StageEnhance, func(c context.Context) bool {
		res.Enhancement, ok = p.Enhancer.Enhance(c, doc, res.Compliance)
		return ok
	}, &res)

	outcome := "ok"
	if len(res.Degraded) > 0 {
		outcome = "degraded"
	}
	p.Metrics.Documents.WithLabelValues(outcome).Inc()
	res.ElapsedMS = time.Since(start).Milliseconds()

	p.Logger.Info("pipeline.done",
		"req_id", reqID,
		"doc_type", doc.DocType,
		"fields", len(doc.Fields),
		"status", res.Compliance.Status,
		"risk", res.Compliance.Risk,
		"degraded", res.Degraded,
		"elapsed_ms", res.ElapsedMS,
	)
	return res
}

func (p *Processor) stage(ctx context.Context, name string, run func(context.Context) bool, res *Result) {
	stageCtx, cancel := common.WithTimeout(ctx, p.StageTimeout)
	defer cancel()
	t := time.Now()
	ok := run(stageCtx)
	p.observe(name, t)
	if !ok {
		res.Degraded = append(res.Degraded, name)
		p.Metrics.Fallbacks.WithLabelValues(name).Inc()
		p.Logger.Warn("pipeline."+name+".fallback", "req_id", res.RequestID)
	}
}

func (p *Processor) observe(stage string, since time.Time) {
	p.Metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

func requestID(ctx context.Context) string {
	if id := common.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
