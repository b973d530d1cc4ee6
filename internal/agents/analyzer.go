package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// Analyzer finds missing fields and critical issues in an extraction.
type Analyzer struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewAnalyzer(gen llm.Generator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze issues one prompt. ok is false when the reply could not be used and
// the fallback report was returned instead; no error ever leaves this call.
func (a *Analyzer) Analyze(ctx context.Context, doc extract.Document) (report AnalysisReport, ok bool) {
	start := time.Now()
	raw, err := a.gen.Generate(ctx, buildAnalyzerPrompt(doc))
	if err != nil {
		a.logger.Warn("agents.analyze.generate_failed", "model", a.gen.Name(), "error", err)
		return FallbackAnalysis(), false
	}
	if err := llm.DecodeResponse(raw, analysisSchema, &report); err != nil {
		a.logger.Warn("agents.analyze.fallback", "error", err, "raw_bytes", len(raw))
		return FallbackAnalysis(), false
	}
	report.MissingFields = nonNil(report.MissingFields)
	report.CriticalIssues = nonNil(report.CriticalIssues)

	a.logger.Debug("agents.analyze.ok",
		"missing", len(report.MissingFields),
		"issues", len(report.CriticalIssues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, true
}
