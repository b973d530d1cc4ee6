package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// Enhancer suggests values for missing fields along with verification steps.
type Enhancer struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewEnhancer(gen llm.Generator, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{gen: gen, logger: logger}
}

func (e *Enhancer) Enhance(ctx context.Context, doc extract.Document, compliance ComplianceReport) (report EnhancementReport, ok bool) {
	start := time.Now()
	raw, err := e.gen.Generate(ctx, buildEnhancementPrompt(doc, compliance))
	if err != nil {
		e.logger.Warn("agents.enhance.generate_failed", "model", e.gen.Name(), "error", err)
		return FallbackEnhancement(), false
	}
	if err := llm.DecodeResponse(raw, enhancementSchema, &report); err != nil {
		e.logger.Warn("agents.enhance.fallback", "error", err, "raw_bytes", len(raw))
		return FallbackEnhancement(), false
	}
	if report.SuggestedValues == nil {
		report.SuggestedValues = map[string]SuggestedValue{}
	}
	report.VerificationSteps = nonNil(report.VerificationSteps)
	report.AdditionalSources = nonNil(report.AdditionalSources)

	e.logger.Debug("agents.enhance.ok",
		"suggestions", len(report.SuggestedValues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, true
}
