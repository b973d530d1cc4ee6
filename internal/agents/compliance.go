package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// ComplianceValidator judges a document against trade finance guidelines.
type ComplianceValidator struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewComplianceValidator(gen llm.Generator, logger *slog.Logger) *ComplianceValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplianceValidator{gen: gen, logger: logger}
}

type complianceWire struct {
	Status          string   `json:"compliance_status"`
	Risk            string   `json:"risk_assessment"`
	Violations      []string `json:"violations"`
	Recommendations []string `json:"recommendations"`
}

// Validate returns the model's verdict, or FallbackCompliance with ok=false.
// A status or risk outside the known values counts as an unusable reply.
func (c *ComplianceValidator) Validate(ctx context.Context, doc extract.Document, analysis AnalysisReport) (ComplianceReport, bool) {
	start := time.Now()
	raw, err := c.gen.Generate(ctx, buildCompliancePrompt(doc, analysis))
	if err != nil {
		c.logger.Warn("agents.compliance.generate_failed", "model", c.gen.Name(), "error", err)
		return FallbackCompliance(), false
	}

	var wire complianceWire
	if err := llm.DecodeResponse(raw, complianceSchema, &wire); err != nil {
		c.logger.Warn("agents.compliance.fallback", "error", err, "raw_bytes", len(raw))
		return FallbackCompliance(), false
	}
	status, sok := ParseStatus(wire.Status)
	risk, rok := ParseRisk(wire.Risk)
	if !sok || !rok {
		c.logger.Warn("agents.compliance.fallback", "status", wire.Status, "risk", wire.Risk)
		return FallbackCompliance(), false
	}

	report := ComplianceReport{
		Status:          status,
		Risk:            risk,
		Violations:      nonNil(wire.Violations),
		Recommendations: nonNil(wire.Recommendations),
	}
	c.logger.Debug("agents.compliance.ok",
		"status", report.Status,
		"risk", report.Risk,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, true
}
