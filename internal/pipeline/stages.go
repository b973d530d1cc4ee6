package pipeline

import (
	"context"

	"github.com/joseph-ayodele/tradedocs/internal/agents"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
)

// Stage names used in logs, metrics and Result.Degraded.
const (
	StageExtract = "extract"
	StageAnalyze = "analyze"
	StageComply  = "compliance"
	StageEnhance = "enhance"
)

type Extractor interface {
	Extract(ctx context.Context, req extract.Request) (extract.Document, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, doc extract.Document) (agents.AnalysisReport, bool)
}

type ComplianceValidator interface {
	Validate(ctx context.Context, doc extract.Document, analysis agents.AnalysisReport) (agents.ComplianceReport, bool)
}

type Enhancer interface {
	Enhance(ctx context.Context, doc extract.Document, compliance agents.ComplianceReport) (agents.EnhancementReport, bool)
}

// Result is the composite bundle handed back to the caller.
type Result struct {
	RequestID   string                   `json:"request_id"`
	Extraction  extract.Document         `json:"extraction"`
	Analysis    agents.AnalysisReport    `json:"analysis"`
	Compliance  agents.ComplianceReport  `json:"compliance"`
	Enhancement agents.EnhancementReport `json:"enhancement"`
	Degraded    []string                 `json:"degraded,omitempty"`
	ElapsedMS   int64                    `json:"elapsed_ms"`
}
