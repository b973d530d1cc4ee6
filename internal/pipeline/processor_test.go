package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/agents"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type extractorFunc func(ctx context.Context, req extract.Request) (extract.Document, error)

func (f extractorFunc) Extract(ctx context.Context, req extract.Request) (extract.Document, error) {
	return f(ctx, req)
}

func invoiceExtractor() Extractor {
	return extractorFunc(func(context.Context, extract.Request) (extract.Document, error) {
		return extract.Document{
			DocType: constants.Invoice,
			Fields:  extract.Fields{"invoice_number": "INV-100", "amount": "500"},
		}, nil
	})
}

// routedGenerator answers each agent prompt by its opening role line.
func routedGenerator(calls *atomic.Int32, analyzer, compliance, enhancer string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		calls.Add(1)
		switch {
		case strings.HasPrefix(prompt, "You are a Document Analysis Agent"):
			return analyzer, nil
		case strings.HasPrefix(prompt, "You are a Compliance Validation Agent"):
			return compliance, nil
		default:
			return enhancer, nil
		}
	})
}

func newProcessor(ex Extractor, gen llm.Generator, timeout time.Duration, m *Metrics) *Processor {
	log := discardLogger()
	return NewProcessor(log, ex,
		agents.NewAnalyzer(gen, log),
		agents.NewComplianceValidator(gen, log),
		agents.NewEnhancer(gen, log),
		timeout, m)
}

func TestRunDegradesOnProseCompliance(t *testing.T) {
	var calls atomic.Int32
	gen := routedGenerator(&calls,
		`{"missing_fields": ["due_date"], "critical_issues": [], "analysis_summary": "ok"}`,
		"I think this invoice is compliant overall.",
		`{"suggested_values": {}, "verification_steps": ["Confirm due date"], "additional_sources": ["Buyer PO"]}`,
	)
	m := NewMetrics(prometheus.NewRegistry())
	p := newProcessor(invoiceExtractor(), gen, time.Second, m)

	res, err := p.Run(context.Background(), extract.Request{})
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "INV-100", res.Extraction.Fields["invoice_number"])
	assert.Equal(t, agents.AnalysisReport{MissingFields: []string{"due_date"}, CriticalIssues: []string{}, Summary: "ok"}, res.Analysis)
	assert.Equal(t, agents.FallbackCompliance(), res.Compliance)
	assert.Equal(t, []string{"Confirm due date"}, res.Enhancement.VerificationSteps)
	assert.Equal(t, []string{StageComply}, res.Degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues(StageComply)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("degraded")))
}

func TestRunAllStagesFallBack(t *testing.T) {
	var calls atomic.Int32
	gen := routedGenerator(&calls, "nope", "nope", "nope")

	res, err := newProcessor(invoiceExtractor(), gen, 0, nil).Run(context.Background(), extract.Request{})
	require.NoError(t, err)
	assert.Equal(t, agents.FallbackAnalysis(), res.Analysis)
	assert.Equal(t, agents.FallbackCompliance(), res.Compliance)
	assert.Equal(t, agents.FallbackEnhancement(), res.Enhancement)
	assert.Equal(t, []string{StageAnalyze, StageComply, StageEnhance}, res.Degraded)
}

func TestRunAbortsOnExtractionFailure(t *testing.T) {
	var calls atomic.Int32
	gen := routedGenerator(&calls, "", "", "")
	ex := extractorFunc(func(context.Context, extract.Request) (extract.Document, error) {
		return extract.Document{}, common.ExtractionServiceError(assert.AnError)
	})

	_, err := newProcessor(ex, gen, time.Second, nil).Run(context.Background(), extract.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtractionService)
	assert.Zero(t, calls.Load())
}

func TestStageTimeoutFallsBack(t *testing.T) {
	slow := llm.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	start := time.Now()
	res := newProcessor(invoiceExtractor(), slow, 20*time.Millisecond, nil).
		RunExtracted(context.Background(), extract.Document{Fields: extract.Fields{"a": "b"}})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, res.Degraded, 3)
	assert.Equal(t, agents.FallbackEnhancement(), res.Enhancement)
}

func TestRunExtractedKeepsRequestID(t *testing.T) {
	var calls atomic.Int32
	gen := routedGenerator(&calls, "x", "x", "x")
	ctx := common.WithRequestID(context.Background(), "req-42")

	res := newProcessor(invoiceExtractor(), gen, 0, nil).RunExtracted(ctx, extract.Document{})
	assert.Equal(t, "req-42", res.RequestID)
}
