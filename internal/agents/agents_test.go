package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reply(s string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string) (string, error) { return s, nil })
}

var invoiceDoc = extract.Document{
	DocType: constants.Invoice,
	Fields:  extract.Fields{"invoice_number": "INV-100", "amount": "500"},
}

func TestAnalyzerCleanJSON(t *testing.T) {
	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return `{"missing_fields": ["due_date"], "critical_issues": [], "analysis_summary": "ok"}`, nil
	})

	got, ok := NewAnalyzer(gen, discardLogger()).Analyze(context.Background(), invoiceDoc)
	require.True(t, ok)
	assert.Equal(t, AnalysisReport{MissingFields: []string{"due_date"}, CriticalIssues: []string{}, Summary: "ok"}, got)
	assert.Contains(t, prompt, `"invoice_number": "INV-100"`)
	assert.Contains(t, prompt, "InvoiceTotal")
}

func TestAnalyzerFallbacks(t *testing.T) {
	tests := []struct {
		name string
		gen  llm.Generator
	}{
		{"prose", reply("The invoice looks fine to me.")},
		{"malformed", reply(`{"missing_fields": ["a",`)},
		{"missing key", reply(`{"missing_fields": [], "critical_issues": []}`)},
		{"wrong type", reply(`{"missing_fields": "due_date", "critical_issues": [], "analysis_summary": "x"}`)},
		{"model error", llm.GeneratorFunc(func(context.Context, string) (string, error) { return "", errors.New("connection refused") })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewAnalyzer(tt.gen, discardLogger()).Analyze(context.Background(), invoiceDoc)
			assert.False(t, ok)
			assert.Equal(t, FallbackAnalysis(), got)
			assert.Equal(t, []string{"Failed to parse analyzer response"}, got.CriticalIssues)
		})
	}
}

func TestComplianceNormalizesStatus(t *testing.T) {
	raw := "<think>The GSTIN is missing.</think>\nHere is the result:\n```json\n" +
		`{"compliance_status": "Non-Compliant", "risk_assessment": "Medium", "violations": ["GSTIN missing"], "recommendations": ["Add GSTIN"]}` +
		"\n```"

	got, ok := NewComplianceValidator(reply(raw), discardLogger()).Validate(context.Background(), invoiceDoc, FallbackAnalysis())
	require.True(t, ok)
	assert.Equal(t, ComplianceReport{
		Status:          StatusNonCompliant,
		Risk:            RiskMedium,
		Violations:      []string{"GSTIN missing"},
		Recommendations: []string{"Add GSTIN"},
	}, got)
}

func TestComplianceProseFallsBack(t *testing.T) {
	got, ok := NewComplianceValidator(reply("This document appears to be compliant with all regulations."), discardLogger()).
		Validate(context.Background(), invoiceDoc, AnalysisReport{})
	assert.False(t, ok)
	assert.Equal(t, ComplianceReport{
		Status:          StatusUnknown,
		Risk:            RiskHigh,
		Violations:      []string{"Failed to parse validator response"},
		Recommendations: []string{"Manual review required"},
	}, got)
}

func TestComplianceUnknownRiskFallsBack(t *testing.T) {
	raw := `{"compliance_status": "compliant", "risk_assessment": "negligible", "violations": [], "recommendations": []}`
	got, ok := NewComplianceValidator(reply(raw), discardLogger()).Validate(context.Background(), invoiceDoc, AnalysisReport{})
	assert.False(t, ok)
	assert.Equal(t, FallbackCompliance(), got)
}

func TestEnhancer(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := `"{\"suggested_values\": {\"due_date\": {\"value\": \"2024-05-01\", \"confidence\": 0.7}}, \"verification_steps\": [\"Call the buyer\"], \"additional_sources\": []}"`
		got, ok := NewEnhancer(reply(raw), discardLogger()).Enhance(context.Background(), invoiceDoc, FallbackCompliance())
		require.True(t, ok)
		assert.Equal(t, SuggestedValue{Value: "2024-05-01", Confidence: 0.7}, got.SuggestedValues["due_date"])
		assert.Equal(t, []string{"Call the buyer"}, got.VerificationSteps)
		assert.Equal(t, []string{}, got.AdditionalSources)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		raw := `{"suggested_values": {"due_date": {"value": "2024-05-01", "confidence": 1.5}}, "verification_steps": [], "additional_sources": []}`
		got, ok := NewEnhancer(reply(raw), discardLogger()).Enhance(context.Background(), invoiceDoc, FallbackCompliance())
		assert.False(t, ok)
		assert.Empty(t, got.SuggestedValues)
		assert.Equal(t, []string{"Failed to parse enhancement response"}, got.VerificationSteps)
	})
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]ComplianceStatus{
		"compliant":     StatusCompliant,
		" COMPLIANT ":   StatusCompliant,
		"non-compliant": StatusNonCompliant,
		"Non Compliant": StatusNonCompliant,
		"non_compliant": StatusNonCompliant,
		"unknown":       StatusUnknown,
	} {
		got, ok := ParseStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStatus("compliant/non-compliant")
	assert.False(t, ok)
}
