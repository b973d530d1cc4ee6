package agents

import (
	"strings"
)

// AnalysisReport is the analyzer's view of an extraction.
type AnalysisReport struct {
	MissingFields  []string `json:"missing_fields"`
	CriticalIssues []string `json:"critical_issues"`
	Summary        string   `json:"analysis_summary"`
}

type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
	StatusUnknown      ComplianceStatus = "unknown"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// ComplianceReport is the compliance verdict for one document.
type ComplianceReport struct {
	Status          ComplianceStatus `json:"compliance_status"`
	Risk            RiskLevel        `json:"risk_assessment"`
	Violations      []string         `json:"violations"`
	Recommendations []string         `json:"recommendations"`
}

// SuggestedValue is a proposed value for a missing or doubtful field.
type SuggestedValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// EnhancementReport proposes values and next steps for a reviewer.
type EnhancementReport struct {
	SuggestedValues   map[string]SuggestedValue `json:"suggested_values"`
	VerificationSteps []string                  `json:"verification_steps"`
	AdditionalSources []string                  `json:"additional_sources"`
}

// FallbackAnalysis is returned whenever the analyzer reply cannot be used.
func FallbackAnalysis() AnalysisReport {
	return AnalysisReport{
		MissingFields:  []string{},
		CriticalIssues: []string{"Failed to parse analyzer response"},
		Summary:        "Analysis failed",
	}
}

// FallbackCompliance assumes the worst: unknown status at high risk.
func FallbackCompliance() ComplianceReport {
	return ComplianceReport{
		Status:          StatusUnknown,
		Risk:            RiskHigh,
		Violations:      []string{"Failed to parse validator response"},
		Recommendations: []string{"Manual review required"},
	}
}

func FallbackEnhancement() EnhancementReport {
	return EnhancementReport{
		SuggestedValues:   map[string]SuggestedValue{},
		VerificationSteps: []string{"Failed to parse enhancement response"},
		AdditionalSources: []string{"Manual review required"},
	}
}

// ParseStatus maps the spellings models use onto a ComplianceStatus.
func ParseStatus(s string) (ComplianceStatus, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	switch n {
	case "compliant":
		return StatusCompliant, true
	case "non_compliant", "noncompliant", "not_compliant":
		return StatusNonCompliant, true
	case "unknown":
		return StatusUnknown, true
	}
	return "", false
}

func ParseRisk(s string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskHigh:
		return RiskHigh, true
	case RiskMedium:
		return RiskMedium, true
	case RiskLow:
		return RiskLow, true
	}
	return "", false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
