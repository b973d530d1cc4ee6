package agents

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
)

const jsonOnly = "Output must be valid JSON only. Do not include any explanation, only output valid JSON."

func indentJSON(v any) string {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(bs)
}

func docLabel(doc extract.Document) string {
	if doc.DocType == "" {
		return "trade finance document"
	}
	return doc.DocType.Label()
}

func buildAnalyzerPrompt(doc extract.Document) string {
	var b strings.Builder
	b.WriteString("You are a Document Analysis Agent specialized in trade finance documents.\n")
	b.WriteString("Analyze the following data extracted from a " + docLabel(doc) + ":\n\n")
	b.WriteString(indentJSON(doc.Fields))
	b.WriteString("\n\n")
	if expected := constants.ExpectedFields[doc.DocType]; len(expected) > 0 {
		b.WriteString("Fields normally present on this document type: " + strings.Join(expected, ", ") + ".\n\n")
	}
	b.WriteString("Your tasks:\n")
	b.WriteString("1. Identify all missing fields that should be present in a trade finance document.\n")
	b.WriteString("2. Highlight critical issues or inconsistencies in the provided data.\n")
	b.WriteString("3. Provide a structured summary of your findings.\n\n")
	b.WriteString("Respond with this structure:\n")
	b.WriteString(`{"missing_fields": ["field1"], "critical_issues": ["issue1"], "analysis_summary": "detailed summary"}`)
	b.WriteString("\n" + jsonOnly)
	return b.String()
}

func buildCompliancePrompt(doc extract.Document, analysis AnalysisReport) string {
	var b strings.Builder
	b.WriteString("You are a Compliance Validation Agent specializing in trade finance regulations.\n")
	b.WriteString("Validate the document compliance against government trade finance guidelines.\n\n")
	b.WriteString("Extracted Data (" + docLabel(doc) + "):\n")
	b.WriteString(indentJSON(doc.Fields))
	b.WriteString("\n\nPrevious Analysis:\n")
	b.WriteString(indentJSON(analysis))
	b.WriteString("\n\nYour tasks:\n")
	b.WriteString("1. Determine if the document is compliant or non-compliant.\n")
	b.WriteString("2. Assess compliance risk as high, medium, or low.\n")
	b.WriteString("3. Identify any violations of trade finance regulations.\n")
	b.WriteString("4. Provide recommendations for achieving compliance.\n\n")
	b.WriteString("Respond with this structure:\n")
	b.WriteString(`{"compliance_status": "compliant|non-compliant", "risk_assessment": "high|medium|low", "violations": ["violation1"], "recommendations": ["rec1"]}`)
	b.WriteString("\n" + jsonOnly)
	return b.String()
}

func buildEnhancementPrompt(doc extract.Document, compliance ComplianceReport) string {
	var b strings.Builder
	b.WriteString("You are a Data Enhancement Agent specializing in trade finance documents.\n")
	b.WriteString("Enhance extracted data and suggest missing values.\n\n")
	b.WriteString("Extracted Data (" + docLabel(doc) + "):\n")
	b.WriteString(indentJSON(doc.Fields))
	b.WriteString("\n\nCompliance Analysis:\n")
	b.WriteString(indentJSON(compliance))
	b.WriteString("\n\nYour tasks:\n")
	b.WriteString("1. Suggest possible values for missing fields using available context.\n")
	b.WriteString("2. Assign confidence scores between 0 and 1 for each suggested value.\n")
	b.WriteString("3. Recommend verification steps and additional data sources.\n\n")
	b.WriteString("Respond with this structure:\n")
	b.WriteString(`{"suggested_values": {"field1": {"value": "suggested_value", "confidence": 0.9}}, "verification_steps": ["step1"], "additional_sources": ["source1"]}`)
	b.WriteString("\n" + jsonOnly)
	return b.String()
}
