package agents

import (
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

var (
	analysisSchema = llm.MustCompileSchema("analysis.json", llm.ObjectSchema(map[string]any{
		"missing_fields":   llm.StringArrayProp(),
		"critical_issues":  llm.StringArrayProp(),
		"analysis_summary": map[string]any{"type": "string"},
	}, "missing_fields", "critical_issues", "analysis_summary"))

	complianceSchema = llm.MustCompileSchema("compliance.json", llm.ObjectSchema(map[string]any{
		"compliance_status": map[string]any{"type": "string"},
		"risk_assessment":   map[string]any{"type": "string"},
		"violations":        llm.StringArrayProp(),
		"recommendations":   llm.StringArrayProp(),
	}, "compliance_status", "risk_assessment", "violations", "recommendations"))

	enhancementSchema = llm.MustCompileSchema("enhancement.json", llm.ObjectSchema(map[string]any{
		"suggested_values": map[string]any{
			"type": "object",
			"additionalProperties": llm.ObjectSchema(map[string]any{
				"value":      map[string]any{"type": "string"},
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			}, "value", "confidence"),
		},
		"verification_steps": llm.StringArrayProp(),
		"additional_sources": llm.StringArrayProp(),
	}, "suggested_values", "verification_steps", "additional_sources"))
)
