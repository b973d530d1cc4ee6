package llm

// StringArrayProp is a JSON-Schema property for a list of strings.
func StringArrayProp() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// ObjectSchema builds an object schema whose listed keys are required.
// Extra keys are allowed.
func ObjectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
