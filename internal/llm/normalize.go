package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// thinkPattern matches reasoning blocks emitted by deepseek-r1 style models.
	thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(\\{.*?\\})\\s*```")
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// NormalizeResponse turns a raw model reply into the JSON object it carries.
// It tolerates prose around a fenced block, reasoning blocks, surrounding quotes,
// line comments and trailing commas. It returns "" when no object is present.
func NormalizeResponse(content string) string {
	s := unquote(StripReasoning(content))

	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(s); len(m) > 1 {
		raw = m[1]
	} else if m := jsonObjectPattern.FindString(s); m != "" {
		raw = m
	}
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

// StripReasoning drops <think> blocks and returns the trimmed answer text.
func StripReasoning(content string) string {
	s := thinkPattern.ReplaceAllString(strings.TrimSpace(content), "")
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		// opening tag was cut by the model; keep what follows the close
		s = s[i+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// unquote strips one layer of quoting the model sometimes wraps around its answer.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	switch {
	case first == '"' && last == '"':
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return strings.TrimSpace(inner)
		}
		return strings.TrimSpace(s[1 : len(s)-1])
	case first == '\'' && last == '\'':
		return strings.TrimSpace(s[1 : len(s)-1])
	case first == '`' && last == '`' && !strings.HasPrefix(s, "```"):
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	return s
}

// cleanJSON removes line comments and trailing commas outside string values.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")
	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
