package extract

import (
	"fmt"
	"strings"
)

// BuildFields assembles pairs into Fields. Keys are trimmed of whitespace and a
// trailing colon; pairs with an empty key or value are skipped. A repeated key
// keeps every value by suffixing " (2)", " (3)", ... so nothing is lost.
func BuildFields(pairs []KeyValue) Fields {
	out := make(Fields, len(pairs))
	for _, p := range pairs {
		key := cleanKey(p.Key)
		val := strings.TrimSpace(p.Value)
		if key == "" || val == "" {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = val
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s (%d)", key, n)
			if _, exists := out[candidate]; !exists {
				out[candidate] = val
				break
			}
		}
	}
	return out
}

func cleanKey(k string) string {
	k = strings.TrimSpace(k)
	k = strings.TrimRight(k, ":")
	k = strings.Join(strings.Fields(k), " ")
	return k
}

// ParseKeyValueLines reads "Label: value" lines from OCR text.
// Lines without a colon, or with a label longer than 60 characters, are ignored.
func ParseKeyValueLines(text string) []KeyValue {
	var pairs []KeyValue
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		if key == "" || val == "" || len(key) > 60 {
			continue
		}
		pairs = append(pairs, KeyValue{Key: key, Value: val})
	}
	return pairs
}

// SplitLines returns the non-blank lines of text.
func SplitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(l); s != "" {
			out = append(out, s)
		}
	}
	return out
}
