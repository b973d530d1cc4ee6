package corpus

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunker splits text into pieces of at most Size characters. Consecutive
// chunks share up to Overlap characters. Splits prefer paragraph breaks,
// then line breaks, then spaces, and only cut inside a word as a last resort.
type Chunker struct {
	Size    int
	Overlap int
}

var separators = []string{"\n\n", "\n", " ", ""}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for _, s := range c.split(text, separators) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Chunker) split(text string, seps []string) []string {
	sep, rest := "", []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}

	var out, fitting []string
	for _, p := range parts {
		if sep != "" && strings.TrimSpace(p) == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= c.Size {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, c.merge(fitting, sep)...)
			fitting = nil
		}
		out = append(out, c.split(p, rest)...)
	}
	if len(fitting) > 0 {
		out = append(out, c.merge(fitting, sep)...)
	}
	return out
}

// merge packs parts into chunks, carrying trailing parts forward as overlap.
func (c *Chunker) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		out   []string
		cur   []string
		total int
	)
	joined := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}
	for _, p := range parts {
		l := utf8.RuneCountInString(p)
		if len(cur) > 0 && total+joined(len(cur))+l > c.Size {
			out = append(out, strings.Join(cur, sep))
			for len(cur) > 0 && (total > c.Overlap || total+joined(len(cur))+l > c.Size) {
				total -= utf8.RuneCountInString(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}
		total += joined(len(cur)) + l
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, sep))
	}
	return out
}
