package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// Cipher seals and opens text payloads.
type Cipher interface {
	SealString(s string) (string, error)
	OpenString(token string) (string, error)
}

// Summarizer answers a topic over an encrypted CSV payload and returns an encrypted answer.
type Summarizer interface {
	Summarize(ctx context.Context, encryptedCSV, topic string) (string, error)
}

// SecureSummarizer decrypts the CSV only for the duration of the model call.
type SecureSummarizer struct {
	cipher Cipher
	gen    llm.Generator
	logger *slog.Logger
}

func NewSecureSummarizer(cipher Cipher, gen llm.Generator, logger *slog.Logger) *SecureSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecureSummarizer{cipher: cipher, gen: gen, logger: logger}
}

func (s *SecureSummarizer) Summarize(ctx context.Context, encryptedCSV, topic string) (string, error) {
	if encryptedCSV == "" || strings.TrimSpace(topic) == "" {
		return "", errors.New("missing required data")
	}
	csvData, err := s.cipher.OpenString(encryptedCSV)
	if err != nil {
		return "", fmt.Errorf("decrypt csv: %w", err)
	}
	s.logger.Debug("analytics.summarizer.decrypted", "bytes", len(csvData))

	answer, err := s.gen.Generate(ctx, BuildSummaryPrompt(topic, csvData))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	sealed, err := s.cipher.SealString(answer)
	if err != nil {
		return "", fmt.Errorf("encrypt summary: %w", err)
	}
	return sealed, nil
}

// BuildSummaryPrompt asks for a short plain-language bullet answer in INR.
func BuildSummaryPrompt(topic, csvData string) string {
	var b strings.Builder
	b.WriteString("The currency is INR.\n")
	b.WriteString("The response should not exceed 70 words and it should be in bullet points with no special formatting.\n")
	b.WriteString("Task: " + strings.TrimSpace(topic) + "\n\n")
	b.WriteString("Relevant CSV Data:\n")
	b.WriteString(csvData)
	b.WriteString("\nThe response should be understood by a common man.\n")
	b.WriteString("Don't respond to random questions; answer only specific questions related to the CSV data.\n")
	return b.String()
}

// FormatBullets turns "*" lines into "• " bullets and drops blank lines.
func FormatBullets(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "*"):
			out = append(out, "• "+strings.TrimSpace(line[1:]))
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
