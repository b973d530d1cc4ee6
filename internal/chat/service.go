package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/corpus"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// Refusal is the fixed answer for questions outside the supported documents.
const Refusal = "I'm only designed to answer specific queries."

// MaxMessageLen bounds a chat message in runes.
const MaxMessageLen = 2000

// Retriever finds reference passages for a question.
type Retriever interface {
	Search(query string, k int) []corpus.Hit
}

type Reply struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources,omitempty"`
}

// Service is a restricted trade-document assistant.
type Service struct {
	gen       llm.Generator
	retriever Retriever
	topK      int
	logger    *slog.Logger
}

// NewService builds the assistant. retriever may be nil, in which case
// answers are not grounded on the reference corpus.
func NewService(gen llm.Generator, retriever Retriever, topK int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 1
	}
	return &Service{gen: gen, retriever: retriever, topK: topK, logger: logger}
}

func (s *Service) Reply(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, common.InvalidInputError("No message provided")
	}
	if err := common.NewValidator().Field("message", message, common.MaxLength(MaxMessageLen)).Err(); err != nil {
		return Reply{}, err
	}
	start := time.Now()

	var (
		passages []string
		sources  []string
	)
	if s.retriever != nil {
		for _, h := range s.retriever.Search(message, s.topK) {
			passages = append(passages, h.Chunk.Content)
			sources = append(sources, h.Chunk.Source)
		}
	}

	raw, err := s.gen.Generate(ctx, BuildPrompt(message, passages))
	if err != nil {
		s.logger.Error("chat.generate_failed", "model", s.gen.Name(), "error", err)
		return Reply{}, common.NewAppError(common.CodeInternal, "the assistant is unavailable, please try again", err)
	}
	answer := llm.StripReasoning(raw)
	if answer == "" {
		answer = Refusal
	}

	s.logger.Info("chat.ok",
		"passages", len(passages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Reply{Response: answer, Sources: sources}, nil
}

// BuildPrompt restricts the assistant to trade documents and appends any retrieved context.
func BuildPrompt(message string, passages []string) string {
	var b strings.Builder
	b.WriteString("You are a helpful chatbot assistant. Answer the user question in a conversational and friendly tone.\n")
	b.WriteString("Only answer queries about these documents: invoice, bill of lading, GST certificate, PAN card, export documents.\n")
	b.WriteString("If any other topic is mentioned, reply with: " + Refusal + "\n")
	if len(passages) > 0 {
		b.WriteString("\nUse the following pieces of retrieved context to answer. If you don't know, say so. Keep the answer concise.\n\n")
		for _, p := range passages {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("\nUser: " + message + "\n")
	return b.String()
}
