package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

// Config for a Vertex AI Gemini model.
type Config struct {
	ProjectID         string
	Region            string
	Model             string
	Temperature       float32
	TopP              float32
	TopK              int32
	MaxOutputTokens   int32
	SystemInstruction string
	JSONOutput        bool
}

// contentGenerator is the slice of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Generator on top of a configured GenerativeModel.
type Client struct {
	cfg    Config
	model  contentGenerator
	base   *genai.Client
	logger *slog.Logger
}

var _ llm.Generator = (*Client)(nil)

// NewClient dials Vertex AI and configures the generation parameters.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("gemini: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := base.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.TopP > 0 {
		model.GenerationConfig.TopP = genai.Ptr(cfg.TopP)
	}
	if cfg.TopK > 0 {
		model.GenerationConfig.TopK = genai.Ptr(cfg.TopK)
	}
	if cfg.MaxOutputTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(cfg.MaxOutputTokens)
	}
	if cfg.JSONOutput {
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if cfg.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.SystemInstruction)},
		}
	}

	return &Client{cfg: cfg, model: model, base: base, logger: logger}, nil
}

func (c *Client) Name() string { return "gemini:" + c.cfg.Model }

// Generate sends one prompt and concatenates the text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.gemini.start", "req_id", rid, "model", c.cfg.Model, "prompt_len", len(prompt))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.gemini.error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		c.logger.Warn("llm.gemini.empty", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini generate: empty response")
	}
	c.logger.Info("llm.gemini.ok", "req_id", rid, "content_len", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Close releases the underlying Vertex AI connection.
func (c *Client) Close() error {
	if c.base == nil {
		return nil
	}
	return c.base.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
