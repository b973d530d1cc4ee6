// Package app builds the service graph from common.Config. Both binaries
// share it so the CLI and the daemon run identical pipelines.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/tradedocs/internal/agents"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/corpus"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
	"github.com/joseph-ayodele/tradedocs/internal/llm/gemini"
	"github.com/joseph-ayodele/tradedocs/internal/llm/openai"
	"github.com/joseph-ayodele/tradedocs/internal/ocr"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/secure"
)

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

// NewBackend returns the configured document-intelligence backend.
func NewBackend(cfg common.ExtractionConfig, logger *slog.Logger) (extract.Backend, error) {
	switch cfg.Backend {
	case "azure":
		return extract.NewAzureBackend(extract.AzureConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
			PollEvery:  cfg.PollEvery,
		}, logger), nil
	case "tesseract":
		engine := ocr.NewEngine(ocr.Config{
			TessdataDir: cfg.TessdataDir,
			Languages:   strings.Split(cfg.Language, "+"),
		}, logger)
		return extract.NewOCRAdapter(engine, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown extraction backend %q", cfg.Backend), common.ErrInvalidInput)
	}
}

func noop() error { return nil }

// NewGenerator returns the model used by the agents and chat.
func NewGenerator(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.Generator, func() error, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), noop, nil
	case "gemini":
		c, err := newGemini(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider), common.ErrInvalidInput)
	}
}

// NewSummaryGenerator returns Gemini for analytics summaries when a project
// is configured, and fallback otherwise.
func NewSummaryGenerator(ctx context.Context, cfg *common.Config, fallback llm.Generator, logger *slog.Logger) (llm.Generator, func() error, error) {
	if cfg.Gemini.ProjectID == "" || cfg.LLM.Provider == "gemini" {
		return fallback, noop, nil
	}
	c, err := newGemini(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

func newGemini(ctx context.Context, g common.GeminiConfig, logger *slog.Logger) (*gemini.Client, error) {
	return gemini.NewClient(ctx, gemini.Config{
		ProjectID:       g.ProjectID,
		Region:          g.Region,
		Model:           g.Model,
		Temperature:     g.Temperature,
		TopP:            g.TopP,
		TopK:            g.TopK,
		MaxOutputTokens: g.MaxOutputTokens,
	}, logger)
}

// NewProcessor wires the extractor and the three agents into the orchestrator.
func NewProcessor(cfg *common.Config, backend extract.Backend, gen llm.Generator, reg prometheus.Registerer, logger *slog.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(logger,
		extract.NewExtractor(backend, logger),
		agents.NewAnalyzer(gen, logger),
		agents.NewComplianceValidator(gen, logger),
		agents.NewEnhancer(gen, logger),
		cfg.Pipeline.StageTimeout,
		pipeline.NewMetrics(reg),
	)
}

// NewCipher resolves the process key and returns the secret box.
func NewCipher(cfg common.SecurityConfig, logger *slog.Logger) (*secure.Box, error) {
	key, src, err := secure.LoadOrCreateKey(cfg.KeyEnvVar, cfg.KeyFile, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("secure.key", "source", src)
	return secure.NewBox(key)
}

// OpenFeedback opens the sqlite store at path, or a memory store when path is empty.
func OpenFeedback(ctx context.Context, path string, logger *slog.Logger) (feedback.Store, error) {
	if path == "" {
		return feedback.NewMemoryStore(), nil
	}
	return feedback.OpenSQLite(ctx, path, logger)
}

// OpenCorpus loads the retrieval index, building it from the configured
// source when the index directory is absent. It returns a nil index when
// there is neither an index nor a source.
func OpenCorpus(ctx context.Context, cfg common.CorpusConfig, rebuild bool, logger *slog.Logger) (*corpus.Index, bool, error) {
	embed := corpus.NewHashingEmbedder(0)

	if rebuild {
		if err := os.RemoveAll(cfg.IndexDir); err != nil {
			return nil, false, fmt.Errorf("remove index: %w", err)
		}
	}

	var src corpus.Source
	closeSrc := noop
	switch {
	case cfg.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("storage client: %w", err)
		}
		closeSrc = client.Close
		src = corpus.NewGCSSource(client, cfg.GCSBucket, cfg.GCSPrefix, cfg.Pattern)
	case cfg.Dir != "":
		src = corpus.NewDirSource(cfg.Dir, cfg.Pattern)
	default:
		idx, err := corpus.LoadIndex(cfg.IndexDir, embed)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("corpus.disabled", "reason", "no corpus source and no index")
			return nil, false, nil
		}
		return idx, false, err
	}
	defer func() {
		if err := closeSrc(); err != nil {
			logger.Warn("corpus.source_close", "error", err)
		}
	}()

	chunker, err := corpus.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, false, common.NewAppError(common.CodeConfig, err.Error(), common.ErrInvalidInput)
	}
	return corpus.OpenOrBuild(ctx, cfg.IndexDir, corpus.NewLoader(src, chunker, logger), embed, logger)
}
