package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/tradedocs/internal/llm"
)

const defaultAzureAPIVersion = "2024-11-30"

// AzureConfig configures the Azure Document Intelligence REST backend.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	PollEvery  time.Duration
}

// AzureBackend analyzes documents with Azure Document Intelligence.
type AzureBackend struct {
	cfg        AzureConfig
	httpClient *http.Client
	logger     *slog.Logger
}

type AzureOption func(*AzureBackend)

func WithAzureHTTPClient(c *http.Client) AzureOption {
	return func(b *AzureBackend) { b.httpClient = c }
}

func NewAzureBackend(cfg AzureConfig, logger *slog.Logger, opts ...AzureOption) *AzureBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAzureAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	b := &AzureBackend{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *AzureBackend) Name() string { return "azure" }

type azureAnalyzeResult struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult *struct {
		Pages []struct {
			Lines []struct {
				Content string `json:"content"`
			} `json:"lines"`
		} `json:"pages"`
		KeyValuePairs []struct {
			Key *struct {
				Content string `json:"content"`
			} `json:"key"`
			Value *struct {
				Content string `json:"content"`
			} `json:"value"`
		} `json:"keyValuePairs"`
		Documents []struct {
			Fields map[string]struct {
				Content string `json:"content"`
			} `json:"fields"`
		} `json:"documents"`
	} `json:"analyzeResult"`
}

// Analyze submits the document and polls the operation until it finishes.
func (b *AzureBackend) Analyze(ctx context.Context, req Request) (Analysis, error) {
	if b.cfg.Endpoint == "" || b.cfg.APIKey == "" {
		return Analysis{}, errors.New("azure document intelligence endpoint and key must be configured")
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s&features=keyValuePairs",
		b.cfg.Endpoint, req.DocType.ModelID(), b.cfg.APIVersion)
	headers := map[string]string{"Ocp-Apim-Subscription-Key": b.cfg.APIKey}
	body := map[string]string{"base64Source": base64.StdEncoding.EncodeToString(req.Data)}

	resp, err := llm.Do(ctx, b.httpClient, http.MethodPost, url, body, headers, b.logger)
	if err != nil {
		return Analysis{}, fmt.Errorf("submit analysis: %w", err)
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return Analysis{}, fmt.Errorf("submit analysis: status %d without Operation-Location", resp.Status)
	}
	b.logger.Debug("extract.azure.submitted", "model", req.DocType.ModelID(), "operation", opURL)

	ticker := time.NewTicker(b.cfg.PollEvery)
	defer ticker.Stop()
	for {
		resp, err := llm.Do(ctx, b.httpClient, http.MethodGet, opURL, nil, headers, b.logger)
		if err != nil {
			return Analysis{}, fmt.Errorf("poll analysis: %w", err)
		}
		var res azureAnalyzeResult
		if err := json.Unmarshal(resp.Body, &res); err != nil {
			return Analysis{}, fmt.Errorf("decode analysis: %w", err)
		}
		switch strings.ToLower(res.Status) {
		case "succeeded":
			return b.toAnalysis(res), nil
		case "failed", "canceled":
			if res.Error != nil {
				return Analysis{}, fmt.Errorf("analysis %s: %s: %s", res.Status, res.Error.Code, res.Error.Message)
			}
			return Analysis{}, fmt.Errorf("analysis %s", res.Status)
		}
		select {
		case <-ctx.Done():
			return Analysis{}, fmt.Errorf("poll analysis: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *AzureBackend) toAnalysis(res azureAnalyzeResult) Analysis {
	var out Analysis
	ar := res.AnalyzeResult
	if ar == nil {
		return out
	}
	out.Pages = len(ar.Pages)
	for _, p := range ar.Pages {
		for _, l := range p.Lines {
			out.Lines = append(out.Lines, l.Content)
		}
	}
	for _, kv := range ar.KeyValuePairs {
		if kv.Key == nil || kv.Value == nil {
			continue
		}
		out.Pairs = append(out.Pairs, KeyValue{Key: kv.Key.Content, Value: kv.Value.Content})
	}
	if len(ar.Documents) > 0 {
		seen := make(map[string]bool, len(out.Pairs))
		for _, p := range out.Pairs {
			seen[cleanKey(p.Key)] = true
		}
		names := make([]string, 0, len(ar.Documents[0].Fields))
		for name := range ar.Documents[0].Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			out.Pairs = append(out.Pairs, KeyValue{Key: name, Value: ar.Documents[0].Fields[name].Content})
		}
	}
	return out
}
