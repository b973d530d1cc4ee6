package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	LLM        LLMConfig        `yaml:"llm"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Security   SecurityConfig   `yaml:"security"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	UploadDir    string `yaml:"upload_dir"`
	FeedbackDB   string `yaml:"feedback_db"` // sqlite path; empty keeps feedback in memory
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	InboxDir     string `yaml:"inbox_dir"` // watched for new documents; empty disables
	QueueWorkers int    `yaml:"queue_workers"`
}

// ExtractionConfig selects and configures the document-intelligence backend.
type ExtractionConfig struct {
	Backend     string        `yaml:"backend"` // "azure" | "tesseract"
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	APIVersion  string        `yaml:"api_version"`
	Timeout     time.Duration `yaml:"timeout"`
	PollEvery   time.Duration `yaml:"poll_every"`
	TessdataDir string        `yaml:"tessdata_dir"`
	Language    string        `yaml:"language"`
}

// LLMConfig holds the OpenAI-compatible chat endpoint used by the agents.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "openai" | "gemini"
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GeminiConfig configures the Vertex AI model used for analytics summaries.
type GeminiConfig struct {
	ProjectID       string  `yaml:"project_id"`
	Region          string  `yaml:"region"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	TopK            int32   `yaml:"top_k"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// SecurityConfig holds the symmetric key sources.
type SecurityConfig struct {
	KeyEnvVar string `yaml:"key_env_var"`
	KeyFile   string `yaml:"key_file"`
}

// CorpusConfig holds the retrieval corpus settings.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	Pattern      string `yaml:"pattern"`
	GCSBucket    string `yaml:"gcs_bucket"`
	GCSPrefix    string `yaml:"gcs_prefix"`
	IndexDir     string `yaml:"index_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

// PipelineConfig bounds each orchestrator stage.
type PipelineConfig struct {
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// Defaults returns the configuration used when neither a file nor env override a value.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:     ":8080",
			GRPCAddr:     ":9090",
			UploadDir:    "./uploads",
			MaxUploadMB:  20,
			QueueWorkers: 2,
		},
		Extraction: ExtractionConfig{
			Backend:    "azure",
			APIVersion: "2024-11-30",
			Timeout:    2 * time.Minute,
			PollEvery:  time.Second,
			Language:   "eng",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "http://localhost:11434/v1",
			Model:       "deepseek-r1:1.5b",
			Temperature: 0,
			Timeout:     2 * time.Minute,
		},
		Gemini: GeminiConfig{
			Region:          "us-central1",
			Model:           "gemini-1.5-flash",
			Temperature:     0.4,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
		},
		Security: SecurityConfig{
			KeyEnvVar: "ENCRYPTION_KEY",
			KeyFile:   "secret.key",
		},
		Corpus: CorpusConfig{
			Pattern:      "**/*.pdf",
			IndexDir:     "./index_storage",
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         1,
		},
		Pipeline: PipelineConfig{
			StageTimeout: 3 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, then environment variables.
// Environment values win over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(CodeConfig, fmt.Sprintf("read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError(CodeConfig, fmt.Sprintf("parse config %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.FeedbackDB = getEnv("FEEDBACK_DB", c.Server.FeedbackDB)
	c.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Server.InboxDir = getEnv("INBOX_DIR", c.Server.InboxDir)
	c.Server.QueueWorkers = getEnvAsInt("QUEUE_WORKERS", c.Server.QueueWorkers)

	c.Extraction.Backend = getEnv("EXTRACTION_BACKEND", c.Extraction.Backend)
	c.Extraction.Endpoint = getEnv("AZURE_DI_ENDPOINT", c.Extraction.Endpoint)
	c.Extraction.APIKey = getEnv("AZURE_DI_KEY", c.Extraction.APIKey)
	c.Extraction.APIVersion = getEnv("AZURE_DI_API_VERSION", c.Extraction.APIVersion)
	c.Extraction.Timeout = getEnvAsDuration("EXTRACTION_TIMEOUT", c.Extraction.Timeout)
	c.Extraction.TessdataDir = getEnv("TESSDATA_PREFIX", c.Extraction.TessdataDir)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)

	c.Gemini.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", c.Gemini.ProjectID)
	c.Gemini.Region = getEnv("GOOGLE_CLOUD_REGION", c.Gemini.Region)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)

	c.Security.KeyEnvVar = getEnv("ENCRYPTION_KEY_ENV", c.Security.KeyEnvVar)
	c.Security.KeyFile = getEnv("ENCRYPTION_KEY_FILE", c.Security.KeyFile)

	c.Corpus.Dir = getEnv("CORPUS_DIR", c.Corpus.Dir)
	c.Corpus.GCSBucket = getEnv("CORPUS_GCS_BUCKET", c.Corpus.GCSBucket)
	c.Corpus.GCSPrefix = getEnv("CORPUS_GCS_PREFIX", c.Corpus.GCSPrefix)
	c.Corpus.IndexDir = getEnv("INDEX_DIR", c.Corpus.IndexDir)
	c.Corpus.TopK = getEnvAsInt("CORPUS_TOP_K", c.Corpus.TopK)

	c.Pipeline.StageTimeout = getEnvAsDuration("STAGE_TIMEOUT", c.Pipeline.StageTimeout)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every entry point needs.
// Database settings are checked separately by commands that open a pool.
func (c *Config) Validate() error {
	switch c.Extraction.Backend {
	case "azure":
		if c.Extraction.Endpoint == "" || c.Extraction.APIKey == "" {
			return NewAppError(CodeConfig, "AZURE_DI_ENDPOINT and AZURE_DI_KEY are required for the azure backend", ErrInvalidInput)
		}
	case "tesseract":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown extraction backend %q", c.Extraction.Backend), ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.BaseURL == "" || c.LLM.Model == "" {
			return NewAppError(CodeConfig, "LLM_BASE_URL and LLM_MODEL are required", ErrInvalidInput)
		}
	case "gemini":
		if c.Gemini.ProjectID == "" {
			return NewAppError(CodeConfig, "GOOGLE_CLOUD_PROJECT is required for the gemini provider", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		return NewAppError(CodeConfig, "corpus chunk_overlap must be smaller than chunk_size", ErrInvalidInput)
	}
	return nil
}

// ValidateDatabase checks the settings needed to open a pool.
func (c *Config) ValidateDatabase() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	return nil
}
