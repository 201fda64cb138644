package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig marks configuration that makes an operation impossible,
// such as a non-positive chunk budget or an unwritable output location.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port string

	// Auth
	BookfixAPIKey string

	// Segment persistence
	OutputDir       string
	SegmentPrefix   string
	CorrectedSuffix string
	MarkerTag       string
	StoreBackend    string

	// Pathstore connection (STORE_BACKEND=pathstore)
	PathstoreURL    string
	PathstoreAPIKey string

	// Correction service
	Provider          string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	Model             string
	MaxOutputTokens   int
	Temperature       float64
	RequestsPerMinute int
	RequestTimeout    time.Duration
	MinLengthRatio    float64

	// Chunking
	MaxUnitSize   int
	ChunkStrategy string

	// Retry
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	StopOnChunkFailure bool

	// Normalization
	InlineTags []string
	BlockTags  []string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Upload limits
	MaxUploadBytes int64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		BookfixAPIKey: os.Getenv("BOOKFIX_API_KEY"),

		OutputDir:       envOr("OUTPUT_DIR", "./output_files"),
		SegmentPrefix:   envOr("SEGMENT_PREFIX", "part_"),
		CorrectedSuffix: envOr("CORRECTED_SUFFIX", "_corrected"),
		MarkerTag:       envOr("MARKER_TAG", "img"),
		StoreBackend:    envOr("STORE_BACKEND", "file"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		Provider:          envOr("CORRECTION_PROVIDER", "openai"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		Model:             envOr("CORRECTION_MODEL", "gpt-3.5-turbo"),
		MaxOutputTokens:   envInt("CORRECTION_MAX_TOKENS", 4096),
		Temperature:       envFloat("CORRECTION_TEMPERATURE", 0.3),
		RequestsPerMinute: envInt("CORRECTION_RPM", 0),
		RequestTimeout:    envDuration("CORRECTION_TIMEOUT", 120*time.Second),
		MinLengthRatio:    envFloat("MIN_LENGTH_RATIO", 0.5),

		MaxUnitSize:   envInt("MAX_UNIT_SIZE", 40000),
		ChunkStrategy: envOr("CHUNK_STRATEGY", "raw-character"),

		MaxRetries:         envInt("MAX_RETRIES", 3),
		BackoffBase:        envDuration("BACKOFF_BASE", 1*time.Second),
		BackoffMax:         envDuration("BACKOFF_MAX", 30*time.Second),
		StopOnChunkFailure: envBool("STOP_ON_CHUNK_FAILURE", false),

		InlineTags: envList("INLINE_TAGS", []string{"i"}),
		BlockTags:  envList("BLOCK_TAGS", []string{"p"}),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
	}

	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1 * time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	// MaxUnitSize is not defaulted; Validate reports a non-positive budget.
	return cfg
}

// Validate checks settings every command depends on.
func (c Config) Validate() error {
	if c.MaxUnitSize <= 0 {
		return fmt.Errorf("%w: MAX_UNIT_SIZE must be positive, got %d", ErrInvalidConfig, c.MaxUnitSize)
	}
	switch c.ChunkStrategy {
	case "raw-character", "structure-aware":
	default:
		return fmt.Errorf("%w: unknown CHUNK_STRATEGY %q", ErrInvalidConfig, c.ChunkStrategy)
	}
	if strings.TrimSpace(c.MarkerTag) == "" {
		return fmt.Errorf("%w: MARKER_TAG is required", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case "file":
		if c.OutputDir == "" {
			return fmt.Errorf("%w: OUTPUT_DIR is required", ErrInvalidConfig)
		}
	case "pathstore":
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("%w: PATHSTORE_API_KEY is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrInvalidConfig, c.StoreBackend)
	}
	if c.MinLengthRatio < 0 || c.MinLengthRatio > 1 {
		return fmt.Errorf("%w: MIN_LENGTH_RATIO must be within [0,1], got %g", ErrInvalidConfig, c.MinLengthRatio)
	}
	return nil
}

// ValidateCorrection checks the settings needed to call the correction service.
func (c Config) ValidateCorrection() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalidConfig)
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown CORRECTION_PROVIDER %q", ErrInvalidConfig, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: CORRECTION_MODEL is required", ErrInvalidConfig)
	}
	return nil
}

// ValidateServer checks the settings needed by the HTTP API.
func (c Config) ValidateServer() error {
	if c.BookfixAPIKey == "" {
		return fmt.Errorf("%w: BOOKFIX_API_KEY is required", ErrInvalidConfig)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma-separated list, dropping blank entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
