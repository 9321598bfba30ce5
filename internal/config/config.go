package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Sync modes supported by the worker.
const (
	ModeFill  = "fill"  // probe candidate zips missing from the cache
	ModeRetry = "retry" // re-probe suspicious no-coverage zips in major metros
)

// Candidate generation strategies.
const (
	CandidatesFromFile   = "file"
	CandidatesFromRanges = "ranges"
)

type Config struct {
	DatabaseURL string

	// Marketplace coverage API.
	MarketplaceAPIKey  string
	MarketplaceBaseURL string
	RequestTimeout     time.Duration

	// Outbound request rate ceiling, shared across workers.
	RateLimitPerSecond int

	// Retry policy for rate-limited and transient probe failures.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Batch scheduling.
	BatchSize     int
	BatchPause    time.Duration
	Workers       int
	ProgressEvery int

	// Candidate generation.
	CandidateSource string
	CandidateFile   string
	ZipRangeStart   string
	ZipRangeEnd     string

	Mode            string
	ShutdownTimeout int // seconds
}

// Load reads configuration from environment variables.
// Missing credentials are a fatal error: the run must not start without them.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	apiKey := os.Getenv("MARKETPLACE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_KEY is required")
	}

	baseURL := os.Getenv("MARKETPLACE_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_BASE_URL is required")
	}

	source := getEnv("CANDIDATE_SOURCE", CandidatesFromRanges)
	if source != CandidatesFromFile && source != CandidatesFromRanges {
		return nil, fmt.Errorf("CANDIDATE_SOURCE must be %q or %q, got %q", CandidatesFromFile, CandidatesFromRanges, source)
	}
	if source == CandidatesFromFile && os.Getenv("CANDIDATE_FILE") == "" {
		return nil, fmt.Errorf("CANDIDATE_FILE is required when CANDIDATE_SOURCE=file")
	}

	mode := getEnv("SYNC_MODE", ModeFill)
	if mode != ModeFill && mode != ModeRetry {
		return nil, fmt.Errorf("SYNC_MODE must be %q or %q, got %q", ModeFill, ModeRetry, mode)
	}

	return &Config{
		DatabaseURL:        dbURL,
		MarketplaceAPIKey:  apiKey,
		MarketplaceBaseURL: baseURL,
		RequestTimeout:     msEnv("REQUEST_TIMEOUT_MS", 8000),
		RateLimitPerSecond: ratePerSecond(),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:     msEnv("RETRY_BASE_DELAY_MS", 2000),
		RetryMaxDelay:      msEnv("RETRY_MAX_DELAY_MS", 30000),
		BatchSize:          getEnvInt("BATCH_SIZE", 100),
		BatchPause:         msEnv("BATCH_PAUSE_MS", 750),
		Workers:            getEnvInt("WORKERS", 4),
		ProgressEvery:      getEnvInt("PROGRESS_EVERY", 25),
		CandidateSource:    source,
		CandidateFile:      os.Getenv("CANDIDATE_FILE"),
		ZipRangeStart:      os.Getenv("ZIP_RANGE_START"),
		ZipRangeEnd:        os.Getenv("ZIP_RANGE_END"),
		Mode:               mode,
		ShutdownTimeout:    getEnvInt("SHUTDOWN_TIMEOUT", 30),
	}, nil
}

// ratePerSecond resolves the outbound rate ceiling. RATE_LIMIT_PER_SECOND wins
// over the named presets.
func ratePerSecond() int {
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	switch os.Getenv("RATE_PRESET") {
	case "aggressive":
		return 20
	case "conservative":
		return 5
	default:
		return 10
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func msEnv(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
