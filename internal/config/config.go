package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the pipeline reads. Values come from the
// environment with sensible defaults; feeds.yaml holds the source list.
type Config struct {
	// Database
	DatabaseURL string

	// Feed ingestion
	FeedsConfigPath string
	FetchInterval   time.Duration
	BackfillWindow  time.Duration // wider window for the first cycle
	RetentionWindow time.Duration
	Concurrency     int // cap on in-flight per-entry pipelines

	// Per-call timeouts
	FeedTimeout   time.Duration
	ScrapeTimeout time.Duration
	LLMTimeout    time.Duration
	CycleDeadline time.Duration // 0 = no overall cycle deadline

	// Summarizer backend selection
	LLMProvider   string // "ollama" | "openai" | "gemini"
	OllamaBaseURL string
	OllamaModel   string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIAPIKey  string
	GeminiAPIKey  string
	GeminiModel   string

	// Daily cap on summarizer calls (0 = unlimited)
	MaxLLMRequestsPerDay int

	// Monitoring
	EnableMonitoring bool
	MonitoringPort   string

	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		FeedsConfigPath:      "configs/feeds.yaml",
		FetchInterval:        30 * time.Minute,
		BackfillWindow:       3 * 24 * time.Hour,
		RetentionWindow:      3 * 24 * time.Hour,
		Concurrency:          8,
		FeedTimeout:          20 * time.Second,
		ScrapeTimeout:        15 * time.Second,
		LLMTimeout:           120 * time.Second,
		LLMProvider:          "ollama",
		OllamaBaseURL:        "http://localhost:11434",
		OllamaModel:          "llama3.2:3b",
		OpenAIBaseURL:        "https://api.openai.com",
		OpenAIModel:          "gpt-4o-mini",
		GeminiModel:          "gemini-1.5-flash",
		MaxLLMRequestsPerDay: 0,
		MonitoringPort:       "8080",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.LLMProvider = getEnvOrDefault("LLM_PROVIDER", cfg.LLMProvider)
	cfg.OllamaBaseURL = getEnvOrDefault("OLLAMA_BASE_URL", cfg.OllamaBaseURL)
	cfg.OllamaModel = getEnvOrDefault("OLLAMA_MODEL", cfg.OllamaModel)
	cfg.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	if v := getEnvIntOrDefault("FETCH_INTERVAL_MINUTES", 0); v > 0 {
		cfg.FetchInterval = time.Duration(v) * time.Minute
	}
	if v := getEnvIntOrDefault("BACKFILL_DAYS", 0); v > 0 {
		cfg.BackfillWindow = time.Duration(v) * 24 * time.Hour
	}
	if v := getEnvIntOrDefault("RETENTION_DAYS", 0); v > 0 {
		cfg.RetentionWindow = time.Duration(v) * 24 * time.Hour
	}
	if v := getEnvIntOrDefault("CONCURRENCY", 0); v > 0 {
		cfg.Concurrency = v
	}
	if v := getEnvIntOrDefault("FEED_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.FeedTimeout = time.Duration(v) * time.Second
	}
	if v := getEnvIntOrDefault("SCRAPE_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.ScrapeTimeout = time.Duration(v) * time.Second
	}
	if v := getEnvIntOrDefault("LLM_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.LLMTimeout = time.Duration(v) * time.Second
	}
	if v := getEnvIntOrDefault("CYCLE_DEADLINE_MINUTES", 0); v > 0 {
		cfg.CycleDeadline = time.Duration(v) * time.Minute
	}
	if v := getEnvIntOrDefault("MAX_LLM_REQUESTS_PER_DAY", 0); v > 0 {
		cfg.MaxLLMRequestsPerDay = v
	}

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		cfg.EnableMonitoring = true
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLMProvider {
	case "ollama":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be 'ollama', 'openai' or 'gemini'")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("CONCURRENCY must be at least 1")
	}
	return nil
}
