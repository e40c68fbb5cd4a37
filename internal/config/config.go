package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort              = "8080"
	defaultDatabaseURL       = "file:webresearch.db"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultModel             = "openai/gpt-4o-mini"
	defaultSearchProvider    = "brave"
	defaultBraveBaseURL      = "https://api.search.brave.com/res/v1"
	defaultSerperBaseURL     = "https://google.serper.dev"
	defaultSearchQueries     = 3
	defaultResultsPerQuery   = 5
	defaultEvidenceCap       = 6
	defaultFetchWorkers      = 4
	defaultFetchTimeoutSecs  = 10
	defaultFetchMaxBytes     = 1_500_000
	defaultExcerptCharBudget = 3000
	defaultRunTimeoutSecs    = 120
	defaultLLMTimeoutSecs    = 60
	defaultLLMRetries        = 2
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	DatabaseURL    string
	DatabaseToken  string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	Model             string
	LLMTimeout        time.Duration
	LLMMaxRetries     int

	SearchProvider string
	BraveAPIKey    string
	BraveBaseURL   string
	SerperAPIKey   string
	SerperBaseURL  string

	SearchQueriesPerRun int
	ResultsPerQuery     int
	EvidenceCap         int
	FetchWorkers        int
	FetchTimeout        time.Duration
	FetchMaxBytes       int64
	ExcerptCharBudget   int
	RunTimeout          time.Duration
	MinSearchInterval   time.Duration
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func Load() (Config, error) {
	cfg := Config{
		Port:        envOrDefault("PORT", defaultPort),
		Environment: envOrDefault("APP_ENV", "development"),
		DatabaseURL: envOrDefault("DATABASE_URL", defaultDatabaseURL),

		DatabaseToken:     strings.TrimSpace(os.Getenv("DATABASE_AUTH_TOKEN")),
		OpenRouterAPIKey:  strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL: envOrDefault("OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
		Model:             envOrDefault("OPENROUTER_MODEL", defaultModel),
		LLMMaxRetries:     intOrDefault("LLM_MAX_RETRIES", defaultLLMRetries),

		SearchProvider: strings.ToLower(envOrDefault("SEARCH_PROVIDER", defaultSearchProvider)),
		BraveAPIKey:    strings.TrimSpace(os.Getenv("BRAVE_API_KEY")),
		BraveBaseURL:   envOrDefault("BRAVE_BASE_URL", defaultBraveBaseURL),
		SerperAPIKey:   strings.TrimSpace(os.Getenv("SERPER_API_KEY")),
		SerperBaseURL:  envOrDefault("SERPER_BASE_URL", defaultSerperBaseURL),

		SearchQueriesPerRun: intOrDefault("SEARCH_QUERIES_PER_RUN", defaultSearchQueries),
		ResultsPerQuery:     intOrDefault("RESULTS_PER_QUERY", defaultResultsPerQuery),
		EvidenceCap:         intOrDefault("EVIDENCE_CAP", defaultEvidenceCap),
		FetchWorkers:        intOrDefault("FETCH_WORKERS", defaultFetchWorkers),
		FetchMaxBytes:       int64(intOrDefault("FETCH_MAX_BYTES", defaultFetchMaxBytes)),
		ExcerptCharBudget:   intOrDefault("EXCERPT_CHAR_BUDGET", defaultExcerptCharBudget),
	}

	cfg.LLMTimeout = secondsOrDefault("LLM_TIMEOUT_SECONDS", defaultLLMTimeoutSecs)
	cfg.FetchTimeout = secondsOrDefault("FETCH_TIMEOUT_SECONDS", defaultFetchTimeoutSecs)
	cfg.RunTimeout = secondsOrDefault("RESEARCH_TIMEOUT_SECONDS", defaultRunTimeoutSecs)
	cfg.MinSearchInterval = time.Duration(intOrDefault("MIN_SEARCH_INTERVAL_MS", 0)) * time.Millisecond

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if cfg.SearchQueriesPerRun < 1 {
		return Config{}, errors.New("SEARCH_QUERIES_PER_RUN must be >= 1")
	}
	if cfg.ResultsPerQuery < 1 {
		return Config{}, errors.New("RESULTS_PER_QUERY must be >= 1")
	}
	if cfg.EvidenceCap < 1 {
		return Config{}, errors.New("EVIDENCE_CAP must be >= 1")
	}
	if cfg.FetchWorkers < 1 {
		return Config{}, errors.New("FETCH_WORKERS must be >= 1")
	}
	if cfg.ExcerptCharBudget < 1 {
		return Config{}, errors.New("EXCERPT_CHAR_BUDGET must be >= 1")
	}
	switch cfg.SearchProvider {
	case "brave", "serper":
	default:
		return Config{}, fmt.Errorf("SEARCH_PROVIDER must be brave or serper, got %q", cfg.SearchProvider)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseToken == "" {
		return Config{}, errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func secondsOrDefault(key string, fallback int) time.Duration {
	secs := intOrDefault(key, fallback)
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
