package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/research-writer/pkg/research"
)

// LLM providers.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Writer backends.
const (
	WriterLangchain = "langchain"
	WriterGenAI     = "genai"
)

// Search providers.
const (
	SearchBrave = "brave"
	SearchArxiv = "arxiv"
)

type Config struct {
	LLMProvider     string
	GoogleAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	FastModel       string
	ReasoningModel  string
	WriterModel     string
	WriterBackend   string

	SearchProvider    string
	BraveAPIKey       string
	SearchResultCount int
	SearchWorkers     int
	FetchWorkers      int
	MistralAPIKey     string
	FetchMaxChars     int
	ChunkSize         int
	ChunkOverlap      int

	ReflectionMaxIterations int
	ThinkingFlushWords      int

	DatabaseURL string
	RedisURL    string
	LeaseTTL    time.Duration

	Port     string
	LogLevel string
	LogFile  string
}

// Load reads the configuration from the environment.
func Load() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderGoogle))
	fast, reasoning, writer := defaultModels(provider)

	return &Config{
		LLMProvider:     provider,
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		FastModel:       getEnv("FAST_MODEL", fast),
		ReasoningModel:  getEnv("REASONING_MODEL", reasoning),
		WriterModel:     getEnv("WRITER_MODEL", writer),
		WriterBackend:   strings.ToLower(getEnv("WRITER_BACKEND", WriterLangchain)),

		SearchProvider:    strings.ToLower(getEnv("SEARCH_PROVIDER", SearchBrave)),
		BraveAPIKey:       getEnv("BRAVE_API_KEY", ""),
		SearchResultCount: getEnvAsInt("SEARCH_RESULT_COUNT", 5),
		SearchWorkers:     getEnvAsInt("SEARCH_WORKERS", 5),
		FetchWorkers:      getEnvAsInt("FETCH_WORKERS", 5),
		MistralAPIKey:     getEnv("MISTRAL_API_KEY", ""),
		FetchMaxChars:     getEnvAsInt("FETCH_MAX_CHARS", 12000),
		ChunkSize:         getEnvAsInt("CHUNK_SIZE", 4000),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),

		ReflectionMaxIterations: getEnvAsInt("REFLECTION_MAX_ITERATIONS", 3),
		ThinkingFlushWords:      getEnvAsInt("THINKING_FLUSH_WORDS", 10),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LeaseTTL:    getEnvAsDuration("LEASE_TTL", 15*time.Minute),

		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

func defaultModels(provider string) (fast, reasoning, writer string) {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini", "o4-mini", "gpt-4o"
	case ProviderAnthropic:
		return "claude-3-5-haiku-20241022", "claude-sonnet-4-20250514", "claude-sonnet-4-20250514"
	default:
		return "gemini-3-flash-preview", "gemini-3-pro-preview", "gemini-3-pro-preview"
	}
}

// Validate rejects unknown enum values and unusable numbers.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	switch c.WriterBackend {
	case WriterLangchain:
	case WriterGenAI:
		if c.GoogleAPIKey == "" {
			errs = append(errs, errors.New("WRITER_BACKEND=genai requires GOOGLE_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown WRITER_BACKEND %q", c.WriterBackend))
	}
	switch c.SearchProvider {
	case SearchBrave, SearchArxiv:
	default:
		errs = append(errs, fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider))
	}
	if c.SearchWorkers < 1 {
		errs = append(errs, errors.New("SEARCH_WORKERS must be positive"))
	}
	if c.FetchWorkers < 1 {
		errs = append(errs, errors.New("FETCH_WORKERS must be positive"))
	}
	if c.SearchResultCount < 1 {
		errs = append(errs, errors.New("SEARCH_RESULT_COUNT must be positive"))
	}
	if c.ReflectionMaxIterations < 0 {
		errs = append(errs, errors.New("REFLECTION_MAX_ITERATIONS must not be negative"))
	}
	if c.ThinkingFlushWords < 1 {
		errs = append(errs, errors.New("THINKING_FLUSH_WORDS must be positive"))
	}
	if c.LeaseTTL <= 0 {
		errs = append(errs, errors.New("LEASE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// Research returns the pipeline configuration.
func (c *Config) Research() research.Config {
	rc := research.DefaultConfig()
	rc.MaxIterations = c.ReflectionMaxIterations
	rc.SearchWorkers = c.SearchWorkers
	rc.FetchWorkers = c.FetchWorkers
	rc.FlushWords = c.ThinkingFlushWords
	return rc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
