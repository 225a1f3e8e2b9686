package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "SEARCH_WORKERS", "LEASE_TTL", "PORT", "WRITER_BACKEND", "REFLECTION_MAX_ITERATIONS", "FAST_MODEL", "SEARCH_PROVIDER", "SEARCH_RESULT_COUNT", "FETCH_WORKERS", "THINKING_FLUSH_WORDS"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, ProviderGoogle, cfg.LLMProvider)
	assert.Equal(t, 5, cfg.SearchWorkers)
	assert.Equal(t, 15*time.Minute, cfg.LeaseTTL)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 3, cfg.ReflectionMaxIterations)
	assert.Equal(t, "gemini-3-flash-preview", cfg.FastModel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("SEARCH_WORKERS", "8")
	t.Setenv("LEASE_TTL", "90s")
	t.Setenv("FETCH_MAX_CHARS", "not-a-number")
	t.Setenv("FAST_MODEL", "")

	cfg := Load()
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 8, cfg.SearchWorkers)
	assert.Equal(t, 90*time.Second, cfg.LeaseTTL)
	assert.Equal(t, 12000, cfg.FetchMaxChars)
	assert.Equal(t, "gpt-4o-mini", cfg.FastModel)

	rc := cfg.Research()
	assert.Equal(t, 8, rc.SearchWorkers)
	assert.Equal(t, 500, rc.ThoughtMaxChar)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.LLMProvider = "mistral" }, "LLM_PROVIDER"},
		{"search", func(c *Config) { c.SearchProvider = "bing" }, "SEARCH_PROVIDER"},
		{"workers", func(c *Config) { c.SearchWorkers = 0 }, "SEARCH_WORKERS"},
		{"fetch workers", func(c *Config) { c.FetchWorkers = -1 }, "FETCH_WORKERS"},
		{"genai without key", func(c *Config) { c.WriterBackend = WriterGenAI; c.GoogleAPIKey = "" }, "GOOGLE_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func validConfig() *Config {
	return &Config{
		LLMProvider:             ProviderGoogle,
		WriterBackend:           WriterLangchain,
		SearchProvider:          SearchBrave,
		SearchResultCount:       5,
		SearchWorkers:           5,
		FetchWorkers:            5,
		ReflectionMaxIterations: 3,
		ThinkingFlushWords:      10,
		LeaseTTL:                time.Minute,
	}
}

func TestSetupLogger(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("job started", "job_id", "j1")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "job_id=j1")
	assert.Contains(t, file.String(), `"job_id":"j1"`)
	assert.NotContains(t, file.String(), "hidden")

	path := filepath.Join(t.TempDir(), "app.log")
	fileLogger, closeFn := SetupLogger(path, slog.LevelDebug)
	fileLogger.Debug("to file")
	require.NoError(t, closeFn())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
