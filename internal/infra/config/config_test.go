package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_RetrievalParameters_Defaults(t *testing.T) {
	envVars := []string{
		"RETRIEVAL_TOP_K",
		"RERANK_TOP_K",
		"GRADING_THRESHOLD",
		"MAX_RETRIES",
	}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 15, cfg.RetrievalTopK)
	assert.Equal(t, 7, cfg.RerankTopK)
	assert.Equal(t, 0.15, cfg.GradingThreshold)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoad_RetrievalParameters_FromEnv(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "25")
	t.Setenv("RERANK_TOP_K", "10")
	t.Setenv("GRADING_THRESHOLD", "0.3")
	t.Setenv("MAX_RETRIES", "1")

	cfg := Load()

	assert.Equal(t, 25, cfg.RetrievalTopK)
	assert.Equal(t, 10, cfg.RerankTopK)
	assert.Equal(t, 0.3, cfg.GradingThreshold)
	assert.Equal(t, 1, cfg.MaxRetries)
}

func TestLoad_OllamaDefaults(t *testing.T) {
	envVars := []string{"OLLAMA_URL", "OLLAMA_TIMEOUT_SECONDS", "EMBEDDING_MODEL", "GENERATION_MODEL"}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Equal(t, 60*time.Second, cfg.OllamaTimeout)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, "llama3.1", cfg.GenerationModel)
}

func TestLoad_OllamaFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_TIMEOUT_SECONDS", "30")
	t.Setenv("EMBEDDING_MODEL", "bge-m3")

	cfg := Load()

	assert.Equal(t, "http://ollama:11434", cfg.OllamaURL)
	assert.Equal(t, 30*time.Second, cfg.OllamaTimeout)
	assert.Equal(t, "bge-m3", cfg.EmbeddingModel)
}

func TestLoad_ServerPort_Default(t *testing.T) {
	_ = os.Unsetenv("PORT")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_DBSettings_FromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "agentic_rag_test")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "5433", cfg.DBPort)
	assert.Equal(t, "agentic_rag_test", cfg.DBName)
}

func TestGetEnvFloat64(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback float64
		expected float64
	}{
		{
			name:     "valid value",
			envValue: "75.5",
			fallback: 60.0,
			expected: 75.5,
		},
		{
			name:     "invalid value uses fallback",
			envValue: "not-a-number",
			fallback: 60.0,
			expected: 60.0,
		},
		{
			name:     "empty uses fallback",
			envValue: "",
			fallback: 60.0,
			expected: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_FLOAT", tt.envValue)
			} else {
				_ = os.Unsetenv("TEST_FLOAT")
			}

			result := getEnvFloat64("TEST_FLOAT", tt.fallback)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetEnvFloat32(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback float32
		expected float32
	}{
		{
			name:     "valid value",
			envValue: "1.5",
			fallback: 1.3,
			expected: 1.5,
		},
		{
			name:     "invalid value uses fallback",
			envValue: "invalid",
			fallback: 1.3,
			expected: 1.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT32", tt.envValue)

			result := getEnvFloat32("TEST_FLOAT32", tt.fallback)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvBool("TEST_BOOL", true))

	_ = os.Unsetenv("TEST_BOOL")
	assert.True(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "not-a-bool")
	assert.True(t, getEnvBool("TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "5")
	assert.Equal(t, 5*time.Second, getEnvDuration("TEST_DURATION", 10*time.Second))

	_ = os.Unsetenv("TEST_DURATION")
	assert.Equal(t, 10*time.Second, getEnvDuration("TEST_DURATION", 10*time.Second))
}
