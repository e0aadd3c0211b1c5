package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven tunable for the server, worker
// and backfill binaries. Load reads process environment variables,
// falling back to the defaults below when unset or unparsable.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OllamaURL      string
	OllamaTimeout  time.Duration
	EmbeddingModel string
	GenerationModel string

	RerankerURL     string
	RerankerModel   string
	RerankerTimeout time.Duration

	QueryPreparationAlternateCount int

	RetrievalTopK          int
	RetrievalPrefetchLimit int
	RerankTopK             int
	GradingThreshold       float64
	GradingFallbackTopK    int
	MaxRetries             int
	ReserveOutputTokens    int
	MaxQueryLength         int
	GenerationMaxTokens    int

	HeartbeatIntervalSeconds int

	BackfillCursorPath    string
	DocumentSourceURL     string
	DocumentSourceTimeout time.Duration
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		Port: getEnvString("PORT", "8080"),

		DBHost:     getEnvString("DB_HOST", "localhost"),
		DBPort:     getEnvString("DB_PORT", "5432"),
		DBUser:     getEnvString("DB_USER", "postgres"),
		DBPassword: getEnvString("DB_PASSWORD", "postgres"),
		DBName:     getEnvString("DB_NAME", "agentic_rag"),

		OllamaURL:       getEnvString("OLLAMA_URL", "http://localhost:11434"),
		OllamaTimeout:   getEnvDuration("OLLAMA_TIMEOUT_SECONDS", 60*time.Second),
		EmbeddingModel:  getEnvString("EMBEDDING_MODEL", "nomic-embed-text"),
		GenerationModel: getEnvString("GENERATION_MODEL", "llama3.1"),

		RerankerURL:     getEnvString("RERANKER_URL", "http://localhost:8001"),
		RerankerModel:   getEnvString("RERANKER_MODEL", "bge-reranker-v2-m3"),
		RerankerTimeout: getEnvDuration("RERANKER_TIMEOUT_SECONDS", 10*time.Second),

		QueryPreparationAlternateCount: getEnvInt("QUERY_PREPARATION_ALTERNATE_COUNT", 2),

		RetrievalTopK:          getEnvInt("RETRIEVAL_TOP_K", 15),
		RetrievalPrefetchLimit: getEnvInt("RETRIEVAL_PREFETCH_LIMIT", 30),
		RerankTopK:             getEnvInt("RERANK_TOP_K", 7),
		GradingThreshold:       getEnvFloat64("GRADING_THRESHOLD", 0.15),
		GradingFallbackTopK:    getEnvInt("GRADING_FALLBACK_TOP_K", 3),
		MaxRetries:             getEnvInt("MAX_RETRIES", 3),
		ReserveOutputTokens:    getEnvInt("RESERVE_OUTPUT_TOKENS", 4000),
		MaxQueryLength:         getEnvInt("MAX_QUERY_LENGTH", 2000),
		GenerationMaxTokens:    getEnvInt("GENERATION_MAX_TOKENS", 1024),

		HeartbeatIntervalSeconds: getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 15),

		BackfillCursorPath:    getEnvString("BACKFILL_CURSOR_PATH", "./backfill-cursor.json"),
		DocumentSourceURL:     getEnvString("DOCUMENT_SOURCE_URL", "http://localhost:9010"),
		DocumentSourceTimeout: getEnvDuration("DOCUMENT_SOURCE_TIMEOUT_SECONDS", 30*time.Second),
	}
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(parsed)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
