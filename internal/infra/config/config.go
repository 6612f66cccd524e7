package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OpenAIBaseURL    string
	OpenAIAPIKey     string
	ChatModel        string
	EmbeddingModel   string
	EmbeddingRPS     float64
	AnswerMaxTokens  int
	ExtractMaxTokens int

	AllowedExtensions []string
	ChunkSize         int
	ChunkOverlap      int

	SearchLimit         int
	SearchNumCandidates int

	VerifierSettleDelay    time.Duration
	VerifierMaxAttempts    int
	VerifierBaseDelay      time.Duration
	VerifierDelayIncrement time.Duration

	AnswerCacheSize int
	AnswerCacheTTL  time.Duration

	CORSOrigins []string
	OTelEnabled bool
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8000"),

		DBHost:     getEnv("DB_HOST", "assistant-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "assistant_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "assistant_password"),
		DBName:     getEnv("DB_NAME", "assistant_db"),

		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:     getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingRPS:     getEnvFloat("EMBEDDING_REQUESTS_PER_SECOND", 5),
		AnswerMaxTokens:  getEnvInt("ANSWER_MAX_TOKENS", 768),
		ExtractMaxTokens: getEnvInt("EXTRACT_MAX_TOKENS", 512),

		AllowedExtensions: getEnvList("ALLOWED_EXTENSIONS", []string{"pdf", "txt", "csv", "html", "htm", "docx"}),
		ChunkSize:         getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 100),

		SearchLimit:         getEnvInt("SEARCH_LIMIT", 10),
		SearchNumCandidates: getEnvInt("SEARCH_NUM_CANDIDATES", 50),

		VerifierSettleDelay:    getEnvDuration("VERIFIER_SETTLE_DELAY", 2*time.Second),
		VerifierMaxAttempts:    getEnvInt("VERIFIER_MAX_ATTEMPTS", 5),
		VerifierBaseDelay:      getEnvDuration("VERIFIER_BASE_DELAY", time.Second),
		VerifierDelayIncrement: getEnvDuration("VERIFIER_DELAY_INCREMENT", 2*time.Second),

		AnswerCacheSize: getEnvInt("ANSWER_CACHE_SIZE", 256),
		AnswerCacheTTL:  getEnvDuration("ANSWER_CACHE_TTL", 5*time.Minute),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		OTelEnabled: getEnvBool("OTEL_ENABLED", false),
	}
}

// DSN renders the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
