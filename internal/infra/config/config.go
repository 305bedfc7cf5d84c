package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env    string
	Server ServerConfig
	DB     DBConfig
	Store  StoreConfig
	Ollama OllamaConfig
	Cache  CacheConfig
	Agent  AgentConfig
	Otel   OtelConfig
	Worker WorkerConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DBConfig struct {
	// URL wins over the individual fields when set.
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int32
	MinConns int32
}

// DSN returns the pgx connection string.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type StoreConfig struct {
	// Backend selects the retrieval store: "memory" or "postgres".
	Backend string
	// EmbedDim must match the embedding model's output dimensionality. The
	// pgvector column is created with this width.
	EmbedDim int
}

type OllamaConfig struct {
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
	NumPredict int
	// RateLimit is the request budget per second against the Ollama host.
	RateLimit float64
}

type CacheConfig struct {
	// Backend selects the answer cache: "lru", "redis", or "none".
	Backend   string
	Size      int
	TTL       time.Duration
	RedisAddr string
}

// AgentConfig mirrors the pipeline tunables of the agent package so a
// deployment adjusts them without code changes.
type AgentConfig struct {
	SearchLimit         int
	ScoreThreshold      float64
	SearchMode          string
	RRFK                float64
	SemanticWeight      float64
	FulltextWeight      float64
	RerankThreshold     float64
	RerankMaxCandidates int
	MaxIterations       int
	MaxCorrections      int
	SearchConcurrency   int

	EnableRewrite     bool
	EnableExpand      bool
	EnableDecompose   bool
	EnableSelect      bool
	EnableRerank      bool
	SelfCorrectSearch bool
	SelfCorrectAnswer bool
}

type OtelConfig struct {
	// Endpoint is the OTLP HTTP endpoint; empty disables export.
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// Enabled reports whether telemetry export is configured.
func (o OtelConfig) Enabled() bool {
	return o.Endpoint != ""
}

type WorkerConfig struct {
	CatalogRefreshInterval time.Duration
}

func Load() *Config {
	return &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "9600"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: DBConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "rag-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rag_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
			Name:     getEnv("DB_NAME", "rag_db"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "memory"),
			EmbedDim: getEnvInt("EMBEDDING_DIM", 768),
		},
		Ollama: OllamaConfig{
			BaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:      getEnv("OLLAMA_MODEL", "gemma3:4b"),
			EmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Timeout:    getEnvDuration("OLLAMA_TIMEOUT", 60*time.Second),
			NumPredict: getEnvInt("OLLAMA_NUM_PREDICT", 512),
			RateLimit:  getEnvFloat64("OLLAMA_RATE_LIMIT", 4),
		},
		Cache: CacheConfig{
			Backend:   getEnv("CACHE_BACKEND", "lru"),
			Size:      getEnvInt("CACHE_SIZE", 512),
			TTL:       getEnvDuration("CACHE_TTL", 10*time.Minute),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Agent: AgentConfig{
			SearchLimit:         getEnvInt("AGENT_SEARCH_LIMIT", 5),
			ScoreThreshold:      getEnvFloat64("AGENT_SCORE_THRESHOLD", 0.5),
			SearchMode:          getEnv("AGENT_SEARCH_MODE", "hybrid"),
			RRFK:                getEnvFloat64("AGENT_RRF_K", 60.0),
			SemanticWeight:      getEnvFloat64("AGENT_SEMANTIC_WEIGHT", 1.0),
			FulltextWeight:      getEnvFloat64("AGENT_FULLTEXT_WEIGHT", 1.0),
			RerankThreshold:     getEnvFloat64("AGENT_RERANK_THRESHOLD", 7.0),
			RerankMaxCandidates: getEnvInt("AGENT_RERANK_MAX_CANDIDATES", 30),
			MaxIterations:       getEnvInt("AGENT_MAX_ITERATIONS", 3),
			MaxCorrections:      getEnvInt("AGENT_MAX_CORRECTIONS", 2),
			SearchConcurrency:   getEnvInt("AGENT_SEARCH_CONCURRENCY", 4),
			EnableRewrite:       getEnvBool("AGENT_ENABLE_REWRITE", true),
			EnableExpand:        getEnvBool("AGENT_ENABLE_EXPAND", false),
			EnableDecompose:     getEnvBool("AGENT_ENABLE_DECOMPOSE", false),
			EnableSelect:        getEnvBool("AGENT_ENABLE_SELECT", true),
			EnableRerank:        getEnvBool("AGENT_ENABLE_RERANK", true),
			SelfCorrectSearch:   getEnvBool("AGENT_SELF_CORRECT_SEARCH", false),
			SelfCorrectAnswer:   getEnvBool("AGENT_SELF_CORRECT_ANSWER", false),
		},
		Otel: OtelConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "rag-agent"),
			SampleRatio: getEnvFloat64("OTEL_TRACE_SAMPLE_RATIO", 1.0),
		},
		Worker: WorkerConfig{
			CatalogRefreshInterval: getEnvDuration("CATALOG_REFRESH_INTERVAL", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret reads a secret from the environment, then from the file named by
// fileEnvKey, then falls back.
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

func getEnvFloat64(key string, fallback float64) float64 {
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
