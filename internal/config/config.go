package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini (embeddings + generation)
	GeminiAPIKey    string
	GeminiModel     string
	EmbeddingsModel string
	Temperature     float64
	MaxOutputTokens int
	GeminiRPM       int

	// Milvus vector store
	MilvusAddress  string
	MilvusUsername string
	MilvusPassword string
	MilvusDatabase string
	CollectionName string
	// VectorDimensions 0 means probe the embedding model at startup
	VectorDimensions int
	DistanceMetric   string

	// Chunking and retrieval
	MaxChunkSize        int
	ChunkOverlap        int
	EmbedBatchSize      int
	MaxDocuments        int
	SimilarityThreshold float64
	FollowupQuestions   int

	// Document catalog (MongoDB)
	MongoURI string
	DBName   string

	// Redis (queue backend + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Uploads
	FileStorageDir string
	MaxFileSize    int64
	AllowedTypes   []string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Worker watchdog
	StaleProcessingMinutes int

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8501"), ","),

		// Gemini
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		Temperature:     getEnvFloat64("LLM_TEMPERATURE", 0.1),
		MaxOutputTokens: getEnvInt("MAX_NEW_TOKENS", 4000),
		GeminiRPM:       getEnvInt("GEMINI_RPM", 60),

		// Milvus
		MilvusAddress:    getEnv("MILVUS_ADDRESS", ""),
		MilvusUsername:   getEnv("MILVUS_USERNAME", ""),
		MilvusPassword:   getEnv("MILVUS_PASSWORD", ""),
		MilvusDatabase:   getEnv("MILVUS_DATABASE", ""),
		CollectionName:   getEnv("COLLECTION_NAME", ""),
		VectorDimensions: getEnvInt("VECTOR_DIM", 0),
		DistanceMetric:   getEnv("DISTANCE_METRIC", "cosine"),

		// Chunking and retrieval
		MaxChunkSize:        getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:      getEnvInt("EMBED_BATCH_SIZE", 100),
		MaxDocuments:        getEnvInt("MAX_DOCUMENTS", 5),
		SimilarityThreshold: getEnvFloat64("SIMILARITY_THRESHOLD", 0.7),
		FollowupQuestions:   getEnvInt("FOLLOWUP_QUESTIONS", 3),

		// Document catalog
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/support_rag"),
		DBName:   getEnv("DB_NAME", "support_rag"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Uploads
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB cap per upload
		AllowedTypes:   strings.Split(getEnv("ALLOWED_FILE_TYPES", ".pdf,.docx"), ","),

		// Rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Worker watchdog
		StaleProcessingMinutes: getEnvInt("STALE_PROCESSING_MINUTES", 30),

		// Telemetry
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.MilvusAddress == "" {
		return nil, fmt.Errorf("MILVUS_ADDRESS is required - set it in .env file")
	}

	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("COLLECTION_NAME is required - set it in .env file")
	}

	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_SIZE must be a positive integer")
	}

	if cfg.ChunkOverlap < 1 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be positive and less than MAX_CHUNK_SIZE")
	}

	if cfg.EmbedBatchSize <= 0 || cfg.EmbedBatchSize > 100 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be between 1 and 100")
	}

	if cfg.MaxDocuments <= 0 {
		return nil, fmt.Errorf("MAX_DOCUMENTS must be a positive integer")
	}

	switch strings.ToLower(cfg.DistanceMetric) {
	case "cosine", "l2", "ip":
	default:
		return nil, fmt.Errorf("DISTANCE_METRIC must be one of cosine, l2, ip")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
