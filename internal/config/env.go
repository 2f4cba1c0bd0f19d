package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	SslCertPath string
	Port        string
	CorsOrigins []string
	JWTSecret   string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	VectorBackend    string
	MilvusAddress    string
	MilvusUsername   string
	MilvusPassword   string
	MilvusCollection string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EmbedCacheTTL time.Duration

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	StarterCredits        int
	DefaultCity           string
	GumroadSellerID       string
	RevenueCatSecret      string
	DefaultProductCredits int
	AnalysisTimeout       time.Duration

	IngestBatchSize         int
	IngestBatchDelay        time.Duration
	IngestRateLimitCooldown time.Duration

	LogLevel  string
	LogFormat string
}

const (
	VectorBackendPgvector = "pgvector"
	VectorBackendMilvus   = "milvus"
)

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),
		Port:        getEnv("PORT", "8080"),
		CorsOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-2.5-flash"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendPgvector)),
		MilvusAddress:    getEnv("MILVUS_ADDRESS", "localhost:19530"),
		MilvusUsername:   getEnv("MILVUS_USERNAME", ""),
		MilvusPassword:   getEnv("MILVUS_PASSWORD", ""),
		MilvusCollection: getEnv("MILVUS_COLLECTION", "leaselens"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		EmbedCacheTTL: getEnvDuration("EMBED_CACHE_TTL", 24*time.Hour),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		StarterCredits:        getEnvInt("STARTER_CREDITS", 1),
		DefaultCity:           strings.ToLower(getEnv("DEFAULT_CITY", "london")),
		GumroadSellerID:       getEnv("GUMROAD_SELLER_ID", ""),
		RevenueCatSecret:      getEnv("REVENUECAT_WEBHOOK_SECRET", ""),
		DefaultProductCredits: getEnvInt("DEFAULT_PRODUCT_CREDITS", 10),
		AnalysisTimeout:       getEnvDuration("ANALYSIS_TIMEOUT", 3*time.Minute),

		IngestBatchSize:         getEnvInt("INGEST_BATCH_SIZE", 10),
		IngestBatchDelay:        getEnvDuration("INGEST_BATCH_DELAY", 5*time.Second),
		IngestRateLimitCooldown: getEnvDuration("INGEST_RATE_LIMIT_COOLDOWN", 60*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks the settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.AnalysisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ANALYSIS_TIMEOUT must be positive, got %s", c.AnalysisTimeout))
	}
	errs = append(errs, c.ValidateIngest())
	return errors.Join(errs...)
}

// ValidateIngest checks the subset of settings used by the ingestion command.
func (c *Config) ValidateIngest() error {
	var errs []error
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	switch c.VectorBackend {
	case VectorBackendPgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set (required by pgvector backend)"))
		}
	case VectorBackendMilvus:
		if c.MilvusAddress == "" {
			errs = append(errs, errors.New("MILVUS_ADDRESS not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q",
			VectorBackendPgvector, VectorBackendMilvus, c.VectorBackend))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
