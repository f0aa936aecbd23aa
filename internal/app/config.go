package app

import (
	"time"

	"github.com/yungbote/neurobridge-tutor/internal/data/db"
	"github.com/yungbote/neurobridge-tutor/internal/platform/cache"
	"github.com/yungbote/neurobridge-tutor/internal/platform/envutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/openai"
	"github.com/yungbote/neurobridge-tutor/internal/platform/weaviate"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

const defaultAskRateLimit = 10

type Config struct {
	HTTPAddr    string
	LogMode     string
	ServiceName string
	Environment string
	CORSOrigins []string
	AutoMigrate bool

	DB       db.Config
	Redis    cache.RedisConfig
	OpenAI   openai.Config
	Weaviate weaviate.Config

	RetrievalBackend string
	TuningFile       string
	// Zero keeps the tuning file value.
	RetrieveTopK int
	RerankTopN   int

	Auth services.AuthConfig

	AskRateLimitPerMinute int
	LLMDailyLimit         int
	EmbedDailyLimit       int
}

// LoadConfig reads the environment once. Nothing below the composition root
// reads env vars for these settings.
func LoadConfig() Config {
	return Config{
		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "neurobridge-tutor"),
		Environment: envutil.String("APP_ENV", "development"),
		CORSOrigins: envutil.CSV("CORS_ALLOWED_ORIGINS", nil),
		AutoMigrate: envutil.Bool("DB_AUTO_MIGRATE", true),

		DB: db.Config{
			Driver:       envutil.String("DB_DRIVER", db.DriverPostgres),
			DSN:          envutil.String("DATABASE_URL", ""),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "tutor"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:   envutil.String("SQLITE_PATH", "tutor.db"),
			MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envutil.Int("DB_MAX_IDLE_CONNS", 5),
			SlowQuery:    envutil.Duration("DB_SLOW_QUERY", time.Second),
		},
		Redis: cache.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		},
		OpenAI: openai.Config{
			APIKey:         envutil.String("OPENAI_API_KEY", ""),
			BaseURL:        envutil.String("OPENAI_BASE_URL", ""),
			EmbeddingModel: envutil.String("EMBEDDING_MODEL", openai.DefaultEmbeddingModel),
			EmbeddingDims:  envutil.Int("EMBEDDING_DIMS", openai.DefaultEmbeddingDims),
			ChatModel:      envutil.String("LLM_MODEL", openai.DefaultChatModel),
			MaxTokens:      envutil.Int("LLM_MAX_TOKENS", openai.DefaultMaxTokens),
			Temperature:    float32(envutil.Float("LLM_TEMPERATURE", openai.DefaultTemperature)),
		},
		Weaviate: weaviate.Config{
			Host:   envutil.String("WEAVIATE_HOST", ""),
			Scheme: envutil.String("WEAVIATE_SCHEME", "http"),
			Class:  envutil.String("WEAVIATE_CLASS", weaviate.DefaultClass),
		},

		RetrievalBackend: envutil.String("RETRIEVAL_BACKEND", ""),
		TuningFile:       envutil.String("TUNING_FILE", ""),
		RetrieveTopK:     envutil.Int("RAG_RETRIEVE_TOP_K", 0),
		RerankTopN:       envutil.Int("RAG_RERANK_TOP_N", 0),

		Auth: services.AuthConfig{
			SecretKey:  envutil.String("JWT_SECRET_KEY", ""),
			AccessTTL:  envutil.Duration("ACCESS_TOKEN_TTL", services.DefaultAccessTTL),
			RefreshTTL: envutil.Duration("REFRESH_TOKEN_TTL", services.DefaultRefreshTTL),
			BcryptCost: envutil.Int("BCRYPT_COST", services.DefaultBcryptCost),
		},

		AskRateLimitPerMinute: envutil.Int("ASK_RATE_LIMIT_PER_MINUTE", defaultAskRateLimit),
		LLMDailyLimit:         envutil.Int("LLM_DAILY_LIMIT", services.DefaultLLMDailyLimit),
		EmbedDailyLimit:       envutil.Int("EMBED_DAILY_LIMIT", services.DefaultEmbedDailyLimit),
	}
}
