package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ragline/internal/rag"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	BackendWeaviate = "weaviate"
	BackendQdrant   = "qdrant"
	BackendMilvus   = "milvus"
	BackendMemory   = "memory"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"ragline"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"ragline"`

	// Completion and embedding upstream
	Provider     string `envconfig:"PROVIDER" default:"ollama" validate:"oneof=ollama openai gemini"`
	Model        string `envconfig:"MODEL" default:"llama3" validate:"required"`
	EmbedModel   string `envconfig:"EMBED_MODEL" default:"nomic-embed-text" validate:"required"`
	OllamaAPIURL string `envconfig:"OLLAMA_API_URL" default:"http://localhost:11434" validate:"required_if=Provider ollama"`
	OllamaAPIKey string `envconfig:"OLLAMA_API_KEY"`
	OpenAIAPIURL string `envconfig:"OPENAI_API_URL" default:"https://api.openai.com/v1" validate:"required_if=Provider openai"`
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" validate:"required_if=Provider openai"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" validate:"required_if=Provider gemini"`

	// Document store
	DocumentStore string `envconfig:"DOCUMENT_STORE" default:"postgres" validate:"oneof=postgres mongo"`
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017" validate:"required_if=DocumentStore mongo"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"ragline"`

	// Vector index
	VectorBackend      string `envconfig:"VECTOR_BACKEND" default:"weaviate" validate:"oneof=weaviate qdrant milvus memory"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIM" default:"768" validate:"gt=0"`
	WeaviateHost       string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme     string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	QdrantURL          string `envconfig:"QDRANT_URL" default:"http://localhost:6333" validate:"required_if=VectorBackend qdrant"`
	QdrantAPIKey       string `envconfig:"QDRANT_API_KEY"`
	MilvusAddress      string `envconfig:"MILVUS_ADDRESS" default:"localhost:19530" validate:"required_if=VectorBackend milvus"`
	MilvusDatabase     string `envconfig:"MILVUS_DATABASE"`
	MilvusUsername     string `envconfig:"MILVUS_USERNAME"`
	MilvusPassword     string `envconfig:"MILVUS_PASSWORD"`
	Collection         string `envconfig:"VECTOR_COLLECTION" default:"document_chunks"`

	// Embedding cache; empty address disables it
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Pipeline
	ChunkSize         int     `envconfig:"CHUNK_SIZE" default:"800" validate:"gt=0"`
	ChunkOverlap      int     `envconfig:"CHUNK_OVERLAP" default:"100" validate:"gte=0"`
	SearchTopK        int     `envconfig:"TOP_K" default:"5" validate:"gt=0"`
	IngestConcurrency int     `envconfig:"INGEST_CONCURRENCY" default:"1" validate:"gt=0"`
	IngestRateLimit   float64 `envconfig:"INGEST_RATE_LIMIT" default:"0" validate:"gte=0"`
	EnableWorker      bool    `envconfig:"ENABLE_REINDEX_WORKER" default:"true"`

	// Upstream call bounds
	EmbedTimeout      time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	IndexTimeout      time.Duration `envconfig:"INDEX_TIMEOUT" default:"15s"`
	StoreTimeout      time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"120s"`
	RetryAttempts     int           `envconfig:"UPSTREAM_RETRY_ATTEMPTS" default:"3" validate:"gte=1"`
	RetryInterval     time.Duration `envconfig:"UPSTREAM_RETRY_INTERVAL" default:"500ms"`

	// Server
	ServerPort    int    `envconfig:"PORT" default:"8081"`
	CORSOrigin    string `envconfig:"CORS_ORIGIN" default:"http://localhost:3001"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; .env files only fill gaps.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, rag.Configuration("load config", fmt.Errorf("%w: %v", ErrInvalid, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return rag.Configuration("validate config", fmt.Errorf("%w: DB_HOST", ErrMissingRequired))
	}
	if c.DBUser == "" {
		return rag.Configuration("validate config", fmt.Errorf("%w: DB_USER", ErrMissingRequired))
	}
	if c.DBName == "" {
		return rag.Configuration("validate config", fmt.Errorf("%w: DB_NAME", ErrMissingRequired))
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return rag.Configuration("validate config", fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", ")))
		}
		return rag.Configuration("validate config", fmt.Errorf("%w: %v", ErrInvalid, err))
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return rag.Configuration("validate config", fmt.Errorf("%w: CHUNK_OVERLAP %d must be below CHUNK_SIZE %d", ErrInvalid, c.ChunkOverlap, c.ChunkSize))
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
