package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Milvus    MilvusConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Chunking  ChunkingConfig
	Auth      AuthConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	Provider      string
	Model         string
	APIKey        string
	OllamaBaseURL string
	Temperature   float32
	MaxTokens     int
	TimeoutSec    int
}

type EmbeddingConfig struct {
	Provider      string
	Model         string
	APIKey        string
	OllamaBaseURL string
	Dimension     int
	TimeoutSec    int
}

type RetrievalConfig struct {
	TopK int
	// MaxDistance is the L2 cutoff applied to search results. The default
	// is deliberately permissive and has not been tuned against real data.
	MaxDistance float64
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTLMin  int
	MaxFileBytes int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/datachat")

	viper.SetEnvPrefix("DATACHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/datachat.db")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "datachat_collection")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.model", "mistral")
	viper.SetDefault("llm.ollamaBaseURL", "http://localhost:11434")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("embedding.provider", "ollama")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.ollamaBaseURL", "http://localhost:11434")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeoutSec", 15)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.maxDistance", 2.0)

	viper.SetDefault("chunking.size", 1000)
	viper.SetDefault("chunking.overlap", 200)

	viper.SetDefault("auth.jwtSecret", "change-me-in-production")
	viper.SetDefault("auth.tokenTTLMin", 1440)
	viper.SetDefault("auth.maxFileBytes", 10485760)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
