package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"3001"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4"`

	// Site scraping
	SiteBaseURL      string        `envconfig:"SITE_BASE_URL" default:"https://www.koningsspelen.nl"`
	ScrapeInterval   time.Duration `envconfig:"SCRAPE_INTERVAL" default:"1s"`
	MinContentLength int           `envconfig:"MIN_CONTENT_LENGTH" default:"50"`

	// Retrieval pipeline
	MaxChunkSize   int           `envconfig:"MAX_CHUNK_SIZE" default:"1000"`
	SearchLimit    int           `envconfig:"SEARCH_LIMIT" default:"3"`
	EmbedRateLimit float64       `envconfig:"EMBED_RATE_LIMIT" default:"10"`
	CallTimeout    time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	// Chat widget origins allowed to call the API
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	// Optional raw-page snapshot archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"koningschat-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KONINGSCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
