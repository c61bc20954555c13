// Package cli wires the koningschatd subcommands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/koningschat/koningschat/internal/config"
	"github.com/koningschat/koningschat/internal/database"
	"github.com/koningschat/koningschat/internal/openai"
	"github.com/koningschat/koningschat/internal/service"
	"github.com/koningschat/koningschat/internal/storage"
	"github.com/koningschat/koningschat/internal/telemetry"
)

// openPool connects and pings the configured database.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")
	return pool, nil
}

// newOpenAIClient builds the embedding/chat client from config. Returns nil
// when no API key is configured.
func newOpenAIClient(cfg *config.Config) *openai.Client {
	if !cfg.HasOpenAI() {
		return nil
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: openaiapi.EmbeddingModel(cfg.EmbeddingModel),
		ChatModel:      cfg.ChatModel,
		CallTimeout:    cfg.CallTimeout,
	})
}

// answerGenerator adapts the openai client to the chat service interface.
type answerGenerator struct {
	client *openai.Client
}

func (g *answerGenerator) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	return g.client.GenerateAnswer(ctx, question, contextText)
}

func (g *answerGenerator) GenerateAnswerStream(ctx context.Context, question, contextText string) (service.AnswerStreamInterface, error) {
	stream, err := g.client.GenerateAnswerStream(ctx, question, contextText)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// newSnapshotStore builds the optional S3 archive. Returns nil when S3 is
// not configured.
func newSnapshotStore(ctx context.Context, cfg *config.Config) (*storage.SnapshotStore, error) {
	if !cfg.HasS3() {
		return nil, nil
	}

	store, err := storage.NewSnapshotStore(ctx, storage.SnapshotStoreConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure snapshot bucket: %w", err)
	}
	log.Printf("snapshot bucket '%s' ready", cfg.S3Bucket)
	return store, nil
}

// initTelemetry initializes Sentry when SENTRY_DSN is set. The returned
// shutdown function flushes pending events.
func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func runMigrations(databaseURL string) error {
	// golang-migrate wants a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
