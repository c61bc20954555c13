package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koningschat/koningschat/internal/api/handlers"
	"github.com/koningschat/koningschat/internal/config"
	"github.com/koningschat/koningschat/internal/jobs"
	"github.com/koningschat/koningschat/internal/repository"
	"github.com/koningschat/koningschat/internal/server"
	"github.com/koningschat/koningschat/internal/service"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		Long:  "Start the koningschat API server with the embed job worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides config)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	embedJobRepo := repository.NewEmbedJobRepository(pool)

	openaiClient := newOpenAIClient(cfg)

	var chatHandler *handlers.ChatHandler
	var embedWorker *jobs.Worker
	if openaiClient != nil {
		retrievalSvc := service.NewRetrievalService(openaiClient, chunkRepo, cfg.SearchLimit)
		chatSvc := service.NewChatService(retrievalSvc, &answerGenerator{client: openaiClient})
		chatHandler = handlers.NewChatHandler(chatSvc)

		indexer := service.NewIndexerService(documentRepo, chunkRepo, openaiClient, cfg.MaxChunkSize, cfg.EmbedRateLimit)
		processor := jobs.NewEmbedWorker(embedJobRepo, indexer)
		embedWorker = jobs.NewWorker(processor, 10*time.Second)
		go embedWorker.Start(ctx)
		log.Println("embed worker started")
	} else {
		log.Println("no OpenAI key configured, chat endpoints disabled")
		chatHandler = handlers.NewChatHandler(&unconfiguredChatService{})
	}

	var openaiPinger handlers.Pinger
	if openaiClient != nil {
		openaiPinger = openaiClient
	}
	healthHandler := handlers.NewHealthHandler(documentRepo, openaiPinger)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:    chatHandler,
		HealthHandler:  healthHandler,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embedWorker != nil {
		embedWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// unconfiguredChatService rejects chat requests when no OpenAI key is set.
type unconfiguredChatService struct{}

func (s *unconfiguredChatService) Answer(ctx context.Context, message string) (*service.ChatAnswer, error) {
	return nil, fmt.Errorf("chat service not configured: KONINGSCHAT_OPENAI_API_KEY required")
}

func (s *unconfiguredChatService) AnswerStream(ctx context.Context, message string, emit func(service.ChatEvent) error) error {
	return fmt.Errorf("chat service not configured: KONINGSCHAT_OPENAI_API_KEY required")
}
