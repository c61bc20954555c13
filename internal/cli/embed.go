package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koningschat/koningschat/internal/config"
	"github.com/koningschat/koningschat/internal/repository"
	"github.com/koningschat/koningschat/internal/service"
)

// EmbedCmd returns the embed command
func EmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Regenerate chunks and embeddings for all content",
		Long:  "Re-chunk and re-embed every stored page. Run after changing the chunking or embedding configuration.",
		RunE:  runEmbed,
	}

	cmd.Flags().Int64("content-id", 0, "Rebuild a single document instead of everything")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	openaiClient := newOpenAIClient(cfg)
	if openaiClient == nil {
		return fmt.Errorf("KONINGSCHAT_OPENAI_API_KEY is required for embedding")
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	indexer := service.NewIndexerService(documentRepo, chunkRepo, openaiClient, cfg.MaxChunkSize, cfg.EmbedRateLimit)

	if contentID, _ := cmd.Flags().GetInt64("content-id"); contentID > 0 {
		return indexer.RebuildDocument(ctx, contentID)
	}

	start := time.Now()
	stats, err := indexer.RebuildAll(ctx)
	if err != nil {
		return err
	}

	log.Printf("embedding finished in %s: %d documents, %d rebuilt, %d failed",
		time.Since(start).Round(time.Second), stats.Documents, stats.Rebuilt, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d documents failed to rebuild", stats.Failed)
	}
	return nil
}
