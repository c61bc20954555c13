package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koningschat/koningschat/internal/config"
	"github.com/koningschat/koningschat/internal/repository"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run an ad-hoc similarity search",
		Long:  "Embed the query and print the nearest chunks. Useful for checking what the chatbot would ground an answer on.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("limit", "n", 0, "Number of results (overrides config)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	openaiClient := newOpenAIClient(cfg)
	if openaiClient == nil {
		return fmt.Errorf("KONINGSCHAT_OPENAI_API_KEY is required for search")
	}

	limit := cfg.SearchLimit
	if flagLimit, _ := cmd.Flags().GetInt("limit"); flagLimit > 0 {
		limit = flagLimit
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	query := strings.Join(args, " ")

	embedding, err := openaiClient.GenerateEmbedding(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	chunkRepo := repository.NewChunkRepository(pool)
	matches, err := chunkRepo.SearchNearest(ctx, embedding, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%d. %s (%s, distance %.4f)\n", i+1, m.Title, m.URL, m.Distance)
		fmt.Printf("   %s\n", m.Text)
	}
	return nil
}
