package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koningschat/koningschat/internal/config"
	"github.com/koningschat/koningschat/internal/repository"
	"github.com/koningschat/koningschat/internal/scraper"
)

// ScrapeCmd returns the scrape command
func ScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl the website into the content table",
		Long:  "Fetch the configured site, extract page text and store it, queueing embed jobs for changed pages",
		RunE:  runScrape,
	}

	cmd.Flags().String("base-url", "", "Site to crawl (overrides config)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		cfg.SiteBaseURL = baseURL
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

	snapshots, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}

	documentRepo := repository.NewDocumentRepository(pool)
	embedJobRepo := repository.NewEmbedJobRepository(pool)

	// A nil interface, not a typed nil, when archiving is off.
	var snapshotStore scraper.SnapshotStoreInterface
	if snapshots != nil {
		snapshotStore = snapshots
	}

	s, err := scraper.New(scraper.Config{
		BaseURL:          cfg.SiteBaseURL,
		MinContentLength: cfg.MinContentLength,
		RequestInterval:  cfg.ScrapeInterval,
	}, &http.Client{Timeout: cfg.CallTimeout}, documentRepo, embedJobRepo, snapshotStore)
	if err != nil {
		return err
	}

	log.Printf("scraping %s", cfg.SiteBaseURL)
	start := time.Now()

	stats, err := s.Run(ctx)
	if err != nil {
		return err
	}

	log.Printf("scrape finished in %s: %d urls, %d saved, %d skipped, %d failed",
		time.Since(start).Round(time.Second), stats.Discovered, stats.Saved, stats.Skipped, stats.Failed)
	return nil
}
