// Package scraper crawls the configured site and stores page text for
// chunking and embedding.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/telemetry"
)

// DefaultMinContentLength drops near-empty pages.
const DefaultMinContentLength = 50

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

var binaryExtensions = regexp.MustCompile(`(?i)\.(pdf|jpg|jpeg|png|gif|zip|doc|docx)$`)

// DocumentSaverInterface defines the repository write for scraped pages
type DocumentSaverInterface interface {
	Upsert(ctx context.Context, d *domain.Document) (int64, error)
}

// EmbedJobEnqueuerInterface defines how saved pages queue re-embedding
type EmbedJobEnqueuerInterface interface {
	Create(ctx context.Context, job *domain.EmbedJob) error
}

// SnapshotStoreInterface archives raw fetched HTML
type SnapshotStoreInterface interface {
	PutSnapshot(ctx context.Context, pageURL string, fetchedAt time.Time, body []byte) error
}

// Config holds scraper settings.
type Config struct {
	BaseURL          string
	MinContentLength int
	// RequestInterval is the pause enforced between fetches.
	RequestInterval time.Duration
}

// Scraper crawls one site: discover same-site links from the base page,
// fetch each, extract text and persist it.
type Scraper struct {
	httpClient *http.Client
	base       *url.URL
	minLength  int
	limiter    *rate.Limiter
	documents  DocumentSaverInterface
	jobs       EmbedJobEnqueuerInterface
	snapshots  SnapshotStoreInterface
}

// New creates a Scraper. snapshots may be nil to disable HTML archiving.
func New(
	cfg Config,
	httpClient *http.Client,
	documents DocumentSaverInterface,
	jobs EmbedJobEnqueuerInterface,
	snapshots SnapshotStoreInterface,
) (*Scraper, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %s", cfg.BaseURL)
	}

	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}

	return &Scraper{
		httpClient: httpClient,
		base:       base,
		minLength:  cfg.MinContentLength,
		limiter:    limiter,
		documents:  documents,
		jobs:       jobs,
		snapshots:  snapshots,
	}, nil
}

// Stats summarizes one crawl.
type Stats struct {
	Discovered int
	Saved      int
	Skipped    int
	Failed     int
}

// Run crawls the site: collects URLs from the base page, then fetches and
// stores each one. Per-page failures are logged and counted, never fatal.
func (s *Scraper) Run(ctx context.Context) (*Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "Scraper.Run", telemetry.SpanAttributes{
		URL:       s.base.String(),
		Operation: "scrape",
	})
	defer span.End()

	urls, err := s.DiscoverURLs(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	log.Printf("scraper: found %d urls to scrape", len(urls))

	stats := &Stats{Discovered: len(urls)}
	for _, pageURL := range urls {
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		if err := s.ScrapePage(ctx, pageURL); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if errors.Is(err, domain.ErrContentTooShort) {
				stats.Skipped++
			} else {
				stats.Failed++
				telemetry.CaptureError(ctx, err)
			}
			log.Printf("scraper: %s: %v", pageURL, err)
			continue
		}
		stats.Saved++
	}

	log.Printf("scraper: done (saved %d, skipped %d, failed %d)", stats.Saved, stats.Skipped, stats.Failed)
	return stats, nil
}

// DiscoverURLs fetches the base page and returns every same-site page URL
// on it, cleaned and deduplicated, the base URL included. Order is
// deterministic.
func (s *Scraper) DiscoverURLs(ctx context.Context) ([]string, error) {
	page, _, err := s.fetch(ctx, s.base.String())
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{s.base.String(): {}}
	for _, href := range page.Links {
		clean, ok := s.cleanURL(href)
		if !ok {
			continue
		}
		seen[clean] = struct{}{}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// ScrapePage fetches one page, extracts its text and saves it when it
// meets the minimum length. A saved page enqueues an embed job and, when
// archiving is configured, a raw HTML snapshot.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string) error {
	log.Printf("scraper: fetching %s", pageURL)

	page, raw, err := s.fetch(ctx, pageURL)
	if err != nil {
		return err
	}

	if len(page.Text) < s.minLength {
		return fmt.Errorf("%s: %w", pageURL, domain.ErrContentTooShort)
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(pageURL, page.Title, page.Text, now)
	contentID, err := s.documents.Upsert(ctx, doc)
	if err != nil {
		return fmt.Errorf("save %s: %w", pageURL, err)
	}

	job := domain.NewEmbedJob(uuid.NewString(), contentID, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("enqueue embed job for %s: %w", pageURL, err)
	}

	if s.snapshots != nil {
		if err := s.snapshots.PutSnapshot(ctx, pageURL, now, raw); err != nil {
			// Archiving is best effort.
			log.Printf("scraper: snapshot of %s failed: %v", pageURL, err)
		}
	}

	return nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*Page, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "koningschat-scraper/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	page, err := ExtractPage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return page, raw, nil
}

// cleanURL resolves href against the base, keeps same-site http(s) pages
// only, strips fragment and query, and drops binary and admin paths.
func (s *Scraper) cleanURL(href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := s.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host != s.base.Host {
		return "", false
	}

	resolved.Fragment = ""
	resolved.RawQuery = ""
	clean := strings.TrimSuffix(resolved.String(), "/")

	if binaryExtensions.MatchString(clean) {
		return "", false
	}
	if strings.Contains(clean, "/admin") || strings.Contains(clean, "/wp-") {
		return "", false
	}
	return clean, true
}
