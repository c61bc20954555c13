package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/telemetry"
)

// DefaultSearchLimit is how many chunks a question is grounded on.
const DefaultSearchLimit = 3

// EmbedderInterface defines the embedding client used for query vectors
type EmbedderInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcherInterface defines the vector search half of the chunk repository
type ChunkSearcherInterface interface {
	SearchNearest(ctx context.Context, embedding []float32, limit int) ([]domain.SearchMatch, error)
}

// RetrievalResult carries the context block handed to the model and the
// page sources it was built from, in rank order.
type RetrievalResult struct {
	Context string
	Sources []domain.Source
	Matches []domain.SearchMatch
}

// RetrievalService turns a user question into grounding context via
// embedding and nearest-neighbour search.
type RetrievalService struct {
	embedder EmbedderInterface
	searcher ChunkSearcherInterface
	limit    int
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder EmbedderInterface, searcher ChunkSearcherInterface, limit int) *RetrievalService {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &RetrievalService{
		embedder: embedder,
		searcher: searcher,
		limit:    limit,
	}
}

// Retrieve embeds query, searches the chunk index and assembles the context
// block. Retrieval problems degrade to an empty result so answering can
// continue ungrounded; they are logged and reported, never returned.
func (s *RetrievalService) Retrieve(ctx context.Context, query string) (*RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidMessage
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("retrieval: query embedding failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return &RetrievalResult{}, nil
	}

	matches, err := s.searcher.SearchNearest(ctx, embedding, s.limit)
	if err != nil {
		log.Printf("retrieval: vector search failed: %v", err)
		telemetry.CaptureError(ctx, err)
		return &RetrievalResult{}, nil
	}

	return buildResult(matches), nil
}

// buildResult formats matches into the model context block and dedupes the
// page sources by URL, keeping first-seen rank order.
func buildResult(matches []domain.SearchMatch) *RetrievalResult {
	blocks := make([]string, 0, len(matches))
	sources := make([]domain.Source, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf("%s: %s", m.Title, m.Text))

		if _, ok := seen[m.URL]; ok {
			continue
		}
		seen[m.URL] = struct{}{}
		sources = append(sources, domain.Source{
			Title: m.Title,
			URL:   m.URL,
		})
	}

	return &RetrievalResult{
		Context: strings.Join(blocks, "\n\n"),
		Sources: sources,
		Matches: matches,
	}
}
