package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/telemetry"
)

// DocumentReaderInterface defines the repository reads the indexer needs
type DocumentReaderInterface interface {
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	ListAll(ctx context.Context) ([]*domain.Document, error)
}

// ChunkWriterInterface defines the repository write used to swap a
// document's chunks atomically
type ChunkWriterInterface interface {
	ReplaceChunks(ctx context.Context, contentID int64, chunks []*domain.Chunk) error
}

// IndexerService regenerates a document's chunks and embeddings.
type IndexerService struct {
	documents    DocumentReaderInterface
	chunks       ChunkWriterInterface
	embedder     EmbedderInterface
	maxChunkSize int
	limiter      *rate.Limiter
}

// NewIndexerService creates a new IndexerService instance. embedRateLimit
// caps embedding calls per second across documents; zero disables limiting.
func NewIndexerService(
	documents DocumentReaderInterface,
	chunks ChunkWriterInterface,
	embedder EmbedderInterface,
	maxChunkSize int,
	embedRateLimit float64,
) *IndexerService {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if embedRateLimit > 0 {
		burst := int(embedRateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(embedRateLimit), burst)
	}
	return &IndexerService{
		documents:    documents,
		chunks:       chunks,
		embedder:     embedder,
		maxChunkSize: maxChunkSize,
		limiter:      limiter,
	}
}

// RebuildDocument re-chunks and re-embeds one document and replaces its
// stored chunks in a single transaction.
func (s *IndexerService) RebuildDocument(ctx context.Context, contentID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.RebuildDocument", telemetry.SpanAttributes{
		ContentID: contentID,
		Operation: "rebuild_document",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, contentID)
	if err != nil {
		return err
	}

	pieces := ChunkText(doc.EmbeddingText(), s.maxChunkSize)

	chunks := make([]*domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		embedding, err := s.embedder.GenerateEmbedding(ctx, piece)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("embed chunk %d of content %d: %w", i, contentID, err)
		}

		chunks = append(chunks, &domain.Chunk{
			ContentID:  contentID,
			ChunkIndex: i,
			Text:       piece,
			Embedding:  embedding,
			CreatedAt:  time.Now().UTC(),
		})
	}

	if err := s.chunks.ReplaceChunks(ctx, contentID, chunks); err != nil {
		span.SetError(err)
		return err
	}

	log.Printf("indexer: rebuilt content %d (%s) into %d chunks", contentID, doc.URL, len(chunks))
	return nil
}

// RebuildStats summarizes a full regeneration run.
type RebuildStats struct {
	Documents int
	Rebuilt   int
	Failed    int
}

// RebuildAll regenerates chunks for every stored document. Per-document
// failures are logged and skipped so one bad page cannot abort the run;
// ctx cancellation does abort it.
func (s *IndexerService) RebuildAll(ctx context.Context) (*RebuildStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.RebuildAll", telemetry.SpanAttributes{
		Operation: "rebuild_all",
	})
	defer span.End()

	docs, err := s.documents.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RebuildStats{Documents: len(docs)}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		if err := s.RebuildDocument(ctx, doc.ID); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			log.Printf("indexer: rebuild of content %d (%s) failed: %v", doc.ID, doc.URL, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		stats.Rebuilt++
	}

	return stats, nil
}
