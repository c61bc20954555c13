package domain

import (
	"fmt"
	"time"
)

// EmbeddingDimensions is the vector size produced by the embedding model.
const EmbeddingDimensions = 1536

// Chunk represents a bounded segment of a document's text with its
// embedding vector. Chunks are immutable once written: regeneration
// replaces the full set for a document.
type Chunk struct {
	ID         int64
	ContentID  int64
	ChunkIndex int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// SearchMatch is one ranked result of a similarity search: a chunk joined
// with its parent document's title and URL. Smaller distance means more
// similar.
type SearchMatch struct {
	ChunkID    int64
	ContentID  int64
	ChunkIndex int
	Text       string
	Title      string
	URL        string
	Distance   float64
}

// Source identifies a cited document in a chat answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ValidateChunks checks that a chunk set for a single document is complete:
// ordinals are contiguous from zero, texts are non-empty and every vector
// has the model dimension.
func ValidateChunks(contentID int64, chunks []*Chunk) error {
	for i, c := range chunks {
		if c.ContentID != contentID {
			return fmt.Errorf("chunk %d belongs to document %d, expected %d", i, c.ContentID, contentID)
		}
		if c.ChunkIndex != i {
			return fmt.Errorf("chunk ordinal %d at position %d, ordinals must be contiguous from zero", c.ChunkIndex, i)
		}
		if c.Text == "" {
			return fmt.Errorf("chunk %d has empty text", i)
		}
		if len(c.Embedding) != EmbeddingDimensions {
			return fmt.Errorf("chunk %d embedding has %d dimensions, expected %d", i, len(c.Embedding), EmbeddingDimensions)
		}
	}
	return nil
}
