package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/koningschat/koningschat/internal/domain"
)

// MockDocumentReader is a mock implementation of DocumentReaderInterface
type MockDocumentReader struct {
	mock.Mock
}

func (m *MockDocumentReader) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentReader) ListAll(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockChunkWriter is a mock implementation of ChunkWriterInterface
type MockChunkWriter struct {
	mock.Mock
}

func (m *MockChunkWriter) ReplaceChunks(ctx context.Context, contentID int64, chunks []*domain.Chunk) error {
	args := m.Called(ctx, contentID, chunks)
	return args.Error(0)
}

func docFixture(id int64) *domain.Document {
	return &domain.Document{
		ID:    id,
		URL:   "https://www.koningsspelen.nl/ontbijt",
		Title: "Ontbijt",
		Body:  "Eerste zin. Tweede zin. Derde zin.",
	}
}

func TestRebuildDocument_Success(t *testing.T) {
	documents := new(MockDocumentReader)
	chunks := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	svc := NewIndexerService(documents, chunks, embedder, 1000, 0)

	documents.On("GetByID", mock.Anything, int64(10)).Return(docFixture(10), nil)
	embedder.On("GenerateEmbedding", mock.Anything, mock.AnythingOfType("string")).Return(testVector(), nil)
	chunks.On("ReplaceChunks", mock.Anything, int64(10), mock.MatchedBy(func(cs []*domain.Chunk) bool {
		if len(cs) == 0 {
			return false
		}
		for i, c := range cs {
			if c.ChunkIndex != i || c.ContentID != 10 || len(c.Embedding) != domain.EmbeddingDimensions {
				return false
			}
		}
		return true
	})).Return(nil)

	err := svc.RebuildDocument(context.Background(), 10)

	require.NoError(t, err)
	documents.AssertExpectations(t)
	chunks.AssertExpectations(t)
}

func TestRebuildDocument_EmbeddingFailure(t *testing.T) {
	documents := new(MockDocumentReader)
	chunks := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	svc := NewIndexerService(documents, chunks, embedder, 1000, 0)

	documents.On("GetByID", mock.Anything, int64(10)).Return(docFixture(10), nil)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingFailed)

	err := svc.RebuildDocument(context.Background(), 10)

	assert.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	chunks.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestRebuildDocument_UnknownDocument(t *testing.T) {
	documents := new(MockDocumentReader)
	chunks := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	svc := NewIndexerService(documents, chunks, embedder, 1000, 0)

	documents.On("GetByID", mock.Anything, int64(99)).Return(nil, domain.ErrDocumentNotFound)

	err := svc.RebuildDocument(context.Background(), 99)

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestRebuildAll_SkipsFailures(t *testing.T) {
	documents := new(MockDocumentReader)
	chunks := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	svc := NewIndexerService(documents, chunks, embedder, 1000, 0)

	docs := []*domain.Document{docFixture(1), docFixture(2), docFixture(3)}
	documents.On("ListAll", mock.Anything).Return(docs, nil)
	documents.On("GetByID", mock.Anything, int64(1)).Return(docs[0], nil)
	documents.On("GetByID", mock.Anything, int64(2)).Return(nil, errors.New("row gone"))
	documents.On("GetByID", mock.Anything, int64(3)).Return(docs[2], nil)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testVector(), nil)
	chunks.On("ReplaceChunks", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	stats, err := svc.RebuildAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 2, stats.Rebuilt)
	assert.Equal(t, 1, stats.Failed)
}

func TestRebuildAll_ContextCancelAborts(t *testing.T) {
	documents := new(MockDocumentReader)
	chunks := new(MockChunkWriter)
	embedder := new(MockEmbedder)
	svc := NewIndexerService(documents, chunks, embedder, 1000, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	documents.On("ListAll", mock.Anything).Return([]*domain.Document{docFixture(1)}, nil)

	stats, err := svc.RebuildAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Rebuilt)
}
