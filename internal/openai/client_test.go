package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	sdk "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/koningschat/koningschat/internal/domain"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateAnswer(ctx context.Context, messages []sdk.ChatCompletionMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockOpenAIAPI) CreateAnswerStream(ctx context.Context, messages []sdk.ChatCompletionMessage) (RecvCloser, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(RecvCloser), args.Error(1)
}

func (m *MockOpenAIAPI) ListModels(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakeStream replays a scripted sequence of fragments and a terminal error.
type fakeStream struct {
	fragments []string
	err       error
	pos       int
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		fragment := s.fragments[s.pos]
		s.pos++
		return fragment, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	text := "De Koningsspelen zijn een jaarlijks sportevenement."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	ctx := context.Background()
	embedding, err := client.GenerateEmbedding(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	apiErr := errors.New("API rate limit exceeded")

	mockAPI.On("CreateEmbeddings", ctx, "Test text").Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(ctx, "Test text")

	assert.Error(t, err)
	assert.Nil(t, embedding)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEmbeddingFailed, domainErr.Code)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "short vector").Return(make([]float32, 3), nil)

	embedding, err := client.GenerateEmbedding(ctx, "short vector")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_GenerateAnswer_WithContext(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateAnswer", ctx, mock.MatchedBy(func(messages []sdk.ChatCompletionMessage) bool {
		if len(messages) != 2 {
			return false
		}
		if messages[0].Role != sdk.ChatMessageRoleSystem {
			return false
		}
		// The user turn must carry the context block when context is non-empty.
		return messages[1].Role == sdk.ChatMessageRoleUser &&
			strings.Contains(messages[1].Content, "Context informatie") &&
			strings.Contains(messages[1].Content, "Vraag: Wanneer zijn de Koningsspelen?")
	})).Return("Op 17 april 2026.", nil)

	answer, err := client.GenerateAnswer(ctx, "Wanneer zijn de Koningsspelen?", "Startpagina: De Koningsspelen zijn op 17 april 2026.")

	require.NoError(t, err)
	assert.Equal(t, "Op 17 april 2026.", answer)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateAnswer_WithoutContext(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateAnswer", ctx, mock.MatchedBy(func(messages []sdk.ChatCompletionMessage) bool {
		// Without context the user turn is just the question.
		return len(messages) == 2 && messages[1].Content == "Vraag: Hallo"
	})).Return("Hallo!", nil)

	answer, err := client.GenerateAnswer(ctx, "Hallo", "")

	require.NoError(t, err)
	assert.Equal(t, "Hallo!", answer)
}

func TestClient_GenerateAnswer_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateAnswer", ctx, mock.Anything).Return("", errors.New("model overloaded"))

	_, err := client.GenerateAnswer(ctx, "Vraag", "")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeGenerationFailed, domainErr.Code)
}

func TestClient_GenerateAnswerStream_FragmentsThenEOF(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	fake := &fakeStream{fragments: []string{"De ", "", "Koningsspelen ", "zijn in april."}}
	mockAPI.On("CreateAnswerStream", ctx, mock.Anything).Return(fake, nil)

	stream, err := client.GenerateAnswerStream(ctx, "Wanneer?", "")
	require.NoError(t, err)
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}

	// Empty deltas are skipped, order is preserved.
	assert.Equal(t, []string{"De ", "Koningsspelen ", "zijn in april."}, fragments)
}

func TestClient_GenerateAnswerStream_MidStreamError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	fake := &fakeStream{fragments: []string{"De "}, err: errors.New("connection reset")}
	mockAPI.On("CreateAnswerStream", ctx, mock.Anything).Return(fake, nil)

	stream, err := client.GenerateAnswerStream(ctx, "Wanneer?", "")
	require.NoError(t, err)
	defer stream.Close()

	fragment, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "De ", fragment)

	_, err = stream.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeGenerationFailed, domainErr.Code)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
}

func TestClient_GenerateEmbedding_BoundsWait(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions, callTimeout: 30 * time.Second}

	var callCtx context.Context
	mockAPI.On("CreateEmbeddings", mock.Anything, "tekst").
		Run(func(args mock.Arguments) {
			callCtx = args.Get(0).(context.Context)
		}).
		Return(make([]float32, DefaultEmbeddingDimensions), nil)

	_, err := client.GenerateEmbedding(context.Background(), "tekst")
	require.NoError(t, err)

	require.NotNil(t, callCtx)
	_, hasDeadline := callCtx.Deadline()
	assert.True(t, hasDeadline, "embedding call should carry a deadline")
}

func TestClient_GenerateAnswer_BoundsWait(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions, callTimeout: 30 * time.Second}

	var callCtx context.Context
	mockAPI.On("CreateAnswer", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			callCtx = args.Get(0).(context.Context)
		}).
		Return("antwoord", nil)

	_, err := client.GenerateAnswer(context.Background(), "vraag", "")
	require.NoError(t, err)

	require.NotNil(t, callCtx)
	_, hasDeadline := callCtx.Deadline()
	assert.True(t, hasDeadline, "answer call should carry a deadline")
}

func TestClient_GenerateAnswerStream_DeadlineHeldUntilClose(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions, callTimeout: 30 * time.Second}

	inner := &fakeStream{fragments: []string{"Het "}}
	var callCtx context.Context
	mockAPI.On("CreateAnswerStream", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			callCtx = args.Get(0).(context.Context)
		}).
		Return(inner, nil)

	stream, err := client.GenerateAnswerStream(context.Background(), "vraag", "")
	require.NoError(t, err)

	require.NotNil(t, callCtx)
	_, hasDeadline := callCtx.Deadline()
	assert.True(t, hasDeadline, "stream open should carry a deadline")
	// The deadline spans the whole stream: it must not fire at open time.
	assert.NoError(t, callCtx.Err())

	require.NoError(t, stream.Close())
	assert.ErrorIs(t, callCtx.Err(), context.Canceled)
	assert.True(t, inner.closed)
}

func TestClient_ZeroTimeoutLeavesContextUnbounded(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	var callCtx context.Context
	mockAPI.On("CreateEmbeddings", mock.Anything, "tekst").
		Run(func(args mock.Arguments) {
			callCtx = args.Get(0).(context.Context)
		}).
		Return(make([]float32, DefaultEmbeddingDimensions), nil)

	_, err := client.GenerateEmbedding(context.Background(), "tekst")
	require.NoError(t, err)

	require.NotNil(t, callCtx)
	_, hasDeadline := callCtx.Deadline()
	assert.False(t, hasDeadline)
}

func TestNewClientWithConfig_CallTimeout(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key", CallTimeout: 30 * time.Second})
	assert.Equal(t, 30*time.Second, client.callTimeout)
}
