package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/koningschat/koningschat/internal/domain"
)

// MockRetriever is a mock implementation of RetrieverInterface
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string) (*RetrievalResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RetrievalResult), args.Error(1)
}

// MockAnswerGenerator is a mock implementation of AnswerGeneratorInterface
type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	args := m.Called(ctx, question, contextText)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerGenerator) GenerateAnswerStream(ctx context.Context, question, contextText string) (AnswerStreamInterface, error) {
	args := m.Called(ctx, question, contextText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(AnswerStreamInterface), args.Error(1)
}

// stubStream replays fragments and then a terminal error.
type stubStream struct {
	fragments []string
	terminal  error
	pos       int
	closed    bool
}

func (s *stubStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", s.terminal
	}
	fragment := s.fragments[s.pos]
	s.pos++
	return fragment, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

func retrievedFixture() *RetrievalResult {
	return &RetrievalResult{
		Context: "Ontbijt: Het Koningsontbijt start de dag.",
		Sources: []domain.Source{
			{Title: "Ontbijt", URL: "https://www.koningsspelen.nl/ontbijt"},
		},
	}
}

func TestAnswer_Success(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	fixed := time.Date(2026, 4, 24, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	retriever.On("Retrieve", mock.Anything, "Wat is het ontbijt?").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswer", mock.Anything, "Wat is het ontbijt?", "Ontbijt: Het Koningsontbijt start de dag.").
		Return("Het Koningsontbijt opent de Koningsspelen.", nil)

	answer, err := svc.Answer(context.Background(), "Wat is het ontbijt?")

	require.NoError(t, err)
	assert.Equal(t, "Het Koningsontbijt opent de Koningsspelen.", answer.Response)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "https://www.koningsspelen.nl/ontbijt", answer.Sources[0].URL)
	assert.Equal(t, fixed, answer.Timestamp)
}

func TestAnswer_EmptyMessage(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	_, err := svc.Answer(context.Background(), "  ")

	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
}

func TestAnswer_GenerationFailure(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	retriever.On("Retrieve", mock.Anything, "vraag").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswer", mock.Anything, "vraag", mock.Anything).
		Return("", domain.ErrGenerationFailed)

	_, err := svc.Answer(context.Background(), "vraag")

	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestAnswerStream_EventOrder(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	stream := &stubStream{fragments: []string{"Het ", "ontbijt ", "hoort erbij."}, terminal: io.EOF}
	retriever.On("Retrieve", mock.Anything, "vraag").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswerStream", mock.Anything, "vraag", mock.Anything).Return(stream, nil)

	var events []ChatEvent
	err := svc.AnswerStream(context.Background(), "vraag", func(ev ChatEvent) error {
		events = append(events, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, EventSources, events[0].Type)
	require.NotNil(t, events[0].Sources)
	require.Len(t, *events[0].Sources, 1)
	assert.Equal(t, EventChunk, events[1].Type)
	assert.Equal(t, "Het ", events[1].Content)
	assert.Equal(t, EventChunk, events[2].Type)
	assert.Equal(t, EventChunk, events[3].Type)
	assert.Equal(t, EventEnd, events[4].Type)
	assert.True(t, stream.closed)
}

func TestAnswerStream_EmptySourcesStillEmitted(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	stream := &stubStream{terminal: io.EOF}
	retriever.On("Retrieve", mock.Anything, "vraag").Return(&RetrievalResult{}, nil)
	generator.On("GenerateAnswerStream", mock.Anything, "vraag", "").Return(stream, nil)

	var events []ChatEvent
	err := svc.AnswerStream(context.Background(), "vraag", func(ev ChatEvent) error {
		events = append(events, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventSources, events[0].Type)
	require.NotNil(t, events[0].Sources)
	assert.Empty(t, *events[0].Sources)
	assert.Equal(t, EventEnd, events[1].Type)
}

func TestAnswerStream_MidStreamError(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	stream := &stubStream{fragments: []string{"Het "}, terminal: domain.ErrGenerationFailed}
	retriever.On("Retrieve", mock.Anything, "vraag").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswerStream", mock.Anything, "vraag", mock.Anything).Return(stream, nil)

	var events []ChatEvent
	err := svc.AnswerStream(context.Background(), "vraag", func(ev ChatEvent) error {
		events = append(events, ev)
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	require.Len(t, events, 3)
	assert.Equal(t, EventSources, events[0].Type)
	assert.Equal(t, EventChunk, events[1].Type)
	assert.Equal(t, EventError, events[2].Type)
	assert.Equal(t, domain.MsgInternalError, events[2].Error)
}

func TestAnswerStream_StopsOnContextCancel(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &stubStream{fragments: []string{"a", "b", "c"}, terminal: io.EOF}
	retriever.On("Retrieve", mock.Anything, "vraag").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswerStream", mock.Anything, "vraag", mock.Anything).Return(stream, nil)

	var events []ChatEvent
	err := svc.AnswerStream(ctx, "vraag", func(ev ChatEvent) error {
		events = append(events, ev)
		if ev.Type == EventChunk {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	// No terminal frame after the client is gone.
	for _, ev := range events {
		assert.NotEqual(t, EventEnd, ev.Type)
	}
}

func TestAnswerStream_EmitFailureStops(t *testing.T) {
	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	svc := NewChatService(retriever, generator)

	stream := &stubStream{fragments: []string{"a", "b"}, terminal: io.EOF}
	retriever.On("Retrieve", mock.Anything, "vraag").Return(retrievedFixture(), nil)
	generator.On("GenerateAnswerStream", mock.Anything, "vraag", mock.Anything).Return(stream, nil)

	count := 0
	err := svc.AnswerStream(context.Background(), "vraag", func(ev ChatEvent) error {
		count++
		if count == 2 {
			return io.ErrClosedPipe
		}
		return nil
	})

	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, 2, count)
}
