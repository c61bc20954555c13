package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/telemetry"
)

// RetrieverInterface defines the retrieval half of the chat pipeline
type RetrieverInterface interface {
	Retrieve(ctx context.Context, query string) (*RetrievalResult, error)
}

// AnswerStreamInterface is a stream of answer fragments ending in io.EOF
type AnswerStreamInterface interface {
	Next() (string, error)
	Close() error
}

// AnswerGeneratorInterface defines the chat completion client
type AnswerGeneratorInterface interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)
	GenerateAnswerStream(ctx context.Context, question, contextText string) (AnswerStreamInterface, error)
}

// ChatAnswer is a complete non-streamed chat reply.
type ChatAnswer struct {
	Response  string          `json:"response"`
	Sources   []domain.Source `json:"sources"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event types pushed over the streaming endpoint, in order: one sources
// event, zero or more chunk events, exactly one end or error event.
const (
	EventSources = "sources"
	EventChunk   = "chunk"
	EventEnd     = "end"
	EventError   = "error"
)

// ChatEvent is a single frame of a streamed chat reply. Sources is a
// pointer so the sources event serializes an empty list as [] while
// chunk and terminal events omit the key entirely.
type ChatEvent struct {
	Type    string           `json:"type"`
	Sources *[]domain.Source `json:"sources,omitempty"`
	Content string           `json:"content,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ChatService answers user questions grounded on retrieved site content.
type ChatService struct {
	retriever RetrieverInterface
	generator AnswerGeneratorInterface
	now       func() time.Time
}

// NewChatService creates a new ChatService instance
func NewChatService(retriever RetrieverInterface, generator AnswerGeneratorInterface) *ChatService {
	return &ChatService{
		retriever: retriever,
		generator: generator,
		now:       time.Now,
	}
}

// Answer retrieves context for message and generates a complete reply.
func (s *ChatService) Answer(ctx context.Context, message string) (*ChatAnswer, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrInvalidMessage
	}

	retrieved, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		return nil, err
	}

	response, err := s.generator.GenerateAnswer(ctx, message, retrieved.Context)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &ChatAnswer{
		Response:  response,
		Sources:   retrieved.Sources,
		Timestamp: s.now().UTC(),
	}, nil
}

// AnswerStream retrieves context for message and pushes the reply through
// emit as a sources event, chunk events and a single terminal event.
// Emission stops when ctx is cancelled or emit returns an error; the
// terminal event is end on normal completion and error on generation
// failure after streaming started.
func (s *ChatService) AnswerStream(ctx context.Context, message string, emit func(ChatEvent) error) error {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.AnswerStream", telemetry.SpanAttributes{
		Operation: "answer_stream",
	})
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return domain.ErrInvalidMessage
	}

	retrieved, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		return err
	}

	stream, err := s.generator.GenerateAnswerStream(ctx, message, retrieved.Context)
	if err != nil {
		span.SetError(err)
		return err
	}
	defer stream.Close()

	sources := retrieved.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	if err := emit(ChatEvent{Type: EventSources, Sources: &sources}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fragment, err := stream.Next()
		if err == io.EOF {
			return emit(ChatEvent{Type: EventEnd})
		}
		if err != nil {
			span.SetError(err)
			if emitErr := emit(ChatEvent{Type: EventError, Error: domain.MsgInternalError}); emitErr != nil {
				return emitErr
			}
			return err
		}

		if err := emit(ChatEvent{Type: EventChunk, Content: fragment}); err != nil {
			return err
		}
	}
}
