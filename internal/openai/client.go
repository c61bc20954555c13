package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/koningschat/koningschat/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultChatModel is the OpenAI model used for generating answers
	DefaultChatModel = openai.GPT4
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536

	answerTemperature = 0.3
	answerMaxTokens   = 500
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// systemPrompt pins the assistant to the Koningsspelen domain, in Dutch,
// preferring retrieved context over the model's own knowledge.
const systemPrompt = `Je bent een behulpzame assistent voor de Koningsspelen website.
Je beantwoordt alleen vragen over de Koningsspelen in het Nederlands.

Als je relevante informatie hebt gekregen in de context, gebruik die om een accuraat antwoord te geven.
Geef altijd de voorkeur aan informatie uit de context boven je algemene kennis.
Als de vraag niet over de Koningsspelen gaat, zeg dan vriendelijk dat je alleen vragen over de Koningsspelen kunt beantwoorden.

Houd je antwoorden kort en informatief.`

// API defines the OpenAI operations the client depends on
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateAnswer(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
	CreateAnswerStream(ctx context.Context, messages []openai.ChatCompletionMessage) (RecvCloser, error)
	ListModels(ctx context.Context) error
}

// RecvCloser is a minimal streaming-response surface: Recv returns the next
// text fragment or io.EOF on normal completion.
type RecvCloser interface {
	Recv() (string, error)
	Close() error
}

// Client wraps the OpenAI API for embeddings and chat answers
type Client struct {
	api         API
	dimensions  int
	callTimeout time.Duration
}

// boundCtx derives a deadline-bearing context so a stalled API call fails
// instead of hanging for as long as the caller stays connected.
func (c *Client) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(apiKey string, embeddingModel openai.EmbeddingModel, chatModel string) *OpenAIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &OpenAIAdapter{
		client:         openai.NewClient(apiKey),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateAnswer calls the chat completions API and returns the full answer
func (a *OpenAIAdapter) CreateAnswer(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

type answerStream struct {
	stream *openai.ChatCompletionStream
}

func (s *answerStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *answerStream) Close() error {
	return s.stream.Close()
}

// CreateAnswerStream opens a streaming chat completion
func (a *OpenAIAdapter) CreateAnswerStream(ctx context.Context, messages []openai.ChatCompletionMessage) (RecvCloser, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	return &answerStream{stream: stream}, nil
}

// ListModels checks API reachability
func (a *OpenAIAdapter) ListModels(ctx context.Context) error {
	_, err := a.client.ListModels(ctx)
	return err
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	ChatModel           string
	EmbeddingDimensions int
	// CallTimeout bounds each API call, streaming answers included. Zero
	// disables the bound.
	CallTimeout time.Duration
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:         NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel),
		dimensions:  dimensions,
		callTimeout: cfg.CallTimeout,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text. Document
// chunks and user queries go through the same call so both live in the
// same metric space.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := c.boundCtx(ctx)
	defer cancel()

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailed, "failed to create embedding", err)
	}

	if len(embedding) != c.dimensions {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingFailed, "malformed embedding", ErrWrongDimensions)
	}

	return embedding, nil
}

// GenerateAnswer produces a full answer for a question, grounded on the
// given context when non-empty.
func (c *Client) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	if question == "" {
		return "", ErrEmptyText
	}

	ctx, cancel := c.boundCtx(ctx)
	defer cancel()

	answer, err := c.api.CreateAnswer(ctx, buildMessages(question, contextText))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "failed to generate answer", err)
	}
	return answer, nil
}

// AnswerStream yields answer fragments in emission order. Next returns
// io.EOF on normal completion; any other error means the stream failed
// mid-way and no further fragments will arrive. The call timeout covers
// the whole stream, so a stalled completion eventually fails.
type AnswerStream struct {
	inner  RecvCloser
	cancel context.CancelFunc
}

// Next returns the next non-empty fragment, io.EOF on completion, or a
// wrapped generation error on failure.
func (s *AnswerStream) Next() (string, error) {
	for {
		fragment, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "answer stream failed", err)
		}
		if fragment != "" {
			return fragment, nil
		}
	}
}

// Close releases the underlying stream and its deadline.
func (s *AnswerStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.inner.Close()
}

// GenerateAnswerStream opens a streaming answer for a question with the
// same prompt construction as GenerateAnswer.
func (c *Client) GenerateAnswerStream(ctx context.Context, question, contextText string) (*AnswerStream, error) {
	if question == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := c.boundCtx(ctx)

	stream, err := c.api.CreateAnswerStream(ctx, buildMessages(question, contextText))
	if err != nil {
		cancel()
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed, "failed to open answer stream", err)
	}
	return &AnswerStream{inner: stream, cancel: cancel}, nil
}

// Ping checks that the OpenAI API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.boundCtx(ctx)
	defer cancel()
	return c.api.ListModels(ctx)
}

func buildMessages(question, contextText string) []openai.ChatCompletionMessage {
	userPrompt := fmt.Sprintf("Vraag: %s", question)
	if contextText != "" {
		userPrompt = fmt.Sprintf(`Context informatie van de Koningsspelen website:
%s

Vraag: %s

Beantwoord de vraag op basis van de context informatie hierboven.`, contextText, question)
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}
}
