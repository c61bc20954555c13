package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/koningschat/koningschat/internal/api/handlers"
	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/service"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Answer(ctx context.Context, message string) (*service.ChatAnswer, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatAnswer), args.Error(1)
}

func (m *MockChatService) AnswerStream(ctx context.Context, message string, emit func(service.ChatEvent) error) error {
	args := m.Called(ctx, message, emit)
	if fn, ok := args.Get(0).(func(func(service.ChatEvent) error) error); ok {
		return fn(emit)
	}
	return args.Error(0)
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter(svc *MockChatService) http.Handler {
	return NewRouter(RouterConfig{
		ChatHandler:    handlers.NewChatHandler(svc),
		HealthHandler:  handlers.NewHealthHandler(&stubPinger{}, &stubPinger{}),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockChatService))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var result handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "OK", result.Status)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Chat(t *testing.T) {
	svc := new(MockChatService)
	svc.On("Answer", mock.Anything, "vraag").Return(&service.ChatAnswer{
		Response:  "antwoord",
		Sources:   []domain.Source{},
		Timestamp: time.Now().UTC(),
	}, nil)
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"vraag"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "antwoord")
}

func TestRouter_ChatStream(t *testing.T) {
	svc := new(MockChatService)
	svc.On("AnswerStream", mock.Anything, "vraag", mock.Anything).
		Return(func(emit func(service.ChatEvent) error) error {
			if err := emit(service.ChatEvent{Type: service.EventSources, Sources: &[]domain.Source{}}); err != nil {
				return err
			}
			return emit(service.ChatEvent{Type: service.EventEnd})
		})
	router := newTestRouter(svc)

	r := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message":"vraag"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"type":"sources"`)
	assert.Contains(t, w.Body.String(), `"type":"end"`)
}

func TestRouter_CORSHeaders(t *testing.T) {
	router := newTestRouter(new(MockChatService))

	r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockChatService))

	r := httptest.NewRequest(http.MethodGet, "/api/onbekend", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
