package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/koningschat/koningschat/internal/api"
	"github.com/koningschat/koningschat/internal/domain"
	"github.com/koningschat/koningschat/internal/service"
)

type ChatService interface {
	Answer(ctx context.Context, message string) (*service.ChatAnswer, error)
	AnswerStream(ctx context.Context, message string, emit func(service.ChatEvent) error) error
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message string `json:"message"`
}

// decodeMessage parses the request body and validates the question before
// anything external is called. A missing, non-string or blank message is
// rejected here.
func decodeMessage(r *http.Request) (string, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", false
	}
	return req.Message, true
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	message, ok := decodeMessage(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, domain.MsgInvalidQuestion)
		return
	}

	answer, err := h.svc.Answer(r.Context(), message)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if answer.Sources == nil {
		answer.Sources = []domain.Source{}
	}
	api.JSON(w, http.StatusOK, answer)
}

// ChatStream handles POST /api/chat/stream with server-sent events. Each
// frame is one `data: {json}` line followed by a blank line; the stream
// carries a sources event, chunk events and exactly one terminal end or
// error event.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	message, ok := decodeMessage(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, domain.MsgInvalidQuestion)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, domain.MsgInternalError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	terminalSent := false
	emit := func(ev service.ChatEvent) error {
		if ev.Type == service.EventEnd || ev.Type == service.EventError {
			terminalSent = true
		}
		return writeEvent(w, flusher, ev)
	}

	err := h.svc.AnswerStream(r.Context(), message, emit)
	if err == nil || terminalSent {
		return
	}
	if r.Context().Err() != nil {
		// Client is gone, nothing left to write to.
		return
	}

	log.Printf("api: chat stream failed: %v", err)
	if errors.Is(err, domain.ErrInvalidMessage) {
		_ = writeEvent(w, flusher, service.ChatEvent{Type: service.EventError, Error: domain.MsgInvalidQuestion})
		return
	}
	_ = writeEvent(w, flusher, service.ChatEvent{Type: service.EventError, Error: domain.MsgInternalError})
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev service.ChatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
