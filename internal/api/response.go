package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/koningschat/koningschat/internal/domain"
)

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeEmbeddingFailed, domain.ErrCodeSearchFailed, domain.ErrCodeGenerationFailed:
		return http.StatusInternalServerError
	case domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an error response for err. Server-side failures are
// logged in full and answered with the generic Dutch apology; the internal
// detail never reaches the widget.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	if status >= http.StatusInternalServerError {
		log.Printf("api: request failed: %v", err)
		Error(w, status, domain.MsgInternalError)
		return
	}

	if errors.Is(err, domain.ErrInvalidMessage) {
		Error(w, status, domain.MsgInvalidQuestion)
		return
	}

	Error(w, status, err.Error())
}
