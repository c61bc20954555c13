package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeEmbeddingFailed  = "EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "SEARCH_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidMessage     = NewDomainError(ErrCodeValidation, "message must be a non-empty string")
	ErrInvalidChunkSize   = NewDomainError(ErrCodeValidation, "max chunk size must be at least 1")
	ErrInvalidSearchLimit = NewDomainError(ErrCodeValidation, "search limit must be at least 1")
	ErrContentTooShort    = NewDomainError(ErrCodeValidation, "page content below minimum length")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrEmbedJobNotFound = NewDomainError(ErrCodeNotFound, "embed job not found")
)

// User-facing Dutch messages. Internal error detail is logged server-side
// and never sent to the widget.
const (
	MsgInvalidQuestion = "Geen geldige vraag ontvangen."
	MsgInternalError   = "Sorry, er ging iets mis. Probeer het opnieuw."
)

// Pipeline stage errors. Each external stage fails with its own code so the
// chat pipeline can degrade per stage instead of aborting the whole request.
var (
	ErrEmbeddingFailed  = NewDomainError(ErrCodeEmbeddingFailed, "embedding generation failed")
	ErrSearchFailed     = NewDomainError(ErrCodeSearchFailed, "similarity search failed")
	ErrGenerationFailed = NewDomainError(ErrCodeGenerationFailed, "answer generation failed")
)
