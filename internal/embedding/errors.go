package embedding

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by embedding clients.
var (
	ErrEmptyText     = errors.New("input text cannot be empty")
	ErrRateLimited   = errors.New("too many requests, rate limit exceeded")
	ErrBatchTooLarge = errors.New("batch size exceeds configured maximum")
)

// EmbeddingError carries a provider error code and message.
type EmbeddingError struct {
	Code    int
	Message string
}

func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeInvalidAPIKey  = 1001
	ErrCodeInvalidRequest = 1002
	ErrCodeNetworkError   = 1003
	ErrCodeRateLimited    = 1004
	ErrCodeServerError    = 1005
	ErrCodeTimeout        = 1006
	ErrCodeEmptyInput     = 1007
)

// NewEmbeddingError creates a new embedding error.
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}
