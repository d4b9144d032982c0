package errors

import (
	stderrors "errors"
	"fmt"
)

// RAGError is the structured error type for minirag.
// It carries enough context for logging, CLI presentation, and
// mapping onto JSON-RPC and MCP error codes.
type RAGError struct {
	// Code is the unique error code (e.g., "ERR_301_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller can retry the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RAGError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RAGError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is(err, &RAGError{Code: ...}) works.
func (e *RAGError) Is(target error) bool {
	if t, ok := target.(*RAGError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RAGError) WithDetail(key, value string) *RAGError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *RAGError) WithSuggestion(suggestion string) *RAGError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RAGError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RAGError {
	return &RAGError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RAGError from an existing error.
func Wrap(code string, err error) *RAGError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigurationError reports an invalid setting. Raised at construction,
// never at request time.
func ConfigurationError(message string, cause error) *RAGError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError reports a failed durable read or write.
func StorageError(message string, cause error) *RAGError {
	return New(ErrCodeStorageWrite, message, cause)
}

// NotFoundError reports a missing document.
func NotFoundError(id string) *RAGError {
	return New(ErrCodeDocumentNotFound, fmt.Sprintf("document not found: %s", id), nil).
		WithDetail("document_id", id)
}

// ValidationError reports rejected input.
func ValidationError(message string, cause error) *RAGError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError reports a broken invariant.
func InternalError(message string, cause error) *RAGError {
	return New(ErrCodeInternal, message, cause)
}

// IsNotFound reports whether err is a not-found error anywhere in its chain.
func IsNotFound(err error) bool {
	return GetCategory(err) == CategoryNotFound
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool {
	return GetCategory(err) == CategoryStorage
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return GetCategory(err) == CategoryConfig
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// As finds the first RAGError in err's chain.
func As(err error) (*RAGError, bool) {
	if err == nil {
		return nil, false
	}
	var ae *RAGError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// GetCode extracts the error code, or "" when err is not a RAGError.
func GetCode(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err is not a RAGError.
func GetCategory(err error) Category {
	if ae, ok := As(err); ok {
		return ae.Category
	}
	return ""
}
