// Package mcp implements the Model Context Protocol (MCP) server for minirag.
package mcp

import (
	"context"
	"errors"
	"fmt"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Custom MCP error codes for minirag.
const (
	// ErrCodeDocumentNotFound indicates an unknown document id.
	ErrCodeDocumentNotFound = -32001

	// ErrCodeRejected indicates an upload or query failed validation.
	ErrCodeRejected = -32002

	// ErrCodeStorage indicates the document store could not be read or written.
	ErrCodeStorage = -32003

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
// Returned from a tool handler it becomes a tool result with IsError set.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if rerr, ok := raerrors.As(err); ok {
		return mapRAGError(rerr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: "Tool not found.",
		}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: "Invalid parameters.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapRAGError converts a structured engine error, keeping its message and
// suggestion.
func mapRAGError(re *raerrors.RAGError) *MCPError {
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Category {
	case raerrors.CategoryNotFound:
		if re.Code == raerrors.ErrCodeFileNotFound {
			return &MCPError{Code: ErrCodeInvalidParams, Message: message}
		}
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
	case raerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeRejected, Message: message}
	case raerrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	default: // config, internal
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
