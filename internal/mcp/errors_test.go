package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"document not found", raerrors.NotFoundError("doc-1"), ErrCodeDocumentNotFound, "doc-1"},
		{"file not found", raerrors.New(raerrors.ErrCodeFileNotFound, "file not found", nil), ErrCodeInvalidParams, "file not found"},
		{"unsupported type", raerrors.New(raerrors.ErrCodeUnsupportedType, `file type "exe" is not supported`, nil), ErrCodeRejected, "exe"},
		{"storage", raerrors.StorageError("disk full", nil), ErrCodeStorage, "disk full"},
		{"config", raerrors.ConfigurationError("bad overlap", nil), ErrCodeInternalError, "bad overlap"},
		{"wrapped engine error", fmt.Errorf("outer: %w", raerrors.NotFoundError("x")), ErrCodeDocumentNotFound, "x"},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, "timed out"},
		{"canceled", context.Canceled, ErrCodeTimeout, "canceled"},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound, "Tool not found"},
		{"plain error", errors.New("boom"), ErrCodeInternalError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Contains(t, got.Message, tt.wantMsg)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPErrors(t *testing.T) {
	orig := NewInvalidParamsError("query is required")
	assert.Same(t, orig, MapError(orig))
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	err := raerrors.NotFoundError("doc-1").WithSuggestion("Call list_documents for valid ids.")
	got := MapError(err)
	assert.Equal(t, "document not found: doc-1 Call list_documents for valid ids.", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("explode")
	assert.Equal(t, "MCP error -32601: Tool 'explode' not found.", err.Error())
}
