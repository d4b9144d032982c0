package daemon

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodQuery,
		Params:  QueryParams{Query: "quick fox"},
		ID:      "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "query", decoded["method"])
	assert.Equal(t, "req-1", decoded["id"])
	params := decoded["params"].(map[string]any)
	assert.Equal(t, "quick fox", params["query"])
	assert.NotContains(t, params, "max_results", "omitted values stay absent")
}

func TestResponse_Constructors(t *testing.T) {
	ok := NewSuccessResponse("1", PingResult{Pong: true})
	assert.Equal(t, "2.0", ok.JSONRPC)
	assert.Nil(t, ok.Error)

	bad := NewErrorResponse("2", ErrCodeMethodNotFound, "method not found: nope")
	require.NotNil(t, bad.Error)
	assert.Equal(t, ErrCodeMethodNotFound, bad.Error.Code)
	assert.Nil(t, bad.Result)
}

func TestErrorResponse_MapsCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", raerrors.NotFoundError("doc-1"), ErrCodeNotFound},
		{"validation", raerrors.New(raerrors.ErrCodeUnsupportedType, "bad type", nil), ErrCodeValidation},
		{"storage", raerrors.StorageError("disk full", nil), ErrCodeStorage},
		{"config", raerrors.ConfigurationError("bad overlap", nil), ErrCodeConfig},
		{"internal", raerrors.InternalError("broken", nil), ErrCodeInternalError},
		{"plain error", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ErrorResponse("1", tt.err)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.want, resp.Error.Code)
		})
	}
}

func TestError_ErrRoundTripsStructuredErrors(t *testing.T) {
	// Given: a structured error sent over the wire
	orig := raerrors.NotFoundError("doc-1").WithSuggestion("Run 'minirag list'")
	resp := ErrorResponse("1", orig)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	// When: decoded by a client
	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	got := decoded.Error.Err()

	// Then: the code, category and suggestion survive
	assert.True(t, raerrors.IsNotFound(got))
	assert.Equal(t, orig.Code, raerrors.GetCode(got))
	rerr, ok := raerrors.As(got)
	require.True(t, ok)
	assert.Equal(t, "Run 'minirag list'", rerr.Suggestion)
}

func TestError_ErrPlainError(t *testing.T) {
	e := &Error{Code: ErrCodeParseError, Message: "failed to parse request"}
	err := e.Err()
	assert.Contains(t, err.Error(), "failed to parse request")
	assert.Empty(t, raerrors.GetCode(err))
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  interface{ Validate() error }
		wantErr bool
	}{
		{"upload path", &UploadParams{Path: "/tmp/a.txt"}, false},
		{"upload inline", &UploadParams{Filename: "a.txt", Data: []byte("x")}, false},
		{"upload both", &UploadParams{Path: "/tmp/a.txt", Filename: "a.txt"}, true},
		{"upload neither", &UploadParams{}, true},
		{"query", &QueryParams{Query: "fox"}, false},
		{"query blank", &QueryParams{Query: "  "}, true},
		{"id", &IDParams{ID: "doc-1"}, false},
		{"id blank", &IDParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
