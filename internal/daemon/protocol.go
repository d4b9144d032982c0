package daemon

import (
	"fmt"
	"strings"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/ingest"
	"github.com/Aman-CERP/minirag/internal/search"
	"github.com/Aman-CERP/minirag/internal/stats"
	"github.com/Aman-CERP/minirag/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing    = "ping"
	MethodStatus  = "status"
	MethodUpload  = "upload"
	MethodQuery   = "query"
	MethodList    = "list"
	MethodGet     = "get"
	MethodDelete  = "delete"
	MethodStats   = "stats"
	MethodRebuild = "rebuild"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Application error codes, one per error category.
const (
	ErrCodeNotFound   = -32001
	ErrCodeValidation = -32002
	ErrCodeStorage    = -32003
	ErrCodeConfig     = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the structured error
// so clients can rebuild it.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData is the structured part of an application error.
type ErrorData struct {
	Code       string            `json:"code"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// ErrorResponse maps err onto a JSON-RPC error by category.
func ErrorResponse(id string, err error) Response {
	rerr, ok := raerrors.As(err)
	if !ok {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}

	code := ErrCodeInternalError
	switch rerr.Category {
	case raerrors.CategoryNotFound:
		code = ErrCodeNotFound
	case raerrors.CategoryValidation:
		code = ErrCodeValidation
	case raerrors.CategoryStorage:
		code = ErrCodeStorage
	case raerrors.CategoryConfig:
		code = ErrCodeConfig
	}

	resp := NewErrorResponse(id, code, rerr.Message)
	resp.Error.Data = &ErrorData{
		Code:       rerr.Code,
		Details:    rerr.Details,
		Suggestion: rerr.Suggestion,
	}
	return resp
}

// Err converts a response error back into a Go error. Application errors
// come back as structured errors with their original code.
func (e *Error) Err() error {
	if e.Data != nil && e.Data.Code != "" {
		rerr := raerrors.New(e.Data.Code, e.Message, nil)
		for k, v := range e.Data.Details {
			rerr = rerr.WithDetail(k, v)
		}
		if e.Data.Suggestion != "" {
			rerr = rerr.WithSuggestion(e.Data.Suggestion)
		}
		return rerr
	}
	return fmt.Errorf("daemon error %d: %s", e.Code, e.Message)
}

// UploadParams are the parameters for the upload method. Either Path names
// a file readable by the daemon, or Filename and Data carry the upload.
type UploadParams struct {
	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Validate checks that exactly one upload form is used.
func (p *UploadParams) Validate() error {
	if p.Path != "" && (p.Filename != "" || len(p.Data) > 0) {
		return fmt.Errorf("path and filename/data are mutually exclusive")
	}
	if p.Path == "" && strings.TrimSpace(p.Filename) == "" {
		return fmt.Errorf("path or filename is required")
	}
	return nil
}

// QueryParams are the parameters for the query method. Omitted values take
// the daemon's configured defaults.
type QueryParams struct {
	Query               string   `json:"query"`
	MaxResults          *int     `json:"max_results,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// Validate checks that required fields are present.
func (p *QueryParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

// IDParams are the parameters for get and delete.
type IDParams struct {
	ID string `json:"id"`
}

// Validate checks that required fields are present.
func (p *IDParams) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// UploadResult is returned by upload.
type UploadResult = ingest.Result

// QueryResult is returned by query.
type QueryResult = search.QueryResult

// StatsResult is returned by stats.
type StatsResult = stats.Stats

// ListResult is returned by list.
type ListResult struct {
	Documents []store.Summary `json:"documents"`
}

// DocumentResult is returned by get. Chunk text is omitted.
type DocumentResult struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	UploadTime  string         `json:"upload_time"`
	Metadata    store.Metadata `json:"metadata"`
	ContentText string         `json:"content"`
}

// DeleteResult is returned by delete.
type DeleteResult struct {
	ID            string `json:"id"`
	ChunksRemoved int    `json:"chunks_removed"`
	Message       string `json:"message"`
}

// RebuildResult is returned by rebuild.
type RebuildResult struct {
	Chunks   int    `json:"chunks"`
	Keywords int    `json:"keywords"`
	Duration string `json:"duration"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running   bool   `json:"running"`
	PID       int    `json:"pid"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
	DataDir   string `json:"data_dir"`
	Backend   string `json:"backend"`
	Documents int    `json:"documents"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
