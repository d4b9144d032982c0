package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/minirag/internal/engine"
	"github.com/Aman-CERP/minirag/internal/ingest"
	"github.com/Aman-CERP/minirag/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "minirag"

// Server is the MCP server for minirag.
// It exposes document upload, retrieval and management to AI clients.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server over an open engine.
func NewServer(e *engine.Engine) (*Server, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{
		engine: e,
		logger: e.Logger(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

// CallTool invokes a tool by name and returns its markdown rendering.
// args use the same JSON shape as the MCP tool input.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolUpload:
		var in UploadInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.upload(ctx, in)
		if err != nil {
			return "", MapError(err)
		}
		return out.Message, nil

	case ToolQuery:
		var in QueryInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.query(ctx, in)
		if err != nil {
			return "", MapError(err)
		}
		return FormatQueryResults(out), nil

	case ToolList:
		return FormatDocumentList(s.list()), nil

	case ToolGet:
		var in IDInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.get(in)
		if err != nil {
			return "", MapError(err)
		}
		return FormatDocument(out), nil

	case ToolDelete:
		var in IDInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.delete(ctx, in)
		if err != nil {
			return "", MapError(err)
		}
		return out.Message, nil

	case ToolStats:
		return FormatStats(s.stats(ctx)), nil

	default:
		return "", NewMethodNotFoundError(name)
	}
}

// decodeArgs converts loosely typed arguments into a tool input struct.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("cannot encode arguments: %v", err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// upload stores a file from disk or inline text content.
func (s *Server) upload(ctx context.Context, in UploadInput) (UploadOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	var (
		res *ingest.Result
		err error
	)
	switch {
	case in.Path != "" && (in.Filename != "" || in.Content != ""):
		return UploadOutput{}, NewInvalidParamsError("path and filename/content are mutually exclusive")
	case in.Path != "":
		res, err = s.engine.Ingester.UploadFile(ctx, in.Path)
	case strings.TrimSpace(in.Filename) != "":
		res, err = s.engine.Ingester.UploadText(ctx, in.Filename, in.Content)
	default:
		return UploadOutput{}, NewInvalidParamsError("path or filename is required")
	}

	if err != nil {
		s.logger.Warn("mcp_upload_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return UploadOutput{}, err
	}

	s.logger.Info("mcp_upload_completed",
		slog.String("request_id", requestID),
		slog.String("document_id", res.DocumentID),
		slog.Duration("duration", time.Since(start)))

	return UploadOutput{
		DocumentID:    res.DocumentID,
		Filename:      res.Filename,
		ChunksCreated: res.ChunksCreated,
		Message:       res.Message,
	}, nil
}

// query runs a search, filling omitted parameters from the config.
func (s *Server) query(ctx context.Context, in QueryInput) (QueryOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return QueryOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := generateRequestID()

	q := s.engine.Retriever.NewQuery(in.Query)
	if in.MaxResults != nil {
		q.MaxResults = *in.MaxResults
	}
	if in.SimilarityThreshold != nil {
		q.SimilarityThreshold = *in.SimilarityThreshold
	}

	res, err := s.engine.Retriever.Search(ctx, q)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("mcp_query_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return QueryOutput{}, err
	}

	s.logger.Info("mcp_query_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(res.Sources)))
	return toQueryOutput(res), nil
}

func (s *Server) list() ListOutput {
	return toListOutput(s.engine.Store.List())
}

func (s *Server) get(in IDInput) (DocumentOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return DocumentOutput{}, NewInvalidParamsError("id is required")
	}
	doc, err := s.engine.Store.Get(in.ID)
	if err != nil {
		return DocumentOutput{}, err
	}
	return toDocumentOutput(doc), nil
}

func (s *Server) delete(ctx context.Context, in IDInput) (DeleteOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return DeleteOutput{}, NewInvalidParamsError("id is required")
	}
	doc, err := s.engine.Store.Delete(ctx, in.ID)
	if err != nil {
		return DeleteOutput{}, err
	}
	return DeleteOutput{
		ID:            doc.ID,
		ChunksRemoved: len(doc.Chunks),
		Message:       fmt.Sprintf("Document %s deleted successfully", doc.ID),
	}, nil
}

func (s *Server) stats(ctx context.Context) StatsOutput {
	return toStatsOutput(s.engine.Stats.Stats(ctx))
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	desc := make(map[string]string, len(toolInfos))
	for _, t := range toolInfos {
		desc[t.Name] = t.Description
	}

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolUpload, Description: desc[ToolUpload]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in UploadInput) (*mcp.CallToolResult, UploadOutput, error) {
			out, err := s.upload(ctx, in)
			if err != nil {
				return nil, UploadOutput{}, MapError(err)
			}
			return textResult(out.Message), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolQuery, Description: desc[ToolQuery]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
			out, err := s.query(ctx, in)
			if err != nil {
				return nil, QueryOutput{}, MapError(err)
			}
			return textResult(FormatQueryResults(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolList, Description: desc[ToolList]},
		func(_ context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListOutput, error) {
			out := s.list()
			return textResult(FormatDocumentList(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolGet, Description: desc[ToolGet]},
		func(_ context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, DocumentOutput, error) {
			out, err := s.get(in)
			if err != nil {
				return nil, DocumentOutput{}, MapError(err)
			}
			return textResult(FormatDocument(out)), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolDelete, Description: desc[ToolDelete]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, DeleteOutput, error) {
			out, err := s.delete(ctx, in)
			if err != nil {
				return nil, DeleteOutput{}, MapError(err)
			}
			return textResult(out.Message), out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolStats, Description: desc[ToolStats]},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
			out := s.stats(ctx)
			return textResult(FormatStats(out)), out, nil
		})

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

// textResult carries the markdown rendering; the SDK adds the structured
// output alongside it.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
