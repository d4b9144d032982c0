package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RequestHandler executes engine operations for the server.
type RequestHandler interface {
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
	List(ctx context.Context) (*ListResult, error)
	Get(ctx context.Context, id string) (*DocumentResult, error)
	Delete(ctx context.Context, id string) (*DeleteResult, error)
	Stats(ctx context.Context) (*StatsResult, error)
	Rebuild(ctx context.Context) (*RebuildResult, error)
	Status() StatusResult
}

// Server listens on a Unix socket and handles one request per connection.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time
	timeout    time.Duration
	logger     *slog.Logger

	// onRequest is called after every handled request.
	onRequest func(method string)

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string, handler RequestHandler) *Server {
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		timeout:    30 * time.Second,
		logger:     slog.Default(),
	}
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTimeout bounds the time a connection may stay open.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// OnRequest registers a hook run after each request.
func (s *Server) OnRequest(fn func(method string)) {
	s.onRequest = fn
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("socket_chmod_failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	// Wait for active connections to finish
	s.wg.Wait()

	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	if err := encoder.Encode(resp); err != nil {
		s.logger.Warn("response_write_failed", slog.String("error", err.Error()))
	}

	s.logger.Debug("request_handled",
		slog.String("method", req.Method),
		slog.Bool("error", resp.Error != nil),
		slog.Duration("duration", time.Since(start)))
	if s.onRequest != nil {
		s.onRequest(req.Method)
	}
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodUpload:
		var p UploadParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Upload(ctx, p)

	case MethodQuery:
		var p QueryParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Query(ctx, p)

	case MethodList:
		result, err = s.handler.List(ctx)

	case MethodGet:
		var p IDParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Get(ctx, p.ID)

	case MethodDelete:
		var p IDParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Delete(ctx, p.ID)

	case MethodStats:
		result, err = s.handler.Stats(ctx)

	case MethodRebuild:
		result, err = s.handler.Rebuild(ctx)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	if err != nil {
		return ErrorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// decodeParams round-trips req.Params into dst and validates it.
func decodeParams(req Request, dst any, validate func() error) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	if err := validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()), false
	}
	return Response{}, true
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	var status StatusResult
	if s.handler != nil {
		status = s.handler.Status()
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
