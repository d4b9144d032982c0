package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Client talks to a running daemon. Each call opens its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	retry      raerrors.RetryConfig
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		retry:      raerrors.DefaultRetryConfig(),
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("ping failed: unexpected reply")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var res StatusResult
	if err := c.call(ctx, MethodStatus, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Upload sends a file path or inline payload to the daemon.
func (c *Client) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res UploadResult
	if err := c.call(ctx, MethodUpload, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Query runs a search on the daemon.
func (c *Client) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res QueryResult
	if err := c.call(ctx, MethodQuery, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns every document summary.
func (c *Client) List(ctx context.Context) (*ListResult, error) {
	var res ListResult
	if err := c.call(ctx, MethodList, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Get returns one document.
func (c *Client) Get(ctx context.Context, id string) (*DocumentResult, error) {
	var res DocumentResult
	if err := c.call(ctx, MethodGet, IDParams{ID: id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes one document.
func (c *Client) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	var res DeleteResult
	if err := c.call(ctx, MethodDelete, IDParams{ID: id}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Stats returns corpus and query counters.
func (c *Client) Stats(ctx context.Context) (*StatsResult, error) {
	var res StatsResult
	if err := c.call(ctx, MethodStats, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Rebuild asks the daemon to rebuild its index.
func (c *Client) Rebuild(ctx context.Context) (*RebuildResult, error) {
	var res RebuildResult
	if err := c.call(ctx, MethodRebuild, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// call performs one request. Dialing is retried with backoff since the
// daemon may be restarting; the request itself is sent once.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	conn, err := raerrors.RetryWithResult(ctx, c.retry, c.Connect)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := c.send(conn, req); err != nil {
		return err
	}

	resp, err := c.receive(conn)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// send encodes and writes a request to the connection.
func (c *Client) send(conn net.Conn, req Request) error {
	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// receive reads and decodes a response from the connection.
func (c *Client) receive(conn net.Conn) (*Response, error) {
	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return &resp, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
