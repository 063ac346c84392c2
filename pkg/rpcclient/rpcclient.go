// Package rpcclient implements the Container RPC Client: a single-writer,
// single-reader, line-framed JSON request/response channel to a package's
// container-init process over a local Unix socket.
package rpcclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/pkgrun/pkg/types"
)

// Method names as accepted by the container-init process. Carried verbatim
// from the original wire contract — these are not Go-idiomatic casing
// choices, they are the protocol.
const (
	MethodRunCommand  = "RunCommand"
	MethodSendSignal  = "SendSignal"
	MethodSignalGroup = "SignalGroup"
	MethodOutput      = "Output"
	MethodLog         = "Log"
)

// Error is the { code, message, data } envelope a failed request returns.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Client is a Container RPC connection. One goroutine reads framed responses
// off the socket and dispatches them to the pending call that requested
// them by correlation id; callers never read the socket directly. A Client
// may be shared across every procedure call belonging to the same package
// container, matching spec.md §4's "handles may be shared across calls
// belonging to the same package container".
type Client struct {
	conn net.Conn
	w    *bufio.Writer

	mu      sync.Mutex
	pending map[string]chan rawResponse
	readErr error
	closed  chan struct{}
}

type request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rawResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Dial connects to the container-init process's Unix socket and starts the
// reader goroutine.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing container rpc socket: %w", err)
	}
	c := &Client{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		pending: make(map[string]chan rawResponse),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var resp rawResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
	c.mu.Lock()
	c.readErr = scanner.Err()
	if c.readErr == nil {
		c.readErr = fmt.Errorf("container rpc connection closed")
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.closed)
}

// call issues a request and blocks for its matching response.
func call[P any, R any](ctx context.Context, c *Client, method string, params P) (R, error) {
	var zero R
	body, err := json.Marshal(params)
	if err != nil {
		return zero, fmt.Errorf("marshalling %s params: %w", method, err)
	}
	req := request{ID: uuid.NewString(), Method: method, Params: body}
	line, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("marshalling %s request: %w", method, err)
	}

	ch := make(chan rawResponse, 1)
	c.mu.Lock()
	if c.readErr != nil {
		c.mu.Unlock()
		return zero, c.readErr
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.mu.Lock()
	_, werr := c.w.Write(append(line, '\n'))
	if werr == nil {
		werr = c.w.Flush()
	}
	c.mu.Unlock()
	if werr != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return zero, fmt.Errorf("writing %s request: %w", method, werr)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return zero, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return zero, c.readErr
		}
		if resp.Error != nil {
			return zero, resp.Error
		}
		var result R
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				return zero, fmt.Errorf("decoding %s response: %w", method, err)
			}
		}
		return result, nil
	}
}

// RunCommandParams is the start_command op's forwarded request.
type RunCommandParams struct {
	Gid     *types.ProcessGroupId `json:"gid,omitempty"`
	Command string                `json:"command"`
	Args    []string              `json:"args"`
	Output  types.OutputStrategy  `json:"output"`
}

// RunCommand spawns a process inside the container and returns its pid.
func (c *Client) RunCommand(ctx context.Context, p RunCommandParams) (types.ProcessId, error) {
	return call[RunCommandParams, types.ProcessId](ctx, c, MethodRunCommand, p)
}

// SendSignalParams carries a single-pid signal request.
type SendSignalParams struct {
	Pid    types.ProcessId `json:"pid"`
	Signal uint32          `json:"signal"`
}

// SendSignal delivers signal to a single process.
func (c *Client) SendSignal(ctx context.Context, p SendSignalParams) error {
	_, err := call[SendSignalParams, struct{}](ctx, c, MethodSendSignal, p)
	return err
}

// SignalGroupParams carries a process-group-wide signal request.
type SignalGroupParams struct {
	Gid    types.ProcessGroupId `json:"gid"`
	Signal uint32               `json:"signal"`
}

// SignalGroup delivers signal to every process in gid. This is the method
// the group-kill guard in pkg/procedure invokes unconditionally on every
// exit path.
func (c *Client) SignalGroup(ctx context.Context, p SignalGroupParams) error {
	_, err := call[SignalGroupParams, struct{}](ctx, c, MethodSignalGroup, p)
	return err
}

// OutputParams requests the captured result of a previously started process.
type OutputParams struct {
	Pid types.ProcessId `json:"pid"`
}

// Output blocks until pid exits and returns its captured result. The
// caller (pkg/ops's wait_command) maps a request-level Error into a
// types.ResultType ErrorCode rather than propagating it as a Go error,
// since an exited-nonzero process is a normal outcome, not an RPC failure.
func (c *Client) Output(ctx context.Context, p OutputParams) (json.RawMessage, error) {
	return call[OutputParams, json.RawMessage](ctx, c, MethodOutput, p)
}

// LogParams emits a single log line tagged with a severity level.
type LogParams struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Log forwards a script-emitted log line to the container-init process.
func (c *Client) Log(ctx context.Context, p LogParams) error {
	_, err := call[LogParams, struct{}](ctx, c, MethodLog, p)
	return err
}

// Close closes the underlying connection. Pending calls unblock with the
// resulting read error.
func (c *Client) Close() error {
	return c.conn.Close()
}
