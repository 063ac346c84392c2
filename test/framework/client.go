package framework

import (
	"context"

	"github.com/cuemby/pkgrun/pkg/api/proto"
	"github.com/cuemby/pkgrun/pkg/client"
)

// Client wraps pkg/client.Client with test-friendly call-and-assert helpers
// for driving the scenarios in spec.md's operational scenarios against a
// running pkgrun serve instance.
type Client struct {
	*client.Client
}

// NewClient wraps an already-dialed pkgrun client.
func NewClient(c *client.Client) *Client {
	return &Client{Client: c}
}

// Call runs a procedure and decodes its result into out, returning any
// transport or procedure error for the caller to assert against (a
// procedure error with Assertions.ErrorCode).
func (c *Client) Call(ctx context.Context, packageID, version, procedure string, opts client.RunProcedureOptions, out interface{}) (callID string, err error) {
	return c.Client.RunProcedure(ctx, packageID, version, procedure, opts, out)
}

// Tail collects every log line streamed for callID into a slice, for tests
// that assert on log_info/log_warn/log_error ops a procedure emitted.
func (c *Client) Tail(ctx context.Context, callID string) ([]proto.LogLine, error) {
	var lines []proto.LogLine
	err := c.Client.StreamLogs(ctx, callID, func(line proto.LogLine) {
		lines = append(lines, line)
	})
	return lines, err
}
