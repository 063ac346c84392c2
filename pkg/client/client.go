package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/pkgrun/pkg/api/proto"
	"github.com/cuemby/pkgrun/pkg/security"
)

// Client wraps the pkgrun gRPC client for CLI and programmatic use.
type Client struct {
	conn   *grpc.ClientConn
	client proto.PkgRunAPIClient
}

// NewClient dials addr using mTLS if a CLI certificate is present under
// security.GetCLICertDir(), or in the clear otherwise — matching
// pkg/api.serverOptions' own cfg.TLSCertFile-or-nothing choice. Unlike the
// teacher there is no manager to request a certificate from: certificates
// are issued locally with the pkgrun ca command against pkg/security's
// CertAuthority, not over the wire.
func NewClient(addr string) (*Client, error) {
	certDir, err := security.GetCLICertDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cert directory: %w", err)
	}

	var conn *grpc.ClientConn
	if security.CertExists(certDir) {
		conn, err = connectWithMTLS(addr, certDir)
		if err != nil {
			return nil, fmt.Errorf("failed to connect with mTLS: %w", err)
		}
	} else {
		conn, err = connectInsecure(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
	}

	return &Client{conn: conn, client: proto.NewPkgRunAPIClient(conn)}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// RunProcedureOptions carries RunProcedure's optional arguments.
type RunProcedureOptions struct {
	Input          interface{}
	VariableArgs   []interface{}
	ProcessGroupID uint32
	Sandboxed      bool
	Timeout        time.Duration
}

// RunProcedure invokes a package's procedure and decodes its result into
// out, returning the call id StreamLogs uses to tail its log_* output. A
// non-nil error from the procedure itself (not a transport error) is
// returned as a *ProcedureError so callers can inspect Code/Message.
func (c *Client) RunProcedure(ctx context.Context, packageID, version, procedure string, opts RunProcedureOptions, out interface{}) (callID string, err error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &proto.RunProcedureRequest{
		PackageID:      packageID,
		Version:        version,
		Procedure:      procedure,
		ProcessGroupID: opts.ProcessGroupID,
		Sandboxed:      opts.Sandboxed,
	}
	if opts.Input != nil {
		raw, err := json.Marshal(opts.Input)
		if err != nil {
			return "", fmt.Errorf("encoding input: %w", err)
		}
		req.Input = raw
	}
	for _, arg := range opts.VariableArgs {
		raw, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("encoding variableArgs: %w", err)
		}
		req.VariableArgs = append(req.VariableArgs, string(raw))
	}

	resp, err := c.client.RunProcedure(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.IsError {
		return resp.CallID, &ProcedureError{Code: resp.Code, Message: resp.Message}
	}
	if out != nil && len(resp.Value) > 0 {
		if err := json.Unmarshal(resp.Value, out); err != nil {
			return resp.CallID, fmt.Errorf("decoding result: %w", err)
		}
	}
	return resp.CallID, nil
}

// ProcedureError is returned when a procedure itself reports failure
// (procedure.Result.IsError), as opposed to a transport-level gRPC error.
type ProcedureError struct {
	Code    int
	Message string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("procedure error %d: %s", e.Code, e.Message)
}

// StreamLogs tails a call's forwarded log_* output, invoking onLine for
// the backlog and then for each line as it arrives, until ctx is canceled
// or the stream ends.
func (c *Client) StreamLogs(ctx context.Context, callID string, onLine func(proto.LogLine)) error {
	stream, err := c.client.StreamLogs(ctx, &proto.StreamLogsRequest{CallID: callID})
	if err != nil {
		return fmt.Errorf("starting log stream: %w", err)
	}

	for {
		line, err := stream.Recv()
		if err != nil {
			return err
		}
		onLine(*line)
	}
}

func connectInsecure(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()), proto.DialCodec())
}

// connectWithMTLS establishes a gRPC connection with mTLS using the CLI's
// own certificate and the CA that issued the server's certificate.
func connectWithMTLS(addr, certDir string) (*grpc.ClientConn, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CLI certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	}

	creds := credentials.NewTLS(tlsConfig)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds), proto.DialCodec())
	if err != nil {
		return nil, fmt.Errorf("failed to dial pkgrun daemon: %w", err)
	}
	return conn, nil
}
