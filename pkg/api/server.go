package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/cuemby/pkgrun/pkg/api/proto"
	"github.com/cuemby/pkgrun/pkg/config"
	"github.com/cuemby/pkgrun/pkg/jsengine"
	"github.com/cuemby/pkgrun/pkg/log"
	"github.com/cuemby/pkgrun/pkg/procedure"
	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
	"github.com/cuemby/pkgrun/pkg/volume"
)

// Server implements proto.PkgRunAPIServer: the gRPC front-end over the
// Procedure Driver. Unlike the teacher's cluster API there is no leader to
// forward writes to and no manager to coordinate with — every call runs
// locally, loading the named package's script fresh out of cfg.DataDir and
// executing it against the single Volume Map and Container RPC Client this
// daemon was started with.
type Server struct {
	cfg     config.Config
	volumes *volume.Map
	rpc     *rpcclient.Client
	logs    *logHub
	grpc    *grpc.Server
}

// NewServer builds the gRPC server. volumes and rpc are shared across every
// call: pkgrun's daemon fronts one package's container, not a fleet, so one
// Volume Map and one Container RPC Client is the whole story.
func NewServer(cfg config.Config, volumes *volume.Map, rpc *rpcclient.Client) (*Server, error) {
	s := &Server{cfg: cfg, volumes: volumes, rpc: rpc, logs: newLogHub()}

	opts, err := serverOptions(cfg)
	if err != nil {
		return nil, err
	}
	s.grpc = grpc.NewServer(opts...)
	proto.RegisterPkgRunAPIServer(s.grpc, s)
	return s, nil
}

// serverOptions builds the gRPC server options from cfg's TLS settings. A
// daemon with no TLSCertFile configured serves in the clear, which is only
// sound when cfg.ListenAddr is a loopback address or the transport is
// already a filesystem-permission-restricted Unix socket.
func serverOptions(cfg config.Config) ([]grpc.ServerOption, error) {
	opts := []grpc.ServerOption{proto.ServerCodec(), grpc.ChainUnaryInterceptor(MetricsInterceptor())}
	if cfg.TLSCertFile == "" {
		return opts, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequestClientCert,
		MinVersion:   tls.VersionTLS13,
	}
	if cfg.TLSCAFile != "" {
		pool, err := loadCAPool(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	return opts, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// Start listens on cfg.ListenAddr and serves until Stop or a fatal accept
// error.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves the gRPC API on an already-bound listener, letting
// callers (tests, or a caller that wants to pick an ephemeral port) choose
// the listener themselves.
func (s *Server) ServeOn(lis net.Listener) error {
	log.Info(fmt.Sprintf("gRPC API listening on %s", lis.Addr()))
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs before returning.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// RunProcedure loads the package's script, runs the named procedure through
// the Procedure Driver, and translates its Result/HostError split into the
// wire response.
func (s *Server) RunProcedure(ctx context.Context, req *proto.RunProcedureRequest) (*proto.RunProcedureResponse, error) {
	name, err := types.ParseProcedureName(req.Procedure)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var input interface{}
	if len(req.Input) > 0 {
		if err := json.Unmarshal(req.Input, &input); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decoding input: %v", err)
		}
	}
	variableArgs := make([]interface{}, 0, len(req.VariableArgs))
	for _, raw := range req.VariableArgs {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decoding variableArgs: %v", err)
		}
		variableArgs = append(variableArgs, v)
	}

	callID := uuid.NewString()
	// A call's log_* output goes to its own hub-backed logger, not the
	// daemon's own operational log: StreamLogs callers want exactly what
	// the script wrote, not it interleaved with driver/transport lines.
	callLogger := zerolog.New(s.logs.writerFor(callID)).With().Timestamp().Str("call_id", callID).Logger()

	gid := types.ProcessGroupId(req.ProcessGroupID)
	env, err := jsengine.LoadFromPackage(s.cfg.DataDir, types.PackageId(req.PackageID), types.Version(req.Version), s.volumes, gid, s.rpc, callLogger)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "loading package: %v", err)
	}

	cfg := procedure.Config{RPC: s.rpc, Logger: callLogger, Timeout: s.cfg.CallTimeout}

	var result procedure.Result[json.RawMessage]
	if req.Sandboxed {
		result, err = procedure.Sandboxed[json.RawMessage](cfg, env, name, input, variableArgs)
	} else {
		result, err = procedure.Run[json.RawMessage](cfg, env, name, input, variableArgs, gid)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	if result.IsError {
		return &proto.RunProcedureResponse{CallID: callID, IsError: true, Code: result.Code, Message: result.Message}, nil
	}
	return &proto.RunProcedureResponse{CallID: callID, Value: result.Value}, nil
}

// StreamLogs tails the log lines a running or already-finished call logged
// through log_*, replaying its backlog before switching to live delivery.
func (s *Server) StreamLogs(req *proto.StreamLogsRequest, stream proto.PkgRunAPI_StreamLogsServer) error {
	ch, backlog, cancel := s.logs.subscribe(req.CallID)
	defer cancel()

	for i := range backlog {
		if err := stream.Send(&backlog[i]); err != nil {
			return err
		}
	}

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case line, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&line); err != nil {
				return err
			}
		}
	}
}
