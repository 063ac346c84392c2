// Package proto is the wire contract for the pkgrun gRPC front-end: two
// methods, RunProcedure and StreamLogs, carried over a JSON codec instead of
// generated protobuf message types. The teacher's api/proto package is
// protoc-generated from a .proto file this pack does not ship; rather than
// invent a .proto and fake its codegen output, this package hand-writes the
// same shape grpc-go's generated code produces (request/response structs, a
// client interface, a ServiceDesc) and registers a "json" codec so
// google.golang.org/grpc still owns framing, flow control, and TLS — only
// the per-message marshaling differs from protobuf's wire format.
package proto

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// RunProcedureRequest names the package/version/procedure to invoke and
// carries its input. Procedure is the wire form types.ParseProcedureName
// accepts ("getConfig", "setConfig", "action:<name>").
type RunProcedureRequest struct {
	PackageID      string          `json:"packageId"`
	Version        string          `json:"version"`
	Procedure      string          `json:"procedure"`
	Input          json.RawMessage `json:"input,omitempty"`
	VariableArgs   []string        `json:"variableArgs,omitempty"`
	ProcessGroupID uint32          `json:"processGroupId"`
	Sandboxed      bool            `json:"sandboxed"`
}

// RunProcedureResponse mirrors procedure.Result: either a decoded value or
// an error code/message, never both.
type RunProcedureResponse struct {
	CallID  string          `json:"callId"`
	IsError bool            `json:"isError"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// StreamLogsRequest selects which call's forwarded log lines to tail.
type StreamLogsRequest struct {
	CallID string `json:"callId"`
}

// LogLine is one line forwarded from a procedure call's log_* ops.
type LogLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	AtUnix  int64  `json:"atUnix"`
}

// jsonCodec implements grpc's encoding.Codec by delegating to encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ServerCodec is the grpc.ServerOption that makes a server speak this
// package's wire format; DialCodec is its client-side counterpart.
func ServerCodec() grpc.ServerOption { return grpc.ForceServerCodec(jsonCodec{}) }
func DialCodec() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}))
}

const serviceName = "pkgrun.PkgRunAPI"

// PkgRunAPIServer is implemented by pkg/api.Server.
type PkgRunAPIServer interface {
	RunProcedure(ctx context.Context, req *RunProcedureRequest) (*RunProcedureResponse, error)
	StreamLogs(req *StreamLogsRequest, stream PkgRunAPI_StreamLogsServer) error
}

// PkgRunAPI_StreamLogsServer is the server-side handle for the StreamLogs
// server-streaming RPC.
type PkgRunAPI_StreamLogsServer interface {
	Send(*LogLine) error
	grpc.ServerStream
}

type pkgRunAPIStreamLogsServer struct {
	grpc.ServerStream
}

func (s *pkgRunAPIStreamLogsServer) Send(line *LogLine) error {
	return s.ServerStream.SendMsg(line)
}

func runProcedureHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RunProcedureRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PkgRunAPIServer).RunProcedure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RunProcedure"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PkgRunAPIServer).RunProcedure(ctx, req.(*RunProcedureRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamLogsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(StreamLogsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PkgRunAPIServer).StreamLogs(in, &pkgRunAPIStreamLogsServer{stream})
}

// ServiceDesc is registered against a *grpc.Server the way protoc-gen-go-grpc
// would register its own generated descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PkgRunAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RunProcedure",
			Handler:     runProcedureHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamLogs",
			Handler:       streamLogsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pkgrun/api.proto",
}

// RegisterPkgRunAPIServer registers srv's methods against s.
func RegisterPkgRunAPIServer(s *grpc.Server, srv PkgRunAPIServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// PkgRunAPIClient is the client side of the RunProcedure/StreamLogs surface.
type PkgRunAPIClient interface {
	RunProcedure(ctx context.Context, in *RunProcedureRequest, opts ...grpc.CallOption) (*RunProcedureResponse, error)
	StreamLogs(ctx context.Context, in *StreamLogsRequest, opts ...grpc.CallOption) (PkgRunAPI_StreamLogsClient, error)
}

// PkgRunAPI_StreamLogsClient is the client-side handle for StreamLogs.
type PkgRunAPI_StreamLogsClient interface {
	Recv() (*LogLine, error)
	grpc.ClientStream
}

type pkgRunAPIClient struct {
	cc *grpc.ClientConn
}

// NewPkgRunAPIClient wraps an established connection.
func NewPkgRunAPIClient(cc *grpc.ClientConn) PkgRunAPIClient { return &pkgRunAPIClient{cc} }

func (c *pkgRunAPIClient) RunProcedure(ctx context.Context, in *RunProcedureRequest, opts ...grpc.CallOption) (*RunProcedureResponse, error) {
	out := new(RunProcedureResponse)
	if err := c.cc.Invoke(ctx, serviceName+"/RunProcedure", in, out, opts...); err != nil {
		return nil, fmt.Errorf("pkgrun api: RunProcedure: %w", err)
	}
	return out, nil
}

func (c *pkgRunAPIClient) StreamLogs(ctx context.Context, in *StreamLogsRequest, opts ...grpc.CallOption) (PkgRunAPI_StreamLogsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], serviceName+"/StreamLogs", opts...)
	if err != nil {
		return nil, fmt.Errorf("pkgrun api: StreamLogs: %w", err)
	}
	cs := &pkgRunAPIStreamLogsClient{stream}
	if err := cs.SendMsg(in); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

type pkgRunAPIStreamLogsClient struct {
	grpc.ClientStream
}

func (c *pkgRunAPIStreamLogsClient) Recv() (*LogLine, error) {
	line := new(LogLine)
	if err := c.ClientStream.RecvMsg(line); err != nil {
		return nil, err
	}
	return line, nil
}
