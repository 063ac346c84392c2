package api_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/pkgrun/pkg/api"
	"github.com/cuemby/pkgrun/pkg/api/proto"
	"github.com/cuemby/pkgrun/pkg/config"
	"github.com/cuemby/pkgrun/pkg/volume"
)

func connectTestClient(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()), proto.DialCodec())
}

func startTestServer(t *testing.T, script string) (proto.PkgRunAPIClient, func()) {
	t.Helper()

	dataDir := t.TempDir()
	scriptDir := filepath.Join(dataDir, "hello-world", "1.0.0")
	require.NoError(t, os.MkdirAll(scriptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scriptDir, "embassy.js"), []byte(script), 0o644))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv, err := api.NewServer(config.Config{DataDir: dataDir, CallTimeout: 5 * time.Second}, volume.NewMap(nil), nil)
	require.NoError(t, err)

	go func() {
		_ = srv.ServeOn(lis)
	}()

	conn, err := connectTestClient(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.Stop()
		_ = conn.Close()
	})

	return proto.NewPkgRunAPIClient(conn), func() { srv.Stop() }
}

func TestServer_RunProcedure_GetConfig(t *testing.T) {
	client, _ := startTestServer(t, `module.exports.getConfig = function(input) { return { spec: { greeting: "hello" } }; };`)

	resp, err := client.RunProcedure(context.Background(), &proto.RunProcedureRequest{
		PackageID: "hello-world",
		Version:   "1.0.0",
		Procedure: "getConfig",
	})
	require.NoError(t, err)
	require.False(t, resp.IsError)
	require.JSONEq(t, `{"spec":{"greeting":"hello"}}`, string(resp.Value))
}

func TestServer_RunProcedure_InvalidProcedureName(t *testing.T) {
	client, _ := startTestServer(t, `module.exports.getConfig = function() { return {}; };`)

	_, err := client.RunProcedure(context.Background(), &proto.RunProcedureRequest{
		PackageID: "hello-world",
		Version:   "1.0.0",
		Procedure: "not-a-real-procedure",
	})
	require.Error(t, err)
}

func TestServer_RunProcedure_UnknownPackage(t *testing.T) {
	client, _ := startTestServer(t, `module.exports.getConfig = function() { return {}; };`)

	_, err := client.RunProcedure(context.Background(), &proto.RunProcedureRequest{
		PackageID: "does-not-exist",
		Version:   "1.0.0",
		Procedure: "getConfig",
	})
	require.Error(t, err)
}

func TestServer_StreamLogs_ReplaysBacklog(t *testing.T) {
	client, _ := startTestServer(t, `module.exports.getConfig = function(input) { __host.log_info("from script"); return {}; };`)

	resp, err := client.RunProcedure(context.Background(), &proto.RunProcedureRequest{
		PackageID: "hello-world",
		Version:   "1.0.0",
		Procedure: "getConfig",
	})
	require.NoError(t, err)
	require.False(t, resp.IsError)
	require.NotEmpty(t, resp.CallID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := client.StreamLogs(ctx, &proto.StreamLogsRequest{CallID: resp.CallID})
	require.NoError(t, err)

	line, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "from script", line.Message)
}
