package api

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/pkgrun/pkg/log"
	"github.com/cuemby/pkgrun/pkg/metrics"
)

// MetricsInterceptor records pkgrun_api_requests_total and
// pkgrun_api_request_duration_seconds for every unary RPC, and logs
// non-OK outcomes at warn level.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		code := status.Code(err)
		metrics.APIRequestsTotal.WithLabelValues(method, code.String()).Inc()
		if code != codes.OK {
			log.Warn(fmt.Sprintf("api call failed: method=%s code=%s error=%v", method, code, err))
		}
		return resp, err
	}
}

// methodName extracts the bare method name from a gRPC FullMethod
// ("pkgrun.PkgRunAPI/RunProcedure" -> "RunProcedure").
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}
