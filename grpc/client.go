package xrayradargrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xrayradar/xrayradar-go"
)

const clientCategory = "grpc.client"

func addClientBreadcrumb(tracker *xrayradar.Tracker, method string, err error) {
	code := status.Code(err)
	level := xrayradar.LevelInfo
	if code != codes.OK {
		level = xrayradar.LevelError
	}
	tracker.AddBreadcrumb(&xrayradar.Breadcrumb{
		Type:     xrayradar.BreadcrumbTypeHTTP,
		Category: clientCategory,
		Message:  method,
		Data: map[string]interface{}{
			"method":      method,
			"status_code": code.String(),
		},
		Level: level,
	})
}

// UnaryClientInterceptor records every outgoing unary call as a breadcrumb.
func UnaryClientInterceptor(opts ClientOptions) grpc.UnaryClientInterceptor {
	return func(ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		callOpts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, callOpts...)
		if tracker := resolveTracker(ctx, opts.Tracker); tracker != nil {
			addClientBreadcrumb(tracker, method, err)
		}
		return err
	}
}

// StreamClientInterceptor records the opening of every outgoing stream as a
// breadcrumb.
func StreamClientInterceptor(opts ClientOptions) grpc.StreamClientInterceptor {
	return func(ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		stream, err := streamer(ctx, desc, cc, method, callOpts...)
		if tracker := resolveTracker(ctx, opts.Tracker); tracker != nil {
			addClientBreadcrumb(tracker, method, err)
		}
		return stream, err
	}
}
