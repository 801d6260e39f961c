// Package xrayradargrpc provides gRPC interceptors that record calls as
// breadcrumbs, capture handler errors and report panics.
package xrayradargrpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xrayradar/xrayradar-go"
)

const serverCategory = "grpc.server"

func resolveTracker(ctx context.Context, tracker *xrayradar.Tracker) *xrayradar.Tracker {
	if tracker != nil {
		return tracker
	}
	if tracker = xrayradar.GetTrackerFromContext(ctx); tracker != nil {
		return tracker
	}
	return xrayradar.CurrentTracker()
}

func incomingMetadata(ctx context.Context, sendPII bool) map[string]string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md) == 0 {
		return nil
	}
	data := make(map[string]string, len(md))
	for k, v := range md {
		data[k] = strings.Join(v, ",")
	}
	return xrayradar.RedactHeaders(data, sendPII)
}

func startCall(ctx context.Context, tracker *xrayradar.Tracker, method string) (context.Context, map[string]string) {
	md := incomingMetadata(ctx, tracker.Options().SendDefaultPII)
	data := map[string]interface{}{"method": method}
	if len(md) > 0 {
		data["metadata"] = md
	}
	tracker.ClearBreadcrumbs()
	tracker.AddBreadcrumb(&xrayradar.Breadcrumb{
		Type:     xrayradar.BreadcrumbTypeHTTP,
		Category: serverCategory,
		Message:  method,
		Data:     data,
		Level:    xrayradar.LevelInfo,
	})
	return xrayradar.SetTrackerOnContext(ctx, tracker), md
}

func callOptions(ctx context.Context, method string, code codes.Code, md map[string]string) []xrayradar.CaptureOption {
	opts := []xrayradar.CaptureOption{
		xrayradar.WithContext(ctx),
		xrayradar.WithTags(map[string]string{
			"grpc.method": method,
			"grpc.code":   code.String(),
		}),
	}
	if len(md) > 0 {
		opts = append(opts, xrayradar.WithExtra("grpc.metadata", md))
	}
	return opts
}

// recoverWithTracker reports a recovered panic and turns it into an
// Internal status error unless Repanic is set.
func recoverWithTracker(ctx context.Context, tracker *xrayradar.Tracker, o ServerOptions, method string, md map[string]string, err *error) {
	if r := recover(); r != nil {
		eventID := tracker.RecoverWithContext(ctx, r, callOptions(ctx, method, codes.Internal, md)...)
		if eventID != nil && o.WaitForDelivery {
			tracker.Flush(o.Timeout)
		}
		if o.Repanic {
			panic(r)
		}
		*err = status.Error(codes.Internal, "internal error")
	}
}

func reportError(ctx context.Context, tracker *xrayradar.Tracker, o ServerOptions, method string, md map[string]string, err error) {
	if err == nil || !o.ReportOn(err) {
		return
	}
	tracker.CaptureException(err, callOptions(ctx, method, status.Code(err), md)...)
}

// UnaryServerInterceptor reports panics and errors of unary handlers.
func UnaryServerInterceptor(opts ServerOptions) grpc.UnaryServerInterceptor {
	opts.SetDefaults()

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		tracker := resolveTracker(ctx, opts.Tracker)
		if tracker == nil {
			return handler(ctx, req)
		}

		ctx, md := startCall(ctx, tracker, info.FullMethod)
		defer recoverWithTracker(ctx, tracker, opts, info.FullMethod, md, &err)

		resp, err = handler(ctx, req)
		reportError(ctx, tracker, opts, info.FullMethod, md, err)
		return resp, err
	}
}

// StreamServerInterceptor reports panics and errors of streaming handlers.
// The stream passed to the handler carries the tracker on its context.
func StreamServerInterceptor(opts ServerOptions) grpc.StreamServerInterceptor {
	opts.SetDefaults()

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx := ss.Context()
		tracker := resolveTracker(ctx, opts.Tracker)
		if tracker == nil {
			return handler(srv, ss)
		}

		ctx, md := startCall(ctx, tracker, info.FullMethod)
		defer recoverWithTracker(ctx, tracker, opts, info.FullMethod, md, &err)

		err = handler(srv, wrapServerStream(ss, ctx))
		reportError(ctx, tracker, opts, info.FullMethod, md, err)
		return err
	}
}

func wrapServerStream(ss grpc.ServerStream, ctx context.Context) grpc.ServerStream {
	return &wrappedServerStream{ServerStream: ss, ctx: ctx}
}

// wrappedServerStream overrides the Context method of grpc.ServerStream.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
