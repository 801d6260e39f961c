// Package xrayradarfasthttp wraps fasthttp request handlers so that every
// request is recorded as a breadcrumb and panics are reported.
package xrayradarfasthttp

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/xrayradar/xrayradar-go"
)

const valuesKey = "xrayradar"

type Handler struct {
	tracker         *xrayradar.Tracker
	repanic         bool
	waitForDelivery bool
	timeout         time.Duration
}

type Options struct {
	// Tracker receives the events. When nil, xrayradar.CurrentTracker is
	// used at request time.
	Tracker *xrayradar.Tracker
	// Repanic configures whether to panic again after recovery. In most
	// cases it should be false, as fasthttp has no recovery handler of its
	// own.
	Repanic bool
	// WaitForDelivery blocks the panicking request until the event has been
	// delivered or Timeout elapsed.
	WaitForDelivery bool
	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

// New returns a Handler whose Handle method wraps fasthttp.RequestHandler.
func New(options Options) *Handler {
	handler := Handler{
		tracker:         options.Tracker,
		repanic:         options.Repanic,
		waitForDelivery: options.WaitForDelivery,
		timeout:         2 * time.Second,
	}
	if options.Timeout != 0 {
		handler.timeout = options.Timeout
	}
	return &handler
}

// Handle wraps handler and recovers from panics.
func (h *Handler) Handle(handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tracker := h.tracker
		if tracker == nil {
			tracker = xrayradar.CurrentTracker()
		}
		if tracker == nil {
			handler(ctx)
			return
		}

		r := ConvertRequest(ctx)
		tracker.ClearBreadcrumbs()
		tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))
		ctx.SetUserValue(valuesKey, tracker)
		defer h.recoverWithTracker(tracker, r)
		handler(ctx)
	}
}

func (h *Handler) recoverWithTracker(tracker *xrayradar.Tracker, r *http.Request) {
	if err := recover(); err != nil {
		eventID := tracker.RecoverWithContext(
			context.WithValue(context.Background(), xrayradar.RequestContextKey, r),
			err,
		)
		if eventID != nil && h.waitForDelivery {
			tracker.Flush(h.timeout)
		}
		if h.repanic {
			panic(err)
		}
	}
}

// GetTrackerFromContext retrieves the Tracker attached to the
// fasthttp.RequestCtx.
func GetTrackerFromContext(ctx *fasthttp.RequestCtx) *xrayradar.Tracker {
	if tracker, ok := ctx.UserValue(valuesKey).(*xrayradar.Tracker); ok {
		return tracker
	}
	return nil
}

// ConvertRequest describes the request held by ctx as an *http.Request. All
// strings are copied, so the result stays valid after ctx is recycled. The
// body is not copied.
func ConvertRequest(ctx *fasthttp.RequestCtx) *http.Request {
	uri := ctx.URI()
	r := &http.Request{
		Method: string(ctx.Method()),
		Host:   string(ctx.Host()),
		URL: &url.URL{
			Path:     string(uri.Path()),
			RawQuery: string(uri.QueryString()),
		},
		Header:     make(http.Header),
		RemoteAddr: ctx.RemoteAddr().String(),
	}
	if ctx.IsTLS() {
		r.TLS = &tls.ConnectionState{}
	}
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		r.Header.Add(string(key), string(value))
	})
	return r
}
