// Package xrayradarhttp provides net/http middleware that records every
// request as a breadcrumb and reports panics raised by the wrapped handler.
package xrayradarhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/xrayradar/xrayradar-go"
)

type Handler struct {
	tracker         *xrayradar.Tracker
	repanic         bool
	waitForDelivery bool
	timeout         time.Duration
}

type Options struct {
	// Tracker receives the events. When nil, the tracker installed with
	// xrayradar.Init at request time is used.
	Tracker *xrayradar.Tracker
	// Repanic re-raises the panic after it has been captured, so that an
	// outer recovery middleware or the server can handle it.
	Repanic bool
	// WaitForDelivery flushes the tracker before returning from a panicking
	// request. Use it for short-lived processes only.
	WaitForDelivery bool
	// Timeout bounds WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

// New returns a Handler configured by options.
func New(options Options) *Handler {
	timeout := options.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Handler{
		tracker:         options.Tracker,
		repanic:         options.Repanic,
		waitForDelivery: options.WaitForDelivery,
		timeout:         timeout,
	}
}

// Handle wraps handler.
func (h *Handler) Handle(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		tracker := h.currentTracker()
		if tracker == nil {
			handler.ServeHTTP(rw, r)
			return
		}
		ctx := startRequest(tracker, r)
		defer h.recoverWithTracker(tracker, ctx, r)
		handler.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// HandleFunc wraps handler.
func (h *Handler) HandleFunc(handler http.HandlerFunc) http.HandlerFunc {
	return h.Handle(handler).ServeHTTP
}

func (h *Handler) currentTracker() *xrayradar.Tracker {
	if h.tracker != nil {
		return h.tracker
	}
	return xrayradar.CurrentTracker()
}

// startRequest resets the breadcrumb trail, records the request and returns
// a context carrying the tracker and the request.
func startRequest(tracker *xrayradar.Tracker, r *http.Request) context.Context {
	tracker.ClearBreadcrumbs()
	tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))

	ctx := context.WithValue(r.Context(), xrayradar.RequestContextKey, r)
	return xrayradar.SetTrackerOnContext(ctx, tracker)
}

func (h *Handler) recoverWithTracker(tracker *xrayradar.Tracker, ctx context.Context, r *http.Request) {
	if err := recover(); err != nil {
		eventID := tracker.RecoverWithContext(ctx, err, xrayradar.WithRequest(r))
		if eventID != nil && h.waitForDelivery {
			tracker.Flush(h.timeout)
		}
		if h.repanic {
			panic(err)
		}
	}
}
