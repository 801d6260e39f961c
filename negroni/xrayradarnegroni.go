// Package xrayradarnegroni provides a negroni.Handler that records every
// request as a breadcrumb and reports panics raised further down the chain.
package xrayradarnegroni

import (
	"context"
	"net/http"
	"time"

	"github.com/urfave/negroni/v3"

	"github.com/xrayradar/xrayradar-go"
)

type Handler struct {
	tracker         *xrayradar.Tracker
	repanic         bool
	waitForDelivery bool
	timeout         time.Duration
}

type Options struct {
	// Tracker receives the events. When nil, xrayradar.CurrentTracker is
	// used at request time.
	Tracker         *xrayradar.Tracker
	Repanic         bool
	WaitForDelivery bool
	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

var _ negroni.Handler = (*Handler)(nil)

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

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	tracker := h.tracker
	if tracker == nil {
		tracker = xrayradar.CurrentTracker()
	}
	if tracker == nil {
		next(rw, r)
		return
	}

	tracker.ClearBreadcrumbs()
	tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))

	ctx := xrayradar.SetTrackerOnContext(context.WithValue(r.Context(), xrayradar.RequestContextKey, r), tracker)
	defer h.recoverWithTracker(tracker, ctx, r)
	next(rw, r.WithContext(ctx))
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
