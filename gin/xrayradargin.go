// Package xrayradargin provides gin middleware that records every request
// as a breadcrumb and reports panics and handler errors.
package xrayradargin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xrayradar/xrayradar-go"
)

// valuesKey is used as a key to store the Tracker on the gin.Context.
const valuesKey = "xrayradar"

type handler struct {
	tracker         *xrayradar.Tracker
	repanic         bool
	waitForDelivery bool
	captureErrors   bool
	timeout         time.Duration
}

type Options struct {
	// Tracker receives the events. When nil, xrayradar.CurrentTracker is
	// used at request time.
	Tracker *xrayradar.Tracker
	// Repanic configures whether to panic again after recovery. Set it to
	// true when gin.Recovery is installed before this middleware.
	Repanic bool
	// WaitForDelivery blocks the panicking request until the event has been
	// delivered or Timeout elapsed.
	WaitForDelivery bool
	// CaptureErrors reports the errors attached with c.Error when the
	// handler chain is done.
	CaptureErrors bool
	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

// New returns a gin.HandlerFunc usable with Use.
func New(options Options) gin.HandlerFunc {
	if options.Timeout == 0 {
		options.Timeout = 2 * time.Second
	}
	return (&handler{
		tracker:         options.Tracker,
		repanic:         options.Repanic,
		waitForDelivery: options.WaitForDelivery,
		captureErrors:   options.CaptureErrors,
		timeout:         options.Timeout,
	}).handle
}

func (h *handler) handle(c *gin.Context) {
	tracker := h.tracker
	if tracker == nil {
		tracker = xrayradar.CurrentTracker()
	}
	if tracker == nil {
		c.Next()
		return
	}

	r := c.Request
	tracker.ClearBreadcrumbs()
	tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))

	ctx := xrayradar.SetTrackerOnContext(context.WithValue(r.Context(), xrayradar.RequestContextKey, r), tracker)
	c.Request = r.WithContext(ctx)
	c.Set(valuesKey, tracker)
	defer h.recoverWithTracker(tracker, ctx, r)

	c.Next()

	if h.captureErrors {
		for _, err := range c.Errors {
			tracker.CaptureException(err.Err, xrayradar.WithContext(ctx), xrayradar.WithRequest(r))
		}
	}
}

func (h *handler) recoverWithTracker(tracker *xrayradar.Tracker, ctx context.Context, r *http.Request) {
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

// GetTrackerFromContext retrieves the Tracker attached to the gin.Context.
func GetTrackerFromContext(c *gin.Context) *xrayradar.Tracker {
	if tracker, ok := c.Get(valuesKey); ok {
		if tracker, ok := tracker.(*xrayradar.Tracker); ok {
			return tracker
		}
	}
	return nil
}
