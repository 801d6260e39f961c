// Package xrayradarecho provides Echo middleware that records every request
// as a breadcrumb and reports panics and server errors.
package xrayradarecho

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xrayradar/xrayradar-go"
)

// valuesKey is used as a key to store the Tracker on the echo.Context.
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
	// Repanic configures whether to panic again after recovery. In most
	// cases it should be true, as Echo's Recover middleware writes the
	// HTTP response.
	Repanic bool
	// WaitForDelivery blocks the panicking request until the event has been
	// delivered or Timeout elapsed.
	WaitForDelivery bool
	// CaptureErrors reports errors returned by handlers, except
	// *echo.HTTPError with a status below 500.
	CaptureErrors bool
	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

// New returns a function that satisfies echo.MiddlewareFunc.
func New(options Options) echo.MiddlewareFunc {
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

func (h *handler) handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tracker := h.tracker
		if tracker == nil {
			tracker = xrayradar.CurrentTracker()
		}
		if tracker == nil {
			return next(c)
		}

		r := c.Request()
		tracker.ClearBreadcrumbs()
		tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))

		ctx := xrayradar.SetTrackerOnContext(context.WithValue(r.Context(), xrayradar.RequestContextKey, r), tracker)
		c.SetRequest(r.WithContext(ctx))
		c.Set(valuesKey, tracker)
		defer h.recoverWithTracker(tracker, ctx, r)

		err := next(c)
		if err != nil && h.captureErrors && isServerError(err) {
			tracker.CaptureException(err, xrayradar.WithContext(ctx), xrayradar.WithRequest(r))
		}
		return err
	}
}

func isServerError(err error) bool {
	var httpError *echo.HTTPError
	if errors.As(err, &httpError) {
		return httpError.Code >= http.StatusInternalServerError
	}
	return true
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

// GetTrackerFromContext retrieves the Tracker attached to the echo.Context.
func GetTrackerFromContext(c echo.Context) *xrayradar.Tracker {
	if tracker, ok := c.Get(valuesKey).(*xrayradar.Tracker); ok {
		return tracker
	}
	return nil
}
