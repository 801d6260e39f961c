// Package xrayradarfiber provides Fiber middleware that records every
// request as a breadcrumb and reports panics.
package xrayradarfiber

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/xrayradar/xrayradar-go"
	xrayradarfasthttp "github.com/xrayradar/xrayradar-go/fasthttp"
)

const valuesKey = "xrayradar"

type handler struct {
	tracker         *xrayradar.Tracker
	repanic         bool
	waitForDelivery bool
	timeout         time.Duration
}

type Options struct {
	// Tracker receives the events. When nil, xrayradar.CurrentTracker is
	// used at request time.
	Tracker *xrayradar.Tracker
	// Repanic configures whether to panic again after recovery. Set it to
	// true when Fiber's recover middleware is installed before this one.
	Repanic bool
	// WaitForDelivery blocks the panicking request until the event has been
	// delivered or Timeout elapsed.
	WaitForDelivery bool
	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration
}

func New(options Options) fiber.Handler {
	handler := handler{
		tracker:         options.Tracker,
		repanic:         options.Repanic,
		waitForDelivery: options.WaitForDelivery,
		timeout:         2 * time.Second,
	}
	if options.Timeout != 0 {
		handler.timeout = options.Timeout
	}
	return handler.handle
}

func (h *handler) handle(c *fiber.Ctx) error {
	tracker := h.tracker
	if tracker == nil {
		tracker = xrayradar.CurrentTracker()
	}
	if tracker == nil {
		return c.Next()
	}

	r := xrayradarfasthttp.ConvertRequest(c.Context())
	tracker.ClearBreadcrumbs()
	tracker.AddBreadcrumb(xrayradar.RequestBreadcrumb(r, tracker.Options().SendDefaultPII))
	c.Locals(valuesKey, tracker)
	defer h.recoverWithTracker(tracker, r)
	return c.Next()
}

func (h *handler) recoverWithTracker(tracker *xrayradar.Tracker, r *http.Request) {
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

// GetTrackerFromContext retrieves the Tracker attached to the fiber.Ctx.
func GetTrackerFromContext(c *fiber.Ctx) *xrayradar.Tracker {
	if tracker, ok := c.Locals(valuesKey).(*xrayradar.Tracker); ok {
		return tracker
	}
	return nil
}
