package xrayradargrpc

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xrayradar/xrayradar-go"
)

const defaultTimeout = 2 * time.Second

type ServerOptions struct {
	// Tracker receives the events. When nil, the tracker stored on the
	// incoming context is used, then xrayradar.CurrentTracker.
	Tracker *xrayradar.Tracker

	// Repanic determines whether the application should re-panic after recovery.
	Repanic bool

	// WaitForDelivery blocks the interceptor until the event has been
	// delivered or Timeout elapsed.
	WaitForDelivery bool

	// Timeout for WaitForDelivery. Defaults to 2 seconds.
	Timeout time.Duration

	// ReportOn decides which handler errors are captured. Defaults to
	// ReportAlways.
	ReportOn ReportOn
}

func (o *ServerOptions) SetDefaults() {
	if o.ReportOn == nil {
		o.ReportOn = ReportAlways
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
}

type ClientOptions struct {
	// Tracker receives the breadcrumbs. When nil, the tracker stored on the
	// outgoing context is used, then xrayradar.CurrentTracker.
	Tracker *xrayradar.Tracker
}

// ReportOn decides whether an error returned by a handler is captured.
type ReportOn func(error) bool

// ReportAlways returns true if err is non-nil.
func ReportAlways(err error) bool {
	return err != nil
}

// ReportOnCodes returns true if the status code of err is one of cc.
func ReportOnCodes(cc ...codes.Code) ReportOn {
	return func(err error) bool {
		if err == nil {
			return false
		}
		c := status.Code(err)
		for i := range cc {
			if c == cc[i] {
				return true
			}
		}
		return false
	}
}
