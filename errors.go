package xrayradar

import (
	"fmt"

	httpinternal "github.com/xrayradar/xrayradar-go/internal/http"
	"github.com/xrayradar/xrayradar-go/internal/protocol"
)

// ConfigurationError is returned by NewTracker and Init when an option is
// out of range. The tracker is not created.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("xrayradar: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("xrayradar: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// InvalidDsnError reports a malformed DSN. Its message never contains the
// credentials embedded in the DSN.
type InvalidDsnError = protocol.InvalidDsnError

// TransportError describes a delivery failure. It is passed to
// ClientOptions.TransportObserver and never returned from capture calls.
type TransportError = httpinternal.TransportError

// ErrorKind classifies a TransportError.
type ErrorKind = httpinternal.ErrorKind

const (
	ErrorKindNetwork     = httpinternal.KindNetwork
	ErrorKindServer      = httpinternal.KindServer
	ErrorKindRateLimited = httpinternal.KindRateLimited
	ErrorKindAuth        = httpinternal.KindAuth
	ErrorKindClient      = httpinternal.KindClient
	ErrorKindEncode      = httpinternal.KindEncode
)

var (
	// ErrTransportQueueFull is returned by HTTPTransport.SendEvent when the
	// delivery queue is at capacity.
	ErrTransportQueueFull = httpinternal.ErrTransportQueueFull

	// ErrTransportClosed is returned by HTTPTransport.SendEvent after Close.
	ErrTransportClosed = httpinternal.ErrTransportClosed
)
