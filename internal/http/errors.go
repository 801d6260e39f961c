package http

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrTransportQueueFull is returned when the transport queue is full,
	// providing backpressure signal to the caller.
	ErrTransportQueueFull = errors.New("transport queue full")

	// ErrTransportClosed is returned when trying to send on a closed transport.
	ErrTransportClosed = errors.New("transport is closed")
)

// maxErrorBodyChars bounds how much of a collector response ends up in a
// TransportError.
const maxErrorBodyChars = 200

// ErrorKind classifies a delivery failure.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindServer      ErrorKind = "server"
	KindRateLimited ErrorKind = "rate_limited"
	KindAuth        ErrorKind = "auth"
	KindClient      ErrorKind = "client"
	KindEncode      ErrorKind = "encode"
)

// TransportError describes why an event could not be delivered. It is only
// ever reported through debug logging and the transport observer.
type TransportError struct {
	EventID    string
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	// Body is the beginning of the response body, at most 200 characters.
	Body string
	// RetryAfter is the server-requested delay for rate limited responses.
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xrayradar: delivery of event %s failed (%s", e.EventID, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ", status %d", e.StatusCode)
	}
	fmt.Fprintf(&b, ", %d attempt(s))", e.Attempts)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsAuth reports whether the collector rejected the credentials or project.
func (e *TransportError) IsAuth() bool {
	return e.Kind == KindAuth
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) <= maxErrorBodyChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxErrorBodyChars])
}
