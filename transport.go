package xrayradar

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/xrayradar/xrayradar-go/internal/clientreport"
	httpinternal "github.com/xrayradar/xrayradar-go/internal/http"
	"github.com/xrayradar/xrayradar-go/internal/protocol"
)

// Transport delivers built events. SendEvent must not block; an event is
// considered handed off only when it returns nil.
type Transport interface {
	SendEvent(event *Event) error
	Flush(timeout time.Duration) bool
	FlushWithContext(ctx context.Context) bool
	Close()
}

// NullTransport discards every event. It is used when no usable DSN is
// configured.
type NullTransport struct{}

func (NullTransport) SendEvent(*Event) error                 { return nil }
func (NullTransport) Flush(time.Duration) bool               { return true }
func (NullTransport) FlushWithContext(context.Context) bool { return true }
func (NullTransport) Close()                                 {}

// DebugTransport writes a readable rendering of every event to a writer
// and never touches the network.
type DebugTransport struct {
	mu     sync.Mutex
	writer io.Writer
	count  int
}

// NewDebugTransport returns a DebugTransport writing to w, or to stderr when
// w is nil.
func NewDebugTransport(w io.Writer) *DebugTransport {
	if w == nil {
		w = os.Stderr
	}
	return &DebugTransport{writer: w}
}

func (t *DebugTransport) SendEvent(event *Event) error {
	body, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("xrayradar: encode event: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	fmt.Fprintf(t.writer, "[XrayRadar] %s event %s: %s\n", event.Level, event.EventID, summarize(event))
	for _, crumb := range event.Breadcrumbs {
		fmt.Fprintf(t.writer, "  breadcrumb %s [%s] %s\n", crumb.Timestamp.Format(time.RFC3339), crumb.Category, crumb.Message)
	}
	fmt.Fprintf(t.writer, "%s\n", body)
	return nil
}

// Count returns how many events were written.
func (t *DebugTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *DebugTransport) Flush(time.Duration) bool               { return true }
func (t *DebugTransport) FlushWithContext(context.Context) bool { return true }
func (t *DebugTransport) Close()                                 {}

func summarize(event *Event) string {
	if len(event.Exception) > 0 {
		return event.Exception[0].Type + ": " + event.Exception[0].Value
	}
	return event.Message
}

// TransportStats is a snapshot of HTTPTransport counters.
type TransportStats = httpinternal.Stats

// HTTPTransport is the default Transport. Events are serialized on the
// calling goroutine and delivered by a single background worker with
// bounded retries.
type HTTPTransport struct {
	async *httpinternal.AsyncTransport
}

// NewHTTPTransport creates and starts an HTTPTransport for options.
func NewHTTPTransport(options ClientOptions) (*HTTPTransport, error) {
	return newHTTPTransport(options, nil)
}

func newHTTPTransport(options ClientOptions, reports *clientreport.Aggregator) (*HTTPTransport, error) {
	async, err := httpinternal.NewAsyncTransport(httpinternal.TransportOptions{
		Dsn:                options.Dsn,
		AuthToken:          options.AuthToken,
		UserAgent:          sdkUserAgent,
		HTTPClient:         options.HTTPClient,
		HTTPTransport:      options.HTTPTransport,
		HTTPProxy:          options.HTTPProxy,
		HTTPSProxy:         options.HTTPSProxy,
		CaCerts:            options.CaCerts,
		InsecureSkipVerify: options.InsecureSkipVerify,
		Timeout:            options.Timeout,
		QueueSize:          options.QueueSize,
		MaxAttempts:        options.MaxAttempts,
		RetryBackoff:       options.RetryBackoff,
		MaxRetryBackoff:    options.MaxRetryBackoff,
		ShutdownTimeout:    options.ShutdownTimeout,
		MaxPayloadSize:     options.MaxPayloadSize,
		Compress:           options.CompressPayload,
		Reports:            reports,
		OnError:            options.TransportObserver,
	})
	if err != nil {
		return nil, err
	}
	async.Start()
	return &HTTPTransport{async: async}, nil
}

// SendEvent serializes event and queues it. It returns ErrTransportQueueFull
// when the queue is at capacity and ErrTransportClosed after Close.
func (t *HTTPTransport) SendEvent(event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("xrayradar: encode event: %w", err)
	}
	return t.async.SendEnvelope(protocol.NewEnvelope(string(event.EventID), string(event.Level), body))
}

func (t *HTTPTransport) Flush(timeout time.Duration) bool {
	return t.async.Flush(timeout)
}

func (t *HTTPTransport) FlushWithContext(ctx context.Context) bool {
	return t.async.FlushWithContext(ctx)
}

func (t *HTTPTransport) Close() {
	t.async.Close()
}

// Stats returns the delivery counters.
func (t *HTTPTransport) Stats() TransportStats {
	return t.async.Stats()
}
