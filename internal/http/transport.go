package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xrayradar/xrayradar-go/internal/clientreport"
	"github.com/xrayradar/xrayradar-go/internal/debuglog"
	"github.com/xrayradar/xrayradar-go/internal/protocol"
	"github.com/xrayradar/xrayradar-go/internal/ratelimit"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultQueueSize       = 100
	defaultMaxAttempts     = 3
	defaultRetryBackoff    = time.Second
	defaultMaxRetryBackoff = 30 * time.Second
	defaultShutdownTimeout = 2 * time.Second
	defaultMaxPayloadSize  = 100000

	flushPollInterval = 10 * time.Millisecond

	// TokenHeader carries the project authentication token.
	TokenHeader = "X-Xrayradar-Token"
)

// maxDrainResponseBytes is the maximum number of bytes that the transport
// will read from response bodies when draining them.
//
// The collector's responses are short and the SDK only looks at the status
// code. However, the net/http HTTP client requires response bodies to be
// fully drained (and closed) for TCP keep-alive to work.
const maxDrainResponseBytes = 16 << 10

// TransportOptions contains the configuration needed by the HTTP transport.
// Zero values select the defaults.
type TransportOptions struct {
	Dsn       string
	AuthToken string
	UserAgent string

	HTTPClient         *http.Client
	HTTPTransport      http.RoundTripper
	HTTPProxy          string
	HTTPSProxy         string
	CaCerts            *x509.CertPool
	InsecureSkipVerify bool

	// Timeout bounds a single delivery attempt.
	Timeout         time.Duration
	QueueSize       int
	MaxAttempts     int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	ShutdownTimeout time.Duration
	MaxPayloadSize  int
	Compress        bool

	// Reports receives a count for every event that is not delivered.
	Reports *clientreport.Aggregator
	// OnError is called from the delivery worker for every event that
	// is dropped after a failed delivery.
	OnError     func(*TransportError)
	DebugLogger *log.Logger
}

func getProxyConfig(options TransportOptions) func(*http.Request) (*url.URL, error) {
	if options.HTTPSProxy != "" {
		return func(*http.Request) (*url.URL, error) {
			return url.Parse(options.HTTPSProxy)
		}
	}

	if options.HTTPProxy != "" {
		return func(*http.Request) (*url.URL, error) {
			return url.Parse(options.HTTPProxy)
		}
	}

	return http.ProxyFromEnvironment
}

func getTLSConfig(options TransportOptions) *tls.Config {
	if options.CaCerts == nil && !options.InsecureSkipVerify {
		return nil
	}
	// #nosec G402 -- InsecureSkipVerify is an explicit user opt-in.
	return &tls.Config{
		RootCAs:            options.CaCerts,
		InsecureSkipVerify: options.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

// Stats is a snapshot of the transport counters.
type Stats struct {
	Sent    int64
	Dropped int64
	Failed  int64
	Pending int64
}

// AsyncTransport delivers envelopes from a bounded queue using a single
// background worker. Producers never block: when the queue is full the
// envelope is rejected.
type AsyncTransport struct {
	dsn       *protocol.Dsn
	apiURL    string
	client    *http.Client
	transport http.RoundTripper
	logger    *log.Logger

	authToken       string
	userAgent       string
	timeout         time.Duration
	maxAttempts     int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
	shutdownTimeout time.Duration
	maxPayloadSize  int
	compress        bool
	reports         *clientreport.Aggregator
	onError         func(*TransportError)

	sendQueue chan *protocol.Envelope

	mu     sync.RWMutex
	closed bool

	// ctx is cancelled on Close to abort in-flight requests.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	// pending counts envelopes that are queued or being delivered.
	pending      atomic.Int64
	sentCount    atomic.Int64
	droppedCount atomic.Int64
	errorCount   atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
}

// NewAsyncTransport creates a transport for options. Call Start before
// sending.
func NewAsyncTransport(options TransportOptions) (*AsyncTransport, error) {
	dsn, err := protocol.NewDsn(options.Dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &AsyncTransport{
		dsn:             dsn,
		apiURL:          dsn.GetAPIURL().String(),
		logger:          options.DebugLogger,
		authToken:       options.AuthToken,
		userAgent:       options.UserAgent,
		timeout:         durationOr(options.Timeout, defaultTimeout),
		maxAttempts:     intOr(options.MaxAttempts, defaultMaxAttempts),
		retryBackoff:    durationOr(options.RetryBackoff, defaultRetryBackoff),
		maxRetryBackoff: durationOr(options.MaxRetryBackoff, defaultMaxRetryBackoff),
		shutdownTimeout: durationOr(options.ShutdownTimeout, defaultShutdownTimeout),
		maxPayloadSize:  intOr(options.MaxPayloadSize, defaultMaxPayloadSize),
		compress:        options.Compress,
		reports:         options.Reports,
		onError:         options.OnError,
		sendQueue:       make(chan *protocol.Envelope, intOr(options.QueueSize, defaultQueueSize)),
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	if t.reports == nil {
		t.reports = clientreport.NewAggregator()
	}
	if t.maxRetryBackoff < t.retryBackoff {
		t.maxRetryBackoff = t.retryBackoff
	}

	if options.HTTPTransport != nil {
		t.transport = options.HTTPTransport
	} else {
		t.transport = &http.Transport{
			Proxy:           getProxyConfig(options),
			TLSClientConfig: getTLSConfig(options),
		}
	}

	if options.HTTPClient != nil {
		t.client = options.HTTPClient
	} else {
		t.client = &http.Client{
			Transport: t.transport,
			Timeout:   t.timeout,
		}
	}

	return t, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func intOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Start starts the delivery worker. Only the first call has an effect.
func (t *AsyncTransport) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.run()
	})
}

// SendEnvelope queues envelope for delivery without blocking.
func (t *AsyncTransport) SendEnvelope(envelope *protocol.Envelope) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}

	t.pending.Add(1)
	select {
	case t.sendQueue <- envelope:
		return nil
	default:
		t.pending.Add(-1)
		t.droppedCount.Add(1)
		t.reports.RecordOne(clientreport.ReasonQueueOverflow)
		t.logf("Queue full, dropping %s", envelope.Identifier())
		return ErrTransportQueueFull
	}
}

// Flush waits until every queued envelope has been processed or timeout
// elapses. It reports whether the queue drained.
func (t *AsyncTransport) Flush(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.FlushWithContext(ctx)
}

// FlushWithContext is like Flush but bounded by ctx. In-flight deliveries are
// not cancelled when ctx is done.
func (t *AsyncTransport) FlushWithContext(ctx context.Context) bool {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for {
		if t.pending.Load() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return t.pending.Load() == 0
		case <-ticker.C:
		}
	}
}

// Close stops accepting envelopes, waits up to the shutdown timeout for the
// queue to drain, then stops the worker. Envelopes still queued or in a
// retry sequence at that point are abandoned. Close is idempotent.
func (t *AsyncTransport) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		if !t.Flush(t.shutdownTimeout) {
			t.logf("Shutdown timeout reached with %d event(s) pending", t.pending.Load())
		}

		close(t.done)
		t.cancel()
		t.wg.Wait()

		for {
			select {
			case envelope := <-t.sendQueue:
				t.discard(envelope)
				t.pending.Add(-1)
			default:
				return
			}
		}
	})
}

// Stats returns the current counters.
func (t *AsyncTransport) Stats() Stats {
	return Stats{
		Sent:    t.sentCount.Load(),
		Dropped: t.droppedCount.Load(),
		Failed:  t.errorCount.Load(),
		Pending: t.pending.Load(),
	}
}

// Reports returns the aggregator counting undelivered events.
func (t *AsyncTransport) Reports() *clientreport.Aggregator {
	return t.reports
}

func (t *AsyncTransport) run() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case envelope := <-t.sendQueue:
			if t.stopping() {
				t.discard(envelope)
			} else {
				t.processEnvelope(envelope)
			}
			t.pending.Add(-1)
		}
	}
}

// stopping reports whether Close has stopped the worker.
func (t *AsyncTransport) stopping() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// discard counts an envelope abandoned on shutdown.
func (t *AsyncTransport) discard(envelope *protocol.Envelope) {
	t.droppedCount.Add(1)
	t.reports.RecordOne(clientreport.ReasonShutdown)
	t.logf("Discarding %s on shutdown", envelope.Identifier())
}

func (t *AsyncTransport) processEnvelope(envelope *protocol.Envelope) {
	body, err := t.encode(envelope)
	if err != nil {
		t.fail(&TransportError{EventID: envelope.EventID, Kind: KindEncode, Err: err})
		return
	}

	backoff := t.retryBackoff
	var lastErr *TransportError
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		lastErr = t.attempt(envelope, body)
		if lastErr == nil {
			t.sentCount.Add(1)
			t.logf("Sent %s (attempt %d)", envelope.Identifier(), attempt)
			return
		}
		if t.stopping() {
			t.discard(envelope)
			return
		}
		lastErr.Attempts = attempt
		if !lastErr.Retryable() || attempt == t.maxAttempts {
			break
		}

		wait := backoff
		if lastErr.Kind == KindRateLimited {
			wait += lastErr.RetryAfter
		}
		t.logf("Attempt %d for %s failed (%s), retrying in %v", attempt, envelope.Identifier(), lastErr.Kind, wait)
		if !t.sleep(wait) {
			t.discard(envelope)
			return
		}
		backoff *= 2
		if backoff > t.maxRetryBackoff {
			backoff = t.maxRetryBackoff
		}
	}

	t.fail(lastErr)
}

// encode applies size enforcement once, before the first attempt.
func (t *AsyncTransport) encode(envelope *protocol.Envelope) ([]byte, error) {
	body, truncated, err := protocol.Truncate(envelope.Payload, t.maxPayloadSize)
	if err != nil {
		return nil, err
	}
	if truncated {
		t.logf("Truncated %s from %d to %d bytes", envelope.Identifier(), len(envelope.Payload), len(body))
	}
	if t.compress {
		return protocol.Gzip(body)
	}
	return body, nil
}

// sleep waits for d and reports false if the transport was closed meanwhile.
func (t *AsyncTransport) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return false
	case <-timer.C:
		return true
	}
}

func (t *AsyncTransport) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if t.compress {
		request.Header.Set("Content-Encoding", "gzip")
	}
	if t.userAgent != "" {
		request.Header.Set("User-Agent", t.userAgent)
	}
	if t.authToken != "" {
		request.Header.Set(TokenHeader, t.authToken)
	}
	return request, nil
}

func (t *AsyncTransport) attempt(envelope *protocol.Envelope, body []byte) *TransportError {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	request, err := t.newRequest(ctx, body)
	if err != nil {
		return &TransportError{EventID: envelope.EventID, Kind: KindEncode, Err: err}
	}

	response, err := t.client.Do(request)
	if err != nil {
		return &TransportError{EventID: envelope.EventID, Kind: KindNetwork, Err: err}
	}
	defer func() {
		_, _ = io.CopyN(io.Discard, response.Body, maxDrainResponseBytes)
		_ = response.Body.Close()
	}()

	return classifyResponse(envelope.EventID, response)
}

// classifyResponse maps a collector response to nil on success or to a
// TransportError describing the failure.
func classifyResponse(eventID string, response *http.Response) *TransportError {
	status := response.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	terr := &TransportError{EventID: eventID, StatusCode: status}
	if b, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyChars*4)); err == nil {
		terr.Body = truncateBody(b)
	}

	switch {
	case status == http.StatusTooManyRequests:
		terr.Kind = KindRateLimited
		terr.RetryAfter, _ = ratelimit.FromResponse(response, time.Now())
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		terr.Kind = KindAuth
	case status >= 500:
		terr.Kind = KindServer
	default:
		terr.Kind = KindClient
	}
	terr.Err = fmt.Errorf("unexpected status %d", status)
	return terr
}

func (t *AsyncTransport) fail(terr *TransportError) {
	t.errorCount.Add(1)
	t.reports.RecordOne(reasonFor(terr.Kind))
	if terr.IsAuth() {
		t.logf("Collector rejected %s with status %d, check the DSN and auth token", terr.EventID, terr.StatusCode)
	}
	t.logf("%v", terr)

	if t.onError != nil {
		defer func() {
			if r := recover(); r != nil {
				t.logf("Transport observer panicked: %v", r)
			}
		}()
		t.onError(terr)
	}
}

func reasonFor(kind ErrorKind) clientreport.DiscardReason {
	switch kind {
	case KindNetwork:
		return clientreport.ReasonNetworkError
	case KindAuth:
		return clientreport.ReasonAuthError
	case KindEncode:
		return clientreport.ReasonEncodeError
	default:
		return clientreport.ReasonSendError
	}
}

func (t *AsyncTransport) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
		return
	}
	debuglog.Printf(format, args...)
}
