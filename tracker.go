package xrayradar

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/xrayradar/xrayradar-go/internal/clientreport"
	"github.com/xrayradar/xrayradar-go/internal/debuglog"
)

type trackerState int32

const (
	stateCreated trackerState = iota
	stateActive
	stateClosed
)

type contextKey int

// Context keys used by framework integrations.
const (
	TrackerContextKey = contextKey(1)
	RequestContextKey = contextKey(2)
)

// TrackerStats reports what happened to captured events.
type TrackerStats struct {
	// Captured counts capture calls made while the tracker was active.
	Captured int64
	// HandedOff counts events accepted by the transport.
	HandedOff int64
	// Discarded counts dropped events by reason, including delivery
	// failures of the default HTTP transport.
	Discarded map[string]int64
}

// Tracker captures errors and messages and hands the resulting events to a
// Transport. It is safe for concurrent use. A Tracker that has been closed
// ignores every call.
type Tracker struct {
	options      ClientOptions
	state        atomic.Int32
	breadcrumbs  *BreadcrumbBuffer
	scope        *ContextStore
	sampler      *Sampler
	builder      *EventBuilder
	transport    Transport
	reports      *clientreport.Aggregator
	ignoreErrors []*regexp.Regexp

	captured  atomic.Int64
	handedOff atomic.Int64
}

// NewTracker validates options and returns an active Tracker. Configuration
// errors are returned as *ConfigurationError. A missing or malformed DSN is
// not an error: the tracker then discards all events.
func NewTracker(options ClientOptions) (*Tracker, error) {
	if err := options.resolve(); err != nil {
		return nil, err
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	if options.Debug {
		w := options.DebugWriter
		if w == nil {
			w = os.Stderr
		}
		debuglog.Enable(w)
	}

	sampler, err := NewSampler(options.SampleRate)
	if err != nil {
		return nil, err
	}

	tracker := &Tracker{
		options:     options,
		breadcrumbs: NewBreadcrumbBuffer(options.MaxBreadcrumbs),
		scope:       NewContextStore(options.ServerName, options.Release, options.Environment),
		sampler:     sampler,
		builder:     NewEventBuilder(options),
		reports:     clientreport.NewAggregator(),
	}
	tracker.state.Store(int32(stateCreated))

	for _, pattern := range options.IgnoreErrors {
		tracker.ignoreErrors = append(tracker.ignoreErrors, regexp.MustCompile(pattern))
	}

	transport, err := tracker.setupTransport()
	if err != nil {
		return nil, err
	}
	tracker.transport = transport
	tracker.state.Store(int32(stateActive))

	debuglog.Printf("Tracker ready (environment=%s, release=%s, sample_rate=%v, transport=%T)",
		options.Environment, options.Release, options.SampleRate, transport)
	return tracker, nil
}

func (t *Tracker) setupTransport() (Transport, error) {
	options := t.options
	if options.Transport != nil {
		return options.Transport, nil
	}

	if options.Dsn == "" {
		debuglog.Println("No DSN configured, events will be discarded")
		return NullTransport{}, nil
	}
	dsn, err := NewDsn(options.Dsn)
	if err != nil {
		debuglog.Printf("%v; events will be discarded", err)
		return NullTransport{}, nil
	}

	if options.AuthToken == "" {
		return nil, &ConfigurationError{Field: "AuthToken", Reason: "required when a DSN is configured (set " + EnvAuthToken + ")"}
	}

	transport, err := newHTTPTransport(options, t.reports)
	if err != nil {
		return nil, err
	}
	debuglog.Printf("Sending events to %s", dsn.Redacted())
	return transport, nil
}

func (t *Tracker) active() bool {
	return t != nil && trackerState(t.state.Load()) == stateActive
}

// Options returns a copy of the resolved options.
func (t *Tracker) Options() ClientOptions {
	return t.options
}

// Transport returns the transport events are handed to.
func (t *Tracker) Transport() Transport {
	return t.transport
}

// CaptureOption adjusts a single capture call.
type CaptureOption func(hint *EventHint)

// WithLevel overrides the event severity.
func WithLevel(level Level) CaptureOption {
	return func(hint *EventHint) { hint.Level = level }
}

// WithMessage sets the event message. For errors it defaults to the error text.
func WithMessage(message string) CaptureOption {
	return func(hint *EventHint) { hint.Message = message }
}

// WithExtra adds one call-site extra value.
func WithExtra(key string, value interface{}) CaptureOption {
	return func(hint *EventHint) {
		if hint.Extra == nil {
			hint.Extra = make(map[string]interface{})
		}
		hint.Extra[key] = value
	}
}

// WithExtras adds call-site extra values.
func WithExtras(extra map[string]interface{}) CaptureOption {
	return func(hint *EventHint) {
		for k, v := range extra {
			WithExtra(k, v)(hint)
		}
	}
}

// WithTags adds call-site tags.
func WithTags(tags map[string]string) CaptureOption {
	return func(hint *EventHint) {
		if hint.Tags == nil {
			hint.Tags = make(map[string]string, len(tags))
		}
		for k, v := range tags {
			hint.Tags[k] = v
		}
	}
}

// WithRequest attaches r, overriding the request set on the tracker.
func WithRequest(r *http.Request) CaptureOption {
	return func(hint *EventHint) {
		if r != nil {
			hint.Request = NewRequest(r)
		}
	}
}

// WithUser overrides the user set on the tracker.
func WithUser(user User) CaptureOption {
	return func(hint *EventHint) { hint.User = &user }
}

// WithLogger records the name of the logger that produced the event.
func WithLogger(name string) CaptureOption {
	return func(hint *EventHint) { hint.Logger = name }
}

// WithFingerprint replaces the computed grouping key.
func WithFingerprint(fingerprint ...string) CaptureOption {
	return func(hint *EventHint) { hint.Fingerprint = fingerprint }
}

// WithLocals attaches variables to the culprit frame. They are dropped
// unless SendDefaultPII is set.
func WithLocals(locals map[string]interface{}) CaptureOption {
	return func(hint *EventHint) { hint.Locals = locals }
}

// WithContext attaches ctx; a request stored under RequestContextKey is
// used as the event request.
func WithContext(ctx context.Context) CaptureOption {
	return func(hint *EventHint) { hint.Context = ctx }
}

// CaptureException captures err at level error. It returns nil for a nil
// error, when the event is dropped, or after Close.
func (t *Tracker) CaptureException(err error, opts ...CaptureOption) *EventID {
	if err == nil {
		return nil
	}
	hint := &EventHint{OriginalException: err, Level: LevelError}
	return t.capture(hint, opts)
}

// CaptureMessage captures message, at level info unless overridden.
func (t *Tracker) CaptureMessage(message string, opts ...CaptureOption) *EventID {
	hint := &EventHint{Message: message, Level: LevelInfo}
	return t.capture(hint, opts)
}

// Recover captures a value returned by recover() at level fatal. It is a
// no-op for nil. Use it from a deferred function:
//
//	defer func() {
//		if err := recover(); err != nil {
//			tracker.Recover(err)
//		}
//	}()
func (t *Tracker) Recover(recovered interface{}, opts ...CaptureOption) *EventID {
	return t.RecoverWithContext(context.Background(), recovered, opts...)
}

// RecoverWithContext is like Recover and also attaches ctx.
func (t *Tracker) RecoverWithContext(ctx context.Context, recovered interface{}, opts ...CaptureOption) *EventID {
	if recovered == nil {
		return nil
	}
	hint := &EventHint{Level: LevelFatal, Context: ctx, fromPanic: true}
	if err, ok := recovered.(error); ok {
		hint.OriginalException = err
	} else {
		hint.RecoveredException = recovered
	}
	return t.capture(hint, opts)
}

func (t *Tracker) capture(hint *EventHint, opts []CaptureOption) (id *EventID) {
	if !t.active() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			debuglog.Printf("Capture failed, event dropped: %v", r)
			t.reports.RecordOne(clientreport.ReasonInternalError)
			id = nil
		}
	}()

	for _, opt := range opts {
		opt(hint)
	}
	if hint.Request == nil && hint.Context != nil {
		if r, ok := hint.Context.Value(RequestContextKey).(*http.Request); ok {
			hint.Request = NewRequest(r)
		}
	}
	t.captured.Add(1)

	if text, ok := t.shouldIgnore(hint); ok {
		debuglog.Printf("Event %q matches IgnoreErrors, not capturing", text)
		t.reports.RecordOne(clientreport.ReasonIgnored)
		return nil
	}

	if !t.sampler.ShouldSend() {
		debuglog.Println("Event dropped due to SampleRate hit")
		t.reports.RecordOne(clientreport.ReasonSampleRate)
		return nil
	}

	event := t.builder.Build(hint, t.scope.Snapshot(), t.breadcrumbs.Snapshot())

	event = t.applyFilter(event)
	if event == nil {
		return nil
	}

	if !t.active() {
		return nil
	}
	if err := t.transport.SendEvent(event); err != nil {
		debuglog.Printf("Event %s not sent: %v", event.EventID, err)
		return nil
	}
	t.handedOff.Add(1)

	eventID := event.EventID
	return &eventID
}

// shouldIgnore matches IgnoreErrors against the error text, the recovered
// panic value and the message of a capture.
func (t *Tracker) shouldIgnore(hint *EventHint) (string, bool) {
	if len(t.ignoreErrors) == 0 {
		return "", false
	}
	var candidates []string
	if hint.OriginalException != nil {
		candidates = append(candidates, hint.OriginalException.Error())
	}
	if hint.RecoveredException != nil {
		candidates = append(candidates, fmt.Sprint(hint.RecoveredException))
	}
	if hint.Message != "" {
		candidates = append(candidates, hint.Message)
	}
	for _, text := range candidates {
		for _, re := range t.ignoreErrors {
			if re.MatchString(text) {
				return text, true
			}
		}
	}
	return "", false
}

// applyFilter runs BeforeSend once. Failures drop the event and are logged.
func (t *Tracker) applyFilter(event *Event) (out *Event) {
	filter := t.options.BeforeSend
	if filter == nil {
		return event
	}

	eventID := event.EventID
	defer func() {
		if r := recover(); r != nil {
			debuglog.Printf("EventFilter panicked on event %s, dropping it: %v", eventID, r)
			t.reports.RecordOne(clientreport.ReasonEventFilterError)
			out = nil
		}
	}()

	filtered, err := filter(event)
	if err != nil {
		debuglog.Printf("EventFilter failed on event %s, dropping it: %v", eventID, err)
		t.reports.RecordOne(clientreport.ReasonEventFilterError)
		return nil
	}
	if filtered == nil {
		debuglog.Printf("Event %s dropped by EventFilter", eventID)
		t.reports.RecordOne(clientreport.ReasonBeforeSend)
		return nil
	}
	return filtered
}

// AddBreadcrumb records breadcrumb, after passing it through
// BeforeBreadcrumb.
func (t *Tracker) AddBreadcrumb(breadcrumb *Breadcrumb) {
	if !t.active() || breadcrumb == nil {
		return
	}
	if breadcrumb = t.applyBreadcrumbHook(breadcrumb); breadcrumb == nil {
		return
	}
	t.breadcrumbs.Add(breadcrumb)
}

// applyBreadcrumbHook runs BeforeBreadcrumb on a copy of breadcrumb. A
// panicking hook drops the breadcrumb.
func (t *Tracker) applyBreadcrumbHook(breadcrumb *Breadcrumb) (out *Breadcrumb) {
	hook := t.options.BeforeBreadcrumb
	if hook == nil {
		return breadcrumb
	}
	defer func() {
		if r := recover(); r != nil {
			debuglog.Printf("BeforeBreadcrumb panicked, dropping breadcrumb: %v", r)
			out = nil
		}
	}()

	crumb := *breadcrumb
	if out = hook(&crumb); out == nil {
		debuglog.Println("Breadcrumb dropped by BeforeBreadcrumb")
	}
	return out
}

// ClearBreadcrumbs removes all recorded breadcrumbs.
func (t *Tracker) ClearBreadcrumbs() {
	if !t.active() {
		return
	}
	t.breadcrumbs.Clear()
}

func (t *Tracker) SetUser(user User) {
	if !t.active() {
		return
	}
	t.scope.SetUser(user)
}

func (t *Tracker) SetTag(key, value string) {
	if !t.active() {
		return
	}
	t.scope.SetTag(key, value)
}

func (t *Tracker) SetTags(tags map[string]string) {
	if !t.active() {
		return
	}
	t.scope.SetTags(tags)
}

func (t *Tracker) SetExtra(key string, value interface{}) {
	if !t.active() {
		return
	}
	t.scope.SetExtra(key, value)
}

func (t *Tracker) SetExtras(extra map[string]interface{}) {
	if !t.active() {
		return
	}
	t.scope.SetExtras(extra)
}

// SetContext merges fields into the named context, e.g. "app" or "db".
func (t *Tracker) SetContext(kind string, fields map[string]interface{}) {
	if !t.active() {
		return
	}
	t.scope.SetContext(kind, fields)
}

// SetRequest sets the request attached to subsequent events.
func (t *Tracker) SetRequest(r *Request) {
	if !t.active() {
		return
	}
	t.scope.SetRequest(r)
}

// Flush waits until the transport has delivered queued events or timeout
// elapses, and reports whether everything was delivered.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.active() {
		return true
	}
	return t.transport.Flush(timeout)
}

// FlushWithContext is like Flush but bounded by ctx.
func (t *Tracker) FlushWithContext(ctx context.Context) bool {
	if !t.active() {
		return true
	}
	return t.transport.FlushWithContext(ctx)
}

// Close stops the tracker. Queued events get a bounded grace period to be
// delivered. Close is idempotent.
func (t *Tracker) Close() {
	if t == nil || !t.state.CompareAndSwap(int32(stateActive), int32(stateClosed)) {
		return
	}
	t.transport.Close()
	t.breadcrumbs.Clear()
	t.scope.Clear()
	debuglog.Println("Tracker closed")
}

// Closed reports whether Close has been called.
func (t *Tracker) Closed() bool {
	return t != nil && trackerState(t.state.Load()) == stateClosed
}

// Stats returns the capture counters.
func (t *Tracker) Stats() TrackerStats {
	discarded := make(map[string]int64)
	for reason, n := range t.reports.Snapshot() {
		discarded[string(reason)] = n
	}
	return TrackerStats{
		Captured:  t.captured.Load(),
		HandedOff: t.handedOff.Load(),
		Discarded: discarded,
	}
}

// SetTrackerOnContext stores tracker in ctx.
func SetTrackerOnContext(ctx context.Context, tracker *Tracker) context.Context {
	return context.WithValue(ctx, TrackerContextKey, tracker)
}

// GetTrackerFromContext returns the tracker stored in ctx, or nil.
func GetTrackerFromContext(ctx context.Context) *Tracker {
	if ctx == nil {
		return nil
	}
	if tracker, ok := ctx.Value(TrackerContextKey).(*Tracker); ok {
		return tracker
	}
	return nil
}

// HasTrackerOnContext reports whether ctx carries a tracker.
func HasTrackerOnContext(ctx context.Context) bool {
	return GetTrackerFromContext(ctx) != nil
}
