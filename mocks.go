package xrayradar

import (
	"context"
	"sync"
	"time"
)

// MockTransport implements [Transport] for use in tests. It records every
// event it accepts.
type MockTransport struct {
	mu     sync.Mutex
	events []*Event
	closed bool
	// Err, when set, is returned by SendEvent and the event is not recorded.
	Err error
}

func (t *MockTransport) SendEvent(event *Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if t.Err != nil {
		return t.Err
	}
	t.events = append(t.events, event)
	return nil
}

func (t *MockTransport) Flush(_ time.Duration) bool {
	return true
}

func (t *MockTransport) FlushWithContext(_ context.Context) bool {
	return true
}

func (t *MockTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Events returns the recorded events.
func (t *MockTransport) Events() []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Event(nil), t.events...)
}

// LastEvent returns the most recent event, or nil.
func (t *MockTransport) LastEvent() *Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return nil
	}
	return t.events[len(t.events)-1]
}

// IsClosed reports whether Close was called.
func (t *MockTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
