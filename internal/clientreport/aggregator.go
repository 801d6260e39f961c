// Package clientreport counts events that were dropped before delivery.
package clientreport

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator collects discarded event outcomes. Each tracker owns one.
// Safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	outcomes map[DiscardReason]*atomic.Int64

	enabled atomic.Bool
}

// NewAggregator creates a new, enabled aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		outcomes: make(map[DiscardReason]*atomic.Int64),
	}
	a.enabled.Store(true)
	return a
}

// SetEnabled enables or disables outcome recording.
func (a *Aggregator) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// IsEnabled returns whether outcome recording is enabled.
func (a *Aggregator) IsEnabled() bool {
	return a.enabled.Load()
}

// RecordOne records a single discarded event.
func (a *Aggregator) RecordOne(reason DiscardReason) {
	a.RecordOutcome(reason, 1)
}

// RecordOutcome records quantity discarded events for reason.
func (a *Aggregator) RecordOutcome(reason DiscardReason, quantity int64) {
	if a == nil || !a.enabled.Load() || quantity <= 0 {
		return
	}

	a.mu.Lock()
	counter, exists := a.outcomes[reason]
	if !exists {
		counter = &atomic.Int64{}
		a.outcomes[reason] = counter
	}
	a.mu.Unlock()

	counter.Add(quantity)
}

// Count returns the current count for reason without resetting it.
func (a *Aggregator) Count(reason DiscardReason) int64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	counter, ok := a.outcomes[reason]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return counter.Load()
}

// Snapshot returns the current counts keyed by reason.
func (a *Aggregator) Snapshot() map[DiscardReason]int64 {
	out := make(map[DiscardReason]int64)
	if a == nil {
		return out
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for reason, counter := range a.outcomes {
		if n := counter.Load(); n > 0 {
			out[reason] = n
		}
	}
	return out
}

// TakeReport atomically takes all accumulated outcomes and returns a
// ClientReport, or nil when nothing was dropped since the last call.
func (a *Aggregator) TakeReport() *ClientReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	var events []DiscardedEvent
	for reason, counter := range a.outcomes {
		if quantity := counter.Swap(0); quantity > 0 {
			events = append(events, DiscardedEvent{Reason: reason, Quantity: quantity})
		}
		delete(a.outcomes, reason)
	}

	if len(events) == 0 {
		return nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Reason < events[j].Reason })

	return &ClientReport{
		Timestamp:       time.Now(),
		DiscardedEvents: events,
	}
}
