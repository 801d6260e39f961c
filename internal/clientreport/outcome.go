package clientreport

import "time"

// DiscardedEvent is the number of events dropped for a single reason.
type DiscardedEvent struct {
	Reason   DiscardReason `json:"reason"`
	Quantity int64         `json:"quantity"`
}

// ClientReport is a point-in-time summary of dropped events.
type ClientReport struct {
	Timestamp       time.Time        `json:"timestamp"`
	DiscardedEvents []DiscardedEvent `json:"discarded_events"`
}

// Total returns the sum of all discarded quantities.
func (r *ClientReport) Total() int64 {
	if r == nil {
		return 0
	}
	var n int64
	for _, e := range r.DiscardedEvents {
		n += e.Quantity
	}
	return n
}
