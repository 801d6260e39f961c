package xrayradar

import (
	"sync"
	"time"
)

// BreadcrumbBuffer is a bounded FIFO of breadcrumbs. When full, adding a
// breadcrumb evicts the oldest one. It is safe for concurrent use.
type BreadcrumbBuffer struct {
	mu       sync.Mutex
	items    []*Breadcrumb
	head     int
	size     int
	capacity int
}

// NewBreadcrumbBuffer returns a buffer holding at most capacity breadcrumbs.
// A capacity of zero or less keeps nothing.
func NewBreadcrumbBuffer(capacity int) *BreadcrumbBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &BreadcrumbBuffer{capacity: capacity}
}

// Add appends a copy of breadcrumb, stamping the current time if its
// timestamp is zero.
func (b *BreadcrumbBuffer) Add(breadcrumb *Breadcrumb) {
	if breadcrumb == nil || b.capacity == 0 {
		return
	}
	crumb := *breadcrumb
	if crumb.Timestamp.IsZero() {
		crumb.Timestamp = time.Now().UTC()
	}
	if crumb.Type == "" {
		crumb.Type = BreadcrumbTypeDefault
	}
	crumb.Data = cloneMap(crumb.Data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.items == nil {
		b.items = make([]*Breadcrumb, b.capacity)
	}
	if b.size < b.capacity {
		b.items[(b.head+b.size)%b.capacity] = &crumb
		b.size++
		return
	}
	b.items[b.head] = &crumb
	b.head = (b.head + 1) % b.capacity
}

// Clear removes all breadcrumbs.
func (b *BreadcrumbBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	b.head = 0
	b.size = 0
}

// Snapshot returns the breadcrumbs oldest first. The result shares nothing
// with the buffer.
func (b *BreadcrumbBuffer) Snapshot() []*Breadcrumb {
	b.mu.Lock()
	out := make([]*Breadcrumb, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%b.capacity])
	}
	b.mu.Unlock()

	// Stored breadcrumbs are never mutated, copying outside the lock is safe.
	for i, crumb := range out {
		c := *crumb
		c.Data = cloneMap(crumb.Data)
		out[i] = &c
	}
	return out
}

// Len returns the number of stored breadcrumbs.
func (b *BreadcrumbBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *BreadcrumbBuffer) Cap() int {
	return b.capacity
}
