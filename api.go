package xrayradar

import (
	"context"
	"time"
)

// The functions below forward to CurrentTracker. They are no-ops when no
// tracker is installed.

// CaptureException captures err with the current tracker.
func CaptureException(err error, opts ...CaptureOption) *EventID {
	return CurrentTracker().CaptureException(err, opts...)
}

// CaptureMessage captures message with the current tracker.
func CaptureMessage(message string, opts ...CaptureOption) *EventID {
	return CurrentTracker().CaptureMessage(message, opts...)
}

// Recover captures a panic with the current tracker. It must be deferred
// directly:
//
//	defer xrayradar.Recover()
func Recover() {
	if err := recover(); err != nil {
		CurrentTracker().Recover(err)
	}
}

// RecoverWithContext is like Recover and also attaches ctx.
func RecoverWithContext(ctx context.Context) {
	if err := recover(); err != nil {
		CurrentTracker().RecoverWithContext(ctx, err)
	}
}

func AddBreadcrumb(breadcrumb *Breadcrumb) {
	CurrentTracker().AddBreadcrumb(breadcrumb)
}

func ClearBreadcrumbs() {
	CurrentTracker().ClearBreadcrumbs()
}

func SetUser(user User) {
	CurrentTracker().SetUser(user)
}

func SetTag(key, value string) {
	CurrentTracker().SetTag(key, value)
}

func SetExtra(key string, value interface{}) {
	CurrentTracker().SetExtra(key, value)
}

func SetContext(kind string, fields map[string]interface{}) {
	CurrentTracker().SetContext(kind, fields)
}

// Flush waits for the current tracker to deliver queued events.
func Flush(timeout time.Duration) bool {
	return CurrentTracker().Flush(timeout)
}

// FlushWithContext is like Flush but bounded by ctx.
func FlushWithContext(ctx context.Context) bool {
	return CurrentTracker().FlushWithContext(ctx)
}
