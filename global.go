package xrayradar

import (
	"sync"

	"github.com/xrayradar/xrayradar-go/internal/debuglog"
)

// registry is the single process-wide tracker slot used by the package
// level functions.
var registry struct {
	// swap serializes Init and Close.
	swap    sync.Mutex
	mu      sync.RWMutex
	tracker *Tracker
}

// Init creates a tracker from options and installs it as the current
// tracker. The previous tracker is closed before the new one is installed.
// On error the previous tracker stays installed.
func Init(options ClientOptions) (*Tracker, error) {
	tracker, err := NewTracker(options)
	if err != nil {
		return nil, err
	}

	registry.swap.Lock()
	defer registry.swap.Unlock()

	if previous := uninstall(); previous != nil {
		debuglog.Println("Replacing the current tracker")
		previous.Close()
	}

	registry.mu.Lock()
	registry.tracker = tracker
	registry.mu.Unlock()
	return tracker, nil
}

// CurrentTracker returns the installed tracker, or nil.
func CurrentTracker() *Tracker {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.tracker
}

// Close closes and uninstalls the current tracker.
func Close() {
	registry.swap.Lock()
	defer registry.swap.Unlock()
	uninstall().Close()
}

func uninstall() *Tracker {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	tracker := registry.tracker
	registry.tracker = nil
	return tracker
}
