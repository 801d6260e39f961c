// Package debuglog is the SDK's own diagnostic logger. It discards everything
// until a Tracker is created with Debug enabled.
package debuglog

import (
	"io"
	"log"
	"sync"
)

const prefix = "[XrayRadar] "

var (
	logger = log.New(io.Discard, prefix, log.LstdFlags)
	mu     sync.RWMutex
)

// SetLogger replaces the current debug logger with a new one.
// This function is thread-safe and can be called concurrently.
func SetLogger(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// SetOutput redirects the current logger to w.
func SetOutput(w io.Writer) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.SetOutput(w)
	}
}

// Enable starts writing diagnostics to w.
func Enable(w io.Writer) {
	SetLogger(log.New(w, prefix, log.LstdFlags))
}

// Disable silences the logger again.
func Disable() {
	SetLogger(log.New(io.Discard, prefix, log.LstdFlags))
}

// GetLogger returns the current logger instance.
func GetLogger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Printf calls Printf on the underlying logger.
func Printf(format string, args ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Println calls Println on the underlying logger.
func Println(args ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.Println(args...)
	}
}
