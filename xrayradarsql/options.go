package xrayradarsql

import "github.com/xrayradar/xrayradar-go"

type Option func(*config)

// WithTracker sends every breadcrumb to tracker.
func WithTracker(tracker *xrayradar.Tracker) Option {
	return func(c *config) {
		c.tracker = tracker
	}
}

// WithDatabaseSystem specifies the current database system.
func WithDatabaseSystem(system DatabaseSystem) Option {
	return func(c *config) {
		c.databaseSystem = system
	}
}

// WithDatabaseName specifies the name of the current database.
func WithDatabaseName(name string) Option {
	return func(c *config) {
		c.databaseName = name
	}
}
