// Package xrayradarsql wraps database/sql drivers so that every query and
// statement execution is recorded as a "query" breadcrumb.
package xrayradarsql

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/xrayradar/xrayradar-go"
)

// DatabaseSystem names the database behind the driver.
type DatabaseSystem string

const (
	PostgreSQL DatabaseSystem = "postgresql"
	MySQL      DatabaseSystem = "mysql"
	SQLite     DatabaseSystem = "sqlite"
	Oracle     DatabaseSystem = "oracle"
	MSSQL      DatabaseSystem = "mssql"
)

// Breadcrumb categories.
const (
	CategoryQuery       = "db.sql.query"
	CategoryExec        = "db.sql.exec"
	CategoryTransaction = "db.sql.transaction"
)

type config struct {
	tracker        *xrayradar.Tracker
	databaseSystem DatabaseSystem
	databaseName   string
}

// NewDriver wraps d. Breadcrumbs go to the tracker set with WithTracker,
// else to the tracker on the query context, else to
// xrayradar.CurrentTracker.
func NewDriver(d driver.Driver, options ...Option) driver.Driver {
	return &xrayradarDriver{originalDriver: d, config: newConfig(options)}
}

// NewConnector wraps c, for use with sql.OpenDB.
func NewConnector(c driver.Connector, options ...Option) driver.Connector {
	return &xrayradarConnector{originalConnector: c, config: newConfig(options)}
}

func newConfig(options []Option) *config {
	var c config
	for _, option := range options {
		option(&c)
	}
	return &c
}

func (c *config) trackerFor(ctx context.Context) *xrayradar.Tracker {
	if c.tracker != nil {
		return c.tracker
	}
	if ctx != nil {
		if tracker := xrayradar.GetTrackerFromContext(ctx); tracker != nil {
			return tracker
		}
	}
	return xrayradar.CurrentTracker()
}

// record adds a breadcrumb for one driver call. Calls answered with
// driver.ErrSkip are retried by database/sql and not recorded.
func (c *config) record(ctx context.Context, category, query string, start time.Time, err error) {
	if errors.Is(err, driver.ErrSkip) {
		return
	}
	tracker := c.trackerFor(ctx)
	if tracker == nil {
		return
	}

	data := map[string]interface{}{
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
	}
	if c.databaseSystem != "" {
		data["db.system"] = string(c.databaseSystem)
	}
	if c.databaseName != "" {
		data["db.name"] = c.databaseName
	}
	if operation := parseDatabaseOperation(query); operation != "" {
		data["db.operation"] = operation
	}
	level := xrayradar.LevelInfo
	if err != nil {
		data["error"] = err.Error()
		level = xrayradar.LevelError
	}
	tracker.AddBreadcrumb(&xrayradar.Breadcrumb{
		Type:     xrayradar.BreadcrumbTypeQuery,
		Category: category,
		Message:  query,
		Data:     data,
		Level:    level,
	})
}
