package xrayradarsql

import (
	"context"
	"database/sql/driver"
	"time"
)

// xrayradarConn wraps the original driver.Conn. It implements the optional
// interfaces database/sql looks for and forwards each to the original
// connection, falling back where the driver contract allows.
type xrayradarConn struct {
	originalConn driver.Conn
	config       *config
}

var (
	_ driver.Conn               = (*xrayradarConn)(nil)
	_ driver.ConnPrepareContext = (*xrayradarConn)(nil)
	_ driver.ConnBeginTx        = (*xrayradarConn)(nil)
	_ driver.ExecerContext      = (*xrayradarConn)(nil)
	_ driver.QueryerContext     = (*xrayradarConn)(nil)
	_ driver.Pinger             = (*xrayradarConn)(nil)
	_ driver.SessionResetter    = (*xrayradarConn)(nil)
	_ driver.NamedValueChecker  = (*xrayradarConn)(nil)
)

func (c *xrayradarConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.originalConn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &xrayradarStmt{originalStmt: stmt, query: query, config: c.config}, nil
}

func (c *xrayradarConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	connPrepareContext, ok := c.originalConn.(driver.ConnPrepareContext)
	if !ok {
		// ErrSkip is not allowed here.
		return c.Prepare(query)
	}
	stmt, err := connPrepareContext.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &xrayradarStmt{originalStmt: stmt, query: query, config: c.config}, nil
}

func (c *xrayradarConn) Close() error {
	return c.originalConn.Close()
}

func (c *xrayradarConn) Begin() (driver.Tx, error) {
	tx, err := c.originalConn.Begin() //nolint:staticcheck // legacy drivers
	if err != nil {
		return nil, err
	}
	return &xrayradarTx{originalTx: tx, ctx: context.Background(), config: c.config}, nil
}

func (c *xrayradarConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	connBeginTx, ok := c.originalConn.(driver.ConnBeginTx)
	if !ok {
		return c.Begin()
	}
	tx, err := connBeginTx.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &xrayradarTx{originalTx: tx, ctx: ctx, config: c.config}, nil
}

func (c *xrayradarConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if queryerContext, ok := c.originalConn.(driver.QueryerContext); ok {
		rows, err = queryerContext.QueryContext(ctx, query, args)
	} else if queryer, ok := c.originalConn.(driver.Queryer); ok { //nolint:staticcheck // legacy drivers
		var values []driver.Value
		if values, err = namedValueToValue(args); err == nil {
			rows, err = queryer.Query(query, values)
		}
	} else {
		return nil, driver.ErrSkip
	}
	c.config.record(ctx, CategoryQuery, query, start, err)
	return rows, err
}

func (c *xrayradarConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		result driver.Result
		err    error
	)
	if execerContext, ok := c.originalConn.(driver.ExecerContext); ok {
		result, err = execerContext.ExecContext(ctx, query, args)
	} else if execer, ok := c.originalConn.(driver.Execer); ok { //nolint:staticcheck // legacy drivers
		var values []driver.Value
		if values, err = namedValueToValue(args); err == nil {
			result, err = execer.Exec(query, values)
		}
	} else {
		return nil, driver.ErrSkip
	}
	c.config.record(ctx, CategoryExec, query, start, err)
	return result, err
}

func (c *xrayradarConn) Ping(ctx context.Context) error {
	pinger, ok := c.originalConn.(driver.Pinger)
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

func (c *xrayradarConn) ResetSession(ctx context.Context) error {
	sessionResetter, ok := c.originalConn.(driver.SessionResetter)
	if !ok {
		return nil
	}
	return sessionResetter.ResetSession(ctx)
}

func (c *xrayradarConn) CheckNamedValue(namedValue *driver.NamedValue) error {
	namedValueChecker, ok := c.originalConn.(driver.NamedValueChecker)
	if !ok {
		return driver.ErrSkip
	}
	return namedValueChecker.CheckNamedValue(namedValue)
}
