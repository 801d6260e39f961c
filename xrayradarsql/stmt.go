package xrayradarsql

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"
)

type xrayradarStmt struct {
	originalStmt driver.Stmt
	query        string
	config       *config
}

var (
	_ driver.Stmt              = (*xrayradarStmt)(nil)
	_ driver.StmtExecContext   = (*xrayradarStmt)(nil)
	_ driver.StmtQueryContext  = (*xrayradarStmt)(nil)
	_ driver.NamedValueChecker = (*xrayradarStmt)(nil)
)

func (s *xrayradarStmt) Close() error {
	return s.originalStmt.Close()
}

func (s *xrayradarStmt) NumInput() int {
	return s.originalStmt.NumInput()
}

func (s *xrayradarStmt) Exec(args []driver.Value) (driver.Result, error) {
	start := time.Now()
	result, err := s.originalStmt.Exec(args) //nolint:staticcheck // legacy drivers
	s.config.record(context.Background(), CategoryExec, s.query, start, err)
	return result, err
}

func (s *xrayradarStmt) Query(args []driver.Value) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.originalStmt.Query(args) //nolint:staticcheck // legacy drivers
	s.config.record(context.Background(), CategoryQuery, s.query, start, err)
	return rows, err
}

func (s *xrayradarStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		result driver.Result
		err    error
	)
	if stmtExecContext, ok := s.originalStmt.(driver.StmtExecContext); ok {
		result, err = stmtExecContext.ExecContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = namedValueToValue(args); err == nil {
			result, err = s.originalStmt.Exec(values) //nolint:staticcheck // legacy drivers
		}
	}
	s.config.record(ctx, CategoryExec, s.query, start, err)
	return result, err
}

func (s *xrayradarStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if stmtQueryContext, ok := s.originalStmt.(driver.StmtQueryContext); ok {
		rows, err = stmtQueryContext.QueryContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = namedValueToValue(args); err == nil {
			rows, err = s.originalStmt.Query(values) //nolint:staticcheck // legacy drivers
		}
	}
	s.config.record(ctx, CategoryQuery, s.query, start, err)
	return rows, err
}

func (s *xrayradarStmt) CheckNamedValue(namedValue *driver.NamedValue) error {
	namedValueChecker, ok := s.originalStmt.(driver.NamedValueChecker)
	if !ok {
		return driver.ErrSkip
	}
	return namedValueChecker.CheckNamedValue(namedValue)
}

// namedValueToValue mirrors database/sql's conversion for drivers without
// context support.
func namedValueToValue(named []driver.NamedValue) ([]driver.Value, error) {
	dargs := make([]driver.Value, len(named))
	for n, param := range named {
		if len(param.Name) > 0 {
			return nil, errors.New("sql: driver does not support the use of Named Parameters")
		}
		dargs[n] = param.Value
	}
	return dargs, nil
}
