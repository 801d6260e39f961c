package xrayradarsql

import (
	"context"
	"database/sql/driver"
	"time"
)

type xrayradarTx struct {
	originalTx driver.Tx
	ctx        context.Context
	config     *config
}

func (t *xrayradarTx) Commit() error {
	start := time.Now()
	err := t.originalTx.Commit()
	t.config.record(t.ctx, CategoryTransaction, "COMMIT", start, err)
	return err
}

func (t *xrayradarTx) Rollback() error {
	start := time.Now()
	err := t.originalTx.Rollback()
	t.config.record(t.ctx, CategoryTransaction, "ROLLBACK", start, err)
	return err
}
