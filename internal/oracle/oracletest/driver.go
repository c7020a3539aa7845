package oracletest

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
)

type connector struct {
	engine *Engine
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{engine: c.engine}, nil
}

func (c *connector) Driver() driver.Driver {
	return &fakeDriver{engine: c.engine}
}

type fakeDriver struct {
	engine *Engine
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	return &conn{engine: d.engine}, nil
}

type conn struct {
	engine *Engine
}

var (
	_ driver.QueryerContext = (*conn)(nil)
	_ driver.ExecerContext  = (*conn)(nil)
	_ driver.Pinger         = (*conn)(nil)
)

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("oracletest: prepared statements are not supported")
}

func (c *conn) Close() error {
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return tx{}, nil
}

func (c *conn) Ping(context.Context) error {
	return c.engine.ping()
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.engine.handle(query, args)
	if err != nil {
		return nil, err
	}
	return &rows{columns: res.columns, data: res.rows}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.engine.handle(query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(res.affected), nil
}

type tx struct{}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

type rows struct {
	columns []string
	data    [][]driver.Value
	pos     int
}

func (r *rows) Columns() []string {
	return r.columns
}

func (r *rows) Close() error {
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
