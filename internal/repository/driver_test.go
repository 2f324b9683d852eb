package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
)

// scriptStep is one expected statement and its canned response. Statements are
// matched by substring, in order.
type scriptStep struct {
	contains string
	columns  []string
	rows     [][]driver.Value
	err      error
}

// scriptConn is a single-connection driver fake. It verifies the repository
// issues the expected statements in the expected order without a live
// database.
type scriptConn struct {
	steps     []scriptStep
	pos       int
	committed bool
}

func openScriptDB(steps ...scriptStep) (*sql.DB, *scriptConn) {
	conn := &scriptConn{steps: steps}
	return sql.OpenDB(scriptConnector{conn: conn}), conn
}

type scriptConnector struct{ conn *scriptConn }

func (c scriptConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c scriptConnector) Driver() driver.Driver                        { return scriptDriver{} }

type scriptDriver struct{}

func (scriptDriver) Open(string) (driver.Conn, error) {
	return nil, fmt.Errorf("open through sql.OpenDB")
}

func (c *scriptConn) step(query string) (scriptStep, error) {
	if c.pos >= len(c.steps) {
		return scriptStep{}, fmt.Errorf("unexpected statement %q", query)
	}
	step := c.steps[c.pos]
	c.pos++
	if !strings.Contains(query, step.contains) {
		return scriptStep{}, fmt.Errorf("statement %d: expected to contain %q, got %q", c.pos, step.contains, query)
	}
	return step, nil
}

func (c *scriptConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.step(query)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	return &scriptRows{columns: step.columns, rows: step.rows}, nil
}

func (c *scriptConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	step, err := c.step(query)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	return driver.RowsAffected(1), nil
}

func (c *scriptConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not scripted: %q", query)
}

func (c *scriptConn) Close() error              { return nil }
func (c *scriptConn) Begin() (driver.Tx, error) { return c, nil }
func (c *scriptConn) Commit() error             { c.committed = true; return nil }
func (c *scriptConn) Rollback() error           { return nil }

func (c *scriptConn) exhausted() bool { return c.pos == len(c.steps) }

type scriptRows struct {
	columns []string
	rows    [][]driver.Value
	next    int
}

func (r *scriptRows) Columns() []string { return r.columns }
func (r *scriptRows) Close() error      { return nil }

func (r *scriptRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
