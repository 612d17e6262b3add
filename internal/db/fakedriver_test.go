package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// fakeResponse is what the fake driver returns for one statement.
type fakeResponse struct {
	err          error
	columns      []string
	rows         [][]driver.Value
	rowsAffected int64
}

// fakeScript replays responses in order; the last one repeats.
type fakeScript struct {
	mu        sync.Mutex
	responses []fakeResponse
	queries   []string
	args      [][]driver.NamedValue
}

func (s *fakeScript) next(query string, args []driver.NamedValue) fakeResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.queries)
	s.queries = append(s.queries, query)
	s.args = append(s.args, args)
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i]
}

func (s *fakeScript) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

var fakeScripts sync.Map

func init() {
	sql.Register("fakesql", fakeDriver{})
}

// openFake returns a *sql.DB whose statements are answered by responses.
func openFake(t *testing.T, responses ...fakeResponse) (*sql.DB, *fakeScript) {
	t.Helper()
	script := &fakeScript{responses: responses}
	fakeScripts.Store(t.Name(), script)
	t.Cleanup(func() { fakeScripts.Delete(t.Name()) })

	db, err := sql.Open("fakesql", t.Name())
	if err != nil {
		t.Fatalf("open fake db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, script
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	v, ok := fakeScripts.Load(name)
	if !ok {
		return nil, errors.New("no script for " + name)
	}
	return &fakeConn{script: v.(*fakeScript)}, nil
}

type fakeConn struct {
	script *fakeScript
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	r := c.script.next(query, args)
	if r.err != nil {
		return nil, r.err
	}
	return driver.RowsAffected(r.rowsAffected), nil
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	r := c.script.next(query, args)
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{columns: r.columns, rows: r.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	i       int
}

func (r *fakeRows) Columns() []string { return r.columns }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.i])
	r.i++
	return nil
}
