// Package dbtest provides an in-memory db.Querier that records statements and
// replays canned rows.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/example/gym-sniper/internal/db"
)

// Call is one recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// Fake implements db.TxQuerier. Rows are matched by the first registered
// substring found in the statement. Transactions are recorded as BEGIN,
// COMMIT and ROLLBACK calls.
type Fake struct {
	mu      sync.Mutex
	Calls   []Call
	ExecErr error
	rows    []canned
}

type canned struct {
	match string
	rows  [][]any
	err   error
}

// On registers rows returned for statements containing match.
func (f *Fake) On(match string, rows ...[]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, canned{match: match, rows: rows})
}

// OnError makes statements containing match fail.
func (f *Fake) OnError(match string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, canned{match: match, err: err})
}

func (f *Fake) record(sql string, args []any) *canned {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{SQL: sql, Args: args})
	for i := range f.rows {
		if strings.Contains(sql, f.rows[i].match) {
			return &f.rows[i]
		}
	}
	return nil
}

// Execs returns the recorded statements containing match.
func (f *Fake) Execs(match string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if strings.Contains(c.SQL, match) {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Exec(ctx context.Context, sql string, args ...any) error {
	if c := f.record(sql, args); c != nil && c.err != nil {
		return c.err
	}
	return f.ExecErr
}

func (f *Fake) QueryRow(ctx context.Context, sql string, args ...any) db.Row {
	c := f.record(sql, args)
	if c == nil {
		return &rows{err: db.ErrNotFound}
	}
	if c.err != nil {
		return &rows{err: c.err}
	}
	if len(c.rows) == 0 {
		return &rows{err: db.ErrNotFound}
	}
	return &rows{data: c.rows[:1], pos: 0}
}

func (f *Fake) Query(ctx context.Context, sql string, args ...any) (db.Rows, error) {
	c := f.record(sql, args)
	if c == nil {
		return &rows{pos: -1}, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return &rows{data: c.rows, pos: -1}, nil
}

func (f *Fake) WithTx(ctx context.Context, fn func(db.Querier) error) error {
	f.record("BEGIN", nil)
	if err := fn(f); err != nil {
		f.record("ROLLBACK", nil)
		return err
	}
	f.record("COMMIT", nil)
	return nil
}

type rows struct {
	data [][]any
	pos  int
	err  error
}

func (r *rows) Close()     {}
func (r *rows) Err() error { return nil }

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.pos < 0 || r.pos >= len(r.data) {
		return fmt.Errorf("dbtest: scan without row")
	}
	row := r.data[r.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("dbtest: row has %d columns, scan wants %d", len(row), len(dest))
	}
	for i, v := range row {
		dv := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		vv := reflect.ValueOf(v)
		if dv.Kind() == reflect.Pointer && vv.Type() == dv.Type().Elem() {
			p := reflect.New(vv.Type())
			p.Elem().Set(vv)
			dv.Set(p)
			continue
		}
		if !vv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("dbtest: column %d: cannot assign %s to %s", i, vv.Type(), dv.Type())
		}
		dv.Set(vv)
	}
	return nil
}

var _ db.TxQuerier = (*Fake)(nil)
