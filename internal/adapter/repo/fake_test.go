package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	query string
	args  []any
}

// fakeExecutor replays canned rows and records every statement.
type fakeExecutor struct {
	calls []call
	rows  [][]any
	err   error
	tag   string
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: f.rows[0]}
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.rows[r.idx], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx], nil
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return errors.New("scan: destination must be a non-nil pointer")
		}
		if values[i] == nil {
			target.Elem().Set(reflect.Zero(target.Elem().Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("scan: column %d is %s, destination %s", i, v.Type(), target.Elem().Type())
		}
		target.Elem().Set(v)
	}
	return nil
}
