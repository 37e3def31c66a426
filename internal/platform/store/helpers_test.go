package store_test

import (
	"context"
	"errors"
	"testing"

	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store"
)

type fakeTag int64

func (f fakeTag) String() string      { return "UPDATE" }
func (f fakeTag) RowsAffected() int64 { return int64(f) }

type fakeRows struct {
	vals []string
	i    int
}

func (r *fakeRows) Next() bool { r.i++; return r.i <= len(r.vals) }
func (r *fakeRows) Scan(dst ...any) error {
	*(dst[0].(*string)) = r.vals[r.i-1]
	return nil
}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

type fakeRow struct{ v string }

func (r fakeRow) Scan(dst ...any) error { *(dst[0].(*string)) = r.v; return nil }

type fakeQ struct {
	affected int64
	vals     []string
}

func (f fakeQ) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return fakeTag(f.affected), nil
}
func (f fakeQ) Query(context.Context, string, ...any) (store.Rows, error) {
	return &fakeRows{vals: f.vals}, nil
}
func (f fakeQ) QueryRow(context.Context, string, ...any) store.Row {
	if len(f.vals) == 0 {
		return fakeRow{}
	}
	return fakeRow{v: f.vals[0]}
}

func scanString(r store.Row) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

func TestExecOne(t *testing.T) {
	ctx := context.Background()
	if err := store.ExecOne(ctx, fakeQ{affected: 1}, "UPDATE"); err != nil {
		t.Fatalf("one row: %v", err)
	}
	if err := store.ExecOne(ctx, fakeQ{affected: 0}, "UPDATE"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("zero rows: %v", err)
	}
	if err := store.ExecOne(ctx, fakeQ{affected: 3}, "UPDATE"); err == nil {
		t.Fatalf("three rows should fail")
	}
}

func TestOneAndMany(t *testing.T) {
	ctx := context.Background()

	got, err := store.One(ctx, fakeQ{vals: []string{"a"}}, scanString, "SELECT")
	if err != nil || got != "a" {
		t.Fatalf("One = %q, %v", got, err)
	}
	if _, err := store.One(ctx, fakeQ{}, scanString, "SELECT"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("One empty = %v", err)
	}
	if _, err := store.One(ctx, fakeQ{vals: []string{"a", "b"}}, scanString, "SELECT"); err == nil {
		t.Fatalf("One should reject extra rows")
	}

	all, err := store.Many(ctx, fakeQ{vals: []string{"a", "b"}}, scanString, "SELECT")
	if err != nil || len(all) != 2 || all[1] != "b" {
		t.Fatalf("Many = %v, %v", all, err)
	}

	s, err := store.Scalar[string](ctx, fakeQ{vals: []string{"x"}}, "SELECT")
	if err != nil || s != "x" {
		t.Fatalf("Scalar = %q, %v", s, err)
	}
}

func TestOpenWithNothingEnabled(t *testing.T) {
	s, err := store.Open(context.Background(), store.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("no backend should be configured")
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
