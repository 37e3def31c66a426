package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"oaiserver/internal/platform/store"
	"oaiserver/internal/services/harvestlog/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCH struct {
	table string
	rows  [][]any
	sql   string
	args  []any
	out   [][]any
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	f.table, f.rows = table, rows
	return nil
}

func (f *fakeCH) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.sql, f.args = sql, args
	return &fakeRows{rows: f.out, i: -1}, nil
}

func (f *fakeCH) Ping(context.Context) error { return nil }
func (f *fakeCH) Close() error               { return nil }

type fakeRows struct {
	rows [][]any
	i    int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i < len(r.rows)
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d columns into %d targets", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *uint64:
			*p = row[i].(uint64)
		case *float64:
			*p = row[i].(float64)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func TestNewCHChecksTable(t *testing.T) {
	_, err := NewCH(nil, "events")
	require.Error(t, err)
	_, err = NewCH(&fakeCH{}, "events; DROP TABLE x")
	require.Error(t, err)
	_, err = NewCH(&fakeCH{}, "oai.harvest_events")
	require.NoError(t, err)
}

func TestCHWriteBatch(t *testing.T) {
	f := &fakeCH{}
	s, err := NewCH(f, "oai_harvest_events")
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	require.NoError(t, s.WriteBatch(context.Background(), nil))
	assert.Nil(t, f.rows, "empty batches are not sent")

	require.NoError(t, s.WriteBatch(context.Background(), []domain.Entry{{
		At: at, Verb: "ListRecords", Outcome: "ok", Set: "a", Prefix: "oai_dc", Items: 10, Resumed: true, Duration: 1500 * time.Microsecond,
	}}))
	assert.Equal(t, "oai_harvest_events", f.table)
	require.Len(t, f.rows, 1)
	assert.Equal(t, []any{at.UTC(), "ListRecords", "ok", "a", "oai_dc", uint32(10), true, 1.5}, f.rows[0])
}

func TestCHAggregates(t *testing.T) {
	f := &fakeCH{out: [][]any{{"Identify", "ok", uint64(4), uint64(0), 1.25}}}
	s, err := NewCH(f, "oai_harvest_events")
	require.NoError(t, err)
	w := domain.Window{Since: time.Unix(0, 0), Until: time.Unix(3600, 0)}

	got, err := s.ByVerb(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []domain.VerbStat{{Verb: "Identify", Outcome: "ok", Requests: 4, AvgMillis: 1.25}}, got)
	assert.Contains(t, f.sql, "FROM oai_harvest_events")
	assert.Equal(t, []any{w.Since, w.Until}, f.args)

	f.out = [][]any{{"a", uint64(2), uint64(30)}}
	sets, err := s.BySet(context.Background(), w, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.SetStat{{Set: "a", Requests: 2, Items: 30}}, sets)
	assert.Equal(t, []any{w.Since, w.Until, 10}, f.args)
}
