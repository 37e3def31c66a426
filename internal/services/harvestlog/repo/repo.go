// Package repo stores harvest log entries in clickhouse or in memory
package repo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"oaiserver/internal/platform/store"
	"oaiserver/internal/services/harvestlog/domain"
)

// Storage is the harvest log repository
type Storage interface {
	domain.WriterPort
	domain.QueryPort
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CH writes entries into a MergeTree table shaped like
//
//	at DateTime64(3), verb LowCardinality(String), outcome LowCardinality(String),
//	set String, prefix LowCardinality(String), items UInt32, resumed Bool, duration_ms Float64
type CH struct {
	c     store.Clickhouse
	table string
}

// NewCH binds the repository to table
func NewCH(c store.Clickhouse, table string) (*CH, error) {
	if c == nil {
		return nil, fmt.Errorf("harvestlog: clickhouse is not configured")
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("harvestlog: illegal table name %q", table)
	}
	return &CH{c: c, table: table}, nil
}

// WriteBatch implements Storage
func (s *CH) WriteBatch(ctx context.Context, xs []domain.Entry) error {
	if len(xs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(xs))
	for _, e := range xs {
		rows = append(rows, []any{
			e.At.UTC(), e.Verb, e.Outcome, e.Set, e.Prefix,
			uint32(max(e.Items, 0)), e.Resumed, float64(e.Duration) / float64(time.Millisecond),
		})
	}
	return s.c.Insert(ctx, s.table, rows)
}

// ByVerb implements Storage
func (s *CH) ByVerb(ctx context.Context, w domain.Window) ([]domain.VerbStat, error) {
	rows, err := s.c.Query(ctx, `
		SELECT verb, outcome, count() AS requests, sum(items) AS items, avg(duration_ms) AS avg_ms
		FROM `+s.table+`
		WHERE at >= ? AND at < ?
		GROUP BY verb, outcome
		ORDER BY verb, outcome`, w.Since, w.Until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VerbStat
	for rows.Next() {
		var r domain.VerbStat
		if err := rows.Scan(&r.Verb, &r.Outcome, &r.Requests, &r.Items, &r.AvgMillis); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BySet implements Storage
func (s *CH) BySet(ctx context.Context, w domain.Window, limit int) ([]domain.SetStat, error) {
	rows, err := s.c.Query(ctx, `
		SELECT set_spec, count() AS requests, sum(items) AS items
		FROM `+s.table+`
		WHERE at >= ? AND at < ? AND set_spec != '' AND outcome = 'ok'
		GROUP BY set_spec
		ORDER BY items DESC, set_spec ASC
		LIMIT ?`, w.Since, w.Until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SetStat
	for rows.Next() {
		var r domain.SetStat
		if err := rows.Scan(&r.Set, &r.Requests, &r.Items); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
