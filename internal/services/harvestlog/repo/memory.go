package repo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"oaiserver/internal/services/harvestlog/domain"
)

// Memory keeps entries in a slice; used when clickhouse is not configured
type Memory struct {
	mu      sync.RWMutex
	entries []domain.Entry
}

// NewMemory returns an empty store
func NewMemory() *Memory { return &Memory{} }

// WriteBatch implements Storage
func (m *Memory) WriteBatch(_ context.Context, xs []domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, xs...)
	return nil
}

// Len is the number of stored entries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) within(w domain.Window, fn func(domain.Entry)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.At.Before(w.Since) || !e.At.Before(w.Until) {
			continue
		}
		fn(e)
	}
}

// ByVerb implements Storage
func (m *Memory) ByVerb(_ context.Context, w domain.Window) ([]domain.VerbStat, error) {
	type key struct{ verb, outcome string }
	acc := map[key]*domain.VerbStat{}
	total := map[key]time.Duration{}
	m.within(w, func(e domain.Entry) {
		k := key{e.Verb, e.Outcome}
		r, ok := acc[k]
		if !ok {
			r = &domain.VerbStat{Verb: e.Verb, Outcome: e.Outcome}
			acc[k] = r
		}
		r.Requests++
		r.Items += uint64(max(e.Items, 0))
		total[k] += e.Duration
	})
	out := make([]domain.VerbStat, 0, len(acc))
	for k, r := range acc {
		r.AvgMillis = float64(total[k]) / float64(time.Millisecond) / float64(r.Requests)
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b domain.VerbStat) int {
		return cmp.Or(cmp.Compare(a.Verb, b.Verb), cmp.Compare(a.Outcome, b.Outcome))
	})
	return out, nil
}

// BySet implements Storage
func (m *Memory) BySet(_ context.Context, w domain.Window, limit int) ([]domain.SetStat, error) {
	acc := map[string]*domain.SetStat{}
	m.within(w, func(e domain.Entry) {
		if e.Set == "" || e.Outcome != "ok" {
			return
		}
		r, ok := acc[e.Set]
		if !ok {
			r = &domain.SetStat{Set: e.Set}
			acc[e.Set] = r
		}
		r.Requests++
		r.Items += uint64(max(e.Items, 0))
	})
	out := make([]domain.SetStat, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b domain.SetStat) int {
		return cmp.Or(cmp.Compare(b.Items, a.Items), cmp.Compare(a.Set, b.Set))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
