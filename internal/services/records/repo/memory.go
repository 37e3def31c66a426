package repo

import (
	"context"
	"slices"
	"sync"
	"time"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store/mem"
	"oaiserver/internal/services/records/domain"
)

// Memory keeps records in a map; bind it to a *mem.DB or *mem.Tx
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*domain.Record
}

// NewMemory returns an empty memory store
func NewMemory() *Memory { return &Memory{records: map[int64]*domain.Record{}} }

// Bind implements repokit.Binder
func (m *Memory) Bind(q repokit.Queryer) Storage { return &memView{m: m, q: q} }

type memView struct {
	m *Memory
	q repokit.Queryer
}

// put stores a copy of r and registers the undo for the enclosing tx
func (v *memView) put(r *domain.Record) {
	prev, had := v.m.records[r.ID]
	v.m.records[r.ID] = r.Clone()
	mem.Track(v.q, func() {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
		if had {
			v.m.records[r.ID] = prev
		} else {
			delete(v.m.records, r.ID)
		}
	})
}

// sequences are not transactional, matching Postgres
func (v *memView) NextID(ctx context.Context) (int64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.nextID++
	return v.m.nextID, nil
}

func (v *memView) Insert(ctx context.Context, r *domain.Record) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.records[r.ID]; ok {
		return perr.Newf(perr.ErrorCodeDuplicateKey, "record %d already exists", r.ID)
	}
	if r.OAIID != "" {
		for _, o := range v.m.records {
			if o.OAIID == r.OAIID {
				return perr.Newf(perr.ErrorCodeDuplicateKey, "oai id %q already exists", r.OAIID)
			}
		}
	}
	if r.ID > v.m.nextID {
		v.m.nextID = r.ID
	}
	v.put(r)
	return nil
}

func (v *memView) Update(ctx context.Context, r *domain.Record) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cur, ok := v.m.records[r.ID]
	if !ok {
		return perr.NotFoundf("record %d not found", r.ID)
	}
	next := r.Clone()
	next.CreatedAt = cur.CreatedAt
	next.UUID = cur.UUID
	v.put(next)
	return nil
}

func (v *memView) Get(ctx context.Context, id int64) (domain.Record, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	r, ok := v.m.records[id]
	if !ok {
		return domain.Record{}, perr.NotFoundf("record %d not found", id)
	}
	return *r.Clone(), nil
}

// rows are not locked; memory transactions are already serialized
func (v *memView) GetForUpdate(ctx context.Context, id int64) (domain.Record, error) {
	return v.Get(ctx, id)
}

func (v *memView) GetByOAIID(ctx context.Context, oaiID string) (domain.Record, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	for _, r := range v.m.records {
		if oaiID != "" && r.OAIID == oaiID {
			return *r.Clone(), nil
		}
	}
	return domain.Record{}, perr.NotFoundf("record %q not found", oaiID)
}

func (v *memView) ordered() []*domain.Record {
	out := make([]*domain.Record, 0, len(v.m.records))
	for _, r := range v.m.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *domain.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (v *memView) List(ctx context.Context, f domain.Filter, limit int) ([]domain.Record, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []domain.Record
	for _, r := range v.ordered() {
		if len(out) == limit {
			break
		}
		if f.Matches(r) {
			out = append(out, *r.Clone())
		}
	}
	return out, nil
}

func (v *memView) Count(ctx context.Context, f domain.Filter) (int64, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var n int64
	for _, r := range v.m.records {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (v *memView) IDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []int64
	for _, r := range v.ordered() {
		if len(out) == limit {
			break
		}
		if r.ID > afterID && !r.Deleted() {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

func (v *memView) WriteSets(ctx context.Context, id int64, sets []string, at time.Time) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cur, ok := v.m.records[id]
	if !ok {
		return perr.NotFoundf("record %d not found", id)
	}
	next := cur.Clone()
	next.Sets = slices.Clone(sets)
	next.UpdatedAt = at
	v.put(next)
	return nil
}

func (v *memView) RetractSet(ctx context.Context, spec string, at time.Time) (int64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var n int64
	for _, r := range v.ordered() {
		if !slices.Contains(r.Sets, spec) && !slices.Contains(r.ManualSets, spec) {
			continue
		}
		next := r.Clone()
		next.Sets = slices.DeleteFunc(next.Sets, func(s string) bool { return s == spec })
		next.ManualSets = slices.DeleteFunc(next.ManualSets, func(s string) bool { return s == spec })
		next.UpdatedAt = at
		v.put(next)
		n++
	}
	return n, nil
}

func (v *memView) Earliest(ctx context.Context) (time.Time, bool, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var earliest time.Time
	found := false
	for _, r := range v.m.records {
		if !found || r.UpdatedAt.Before(earliest) {
			earliest, found = r.UpdatedAt, true
		}
	}
	return earliest, found, nil
}

func (v *memView) Purge(ctx context.Context, before time.Time) (int64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var n int64
	for id, r := range v.m.records {
		if r.DeletedAt == nil || !r.DeletedAt.Before(before) {
			continue
		}
		prev := r
		delete(v.m.records, id)
		mem.Track(v.q, func() {
			v.m.mu.Lock()
			v.m.records[prev.ID] = prev
			v.m.mu.Unlock()
		})
		n++
	}
	return n, nil
}
