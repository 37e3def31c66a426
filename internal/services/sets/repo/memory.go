package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store/mem"
	"oaiserver/internal/services/sets/domain"
)

// Memory keeps sets in a map; bind it to a *mem.DB or *mem.Tx
type Memory struct {
	mu   sync.RWMutex
	sets map[string]domain.Set
}

// NewMemory returns an empty memory store
func NewMemory() *Memory { return &Memory{sets: map[string]domain.Set{}} }

// Bind implements repokit.Binder
func (m *Memory) Bind(q repokit.Queryer) Storage { return &memView{m: m, q: q} }

type memView struct {
	m *Memory
	q repokit.Queryer
}

func (v *memView) Get(ctx context.Context, spec string) (domain.Set, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	s, ok := v.m.sets[spec]
	if !ok {
		return domain.Set{}, perr.NotFoundf("set %q not found", spec)
	}
	return s, nil
}

func (v *memView) sorted() []domain.Set {
	out := make([]domain.Set, 0, len(v.m.sets))
	for _, s := range v.m.sets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spec < out[j].Spec })
	return out
}

func (v *memView) List(ctx context.Context, after string, limit int) ([]domain.Set, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []domain.Set
	for _, s := range v.sorted() {
		if s.Spec <= after {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

func (v *memView) All(ctx context.Context) ([]domain.Set, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.sorted(), nil
}

func (v *memView) Count(ctx context.Context) (int64, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return int64(len(v.m.sets)), nil
}

func (v *memView) Insert(ctx context.Context, s domain.Set) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.sets[s.Spec]; ok {
		return perr.Newf(perr.ErrorCodeDuplicateKey, "set %q already exists", s.Spec)
	}
	v.m.sets[s.Spec] = s
	mem.Track(v.q, func() {
		v.m.mu.Lock()
		delete(v.m.sets, s.Spec)
		v.m.mu.Unlock()
	})
	return nil
}

func (v *memView) Update(ctx context.Context, s domain.Set) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	prev, ok := v.m.sets[s.Spec]
	if !ok {
		return perr.NotFoundf("set %q not found", s.Spec)
	}
	s.CreatedAt = prev.CreatedAt
	v.m.sets[s.Spec] = s
	mem.Track(v.q, func() {
		v.m.mu.Lock()
		v.m.sets[s.Spec] = prev
		v.m.mu.Unlock()
	})
	return nil
}

func (v *memView) Delete(ctx context.Context, spec string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	prev, ok := v.m.sets[spec]
	if !ok {
		return perr.NotFoundf("set %q not found", spec)
	}
	delete(v.m.sets, spec)
	mem.Track(v.q, func() {
		v.m.mu.Lock()
		v.m.sets[spec] = prev
		v.m.mu.Unlock()
	})
	return nil
}

func (v *memView) HasChildren(ctx context.Context, spec string) (bool, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	for k := range v.m.sets {
		if strings.HasPrefix(k, spec+":") {
			return true, nil
		}
	}
	return false, nil
}
