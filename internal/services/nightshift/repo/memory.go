package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store/mem"
	nsdom "oaiserver/internal/services/nightshift/domain"
)

// Memory keeps job rows in a map; bind it to a *mem.DB or *mem.Tx
type Memory struct {
	mu   sync.Mutex
	runs map[nsdom.Job]nsdom.Run
}

// NewMemory returns an empty memory store
func NewMemory() *Memory { return &Memory{runs: map[nsdom.Job]nsdom.Run{}} }

// Bind implements repokit.Binder
func (m *Memory) Bind(q repokit.Queryer) nsdom.StorageRepo { return &memView{m: m, q: q} }

type memView struct {
	m *Memory
	q repokit.Queryer
}

func (v *memView) Claim(_ context.Context, job nsdom.Job, owner string, now time.Time, ttl time.Duration) (bool, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	prev, had := v.m.runs[job]
	if had && prev.LeaseExpiresAt.After(now) {
		return false, nil
	}
	v.m.runs[job] = nsdom.Run{
		Job:            job,
		Owner:          owner,
		Status:         nsdom.StatusRunning,
		StartedAt:      now,
		LeaseExpiresAt: now.Add(ttl),
	}
	v.undo(job, prev, had)
	return true, nil
}

func (v *memView) Finish(_ context.Context, job nsdom.Job, owner string, fin nsdom.Finish) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	prev, ok := v.m.runs[job]
	if !ok || prev.Owner != owner {
		return perr.Conflictf("maintenance lease for %s is no longer held by %s", job, owner)
	}
	next := prev
	at := fin.At
	next.Status, next.Detail, next.FinishedAt, next.LeaseExpiresAt = fin.Status, fin.Detail, &at, at
	v.m.runs[job] = next
	v.undo(job, prev, true)
	return nil
}

func (v *memView) Runs(context.Context) ([]nsdom.Run, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	out := make([]nsdom.Run, 0, len(v.m.runs))
	for _, r := range v.m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out, nil
}

// undo restores the previous row if the surrounding transaction fails
func (v *memView) undo(job nsdom.Job, prev nsdom.Run, had bool) {
	mem.Track(v.q, func() {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
		if had {
			v.m.runs[job] = prev
		} else {
			delete(v.m.runs, job)
		}
	})
}
