package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store/mem"
	ptime "oaiserver/internal/platform/time"
	nsdom "oaiserver/internal/services/nightshift/domain"
	"oaiserver/internal/services/nightshift/guardrails"
	nsrepo "oaiserver/internal/services/nightshift/repo"
	records "oaiserver/internal/services/records/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

type stubAdmin struct {
	purged     int64
	before     time.Time
	stats      records.Stats
	err        error
	recomputes int
}

func (s *stubAdmin) Recompute(context.Context) (records.Stats, error) {
	s.recomputes++
	return s.stats, s.err
}

func (s *stubAdmin) Purge(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return s.purged, s.err
}

type fixture struct {
	db    *mem.DB
	repo  *nsrepo.Memory
	admin *stubAdmin
	svc   *Service
}

func newFixture(cfg Config) *fixture {
	db, rp, admin := mem.New(), nsrepo.NewMemory(), &stubAdmin{}
	clock := ptime.Fixed(now)
	lease := guardrails.MakeLease(db, rp, "test", time.Hour, clock)
	return &fixture{db: db, repo: rp, admin: admin, svc: New(db, rp, lease, admin, cfg, clock)}
}

func TestPurgeRecordsOutcome(t *testing.T) {
	f := newFixture(Config{Retention: 48 * time.Hour})
	f.admin.purged = 4

	run, err := f.svc.RunJob(context.Background(), nsdom.JobPurge)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), f.admin.before)
	assert.Equal(t, nsdom.StatusOK, run.Status)
	assert.Equal(t, "purged 4 before 2026-02-28T04:00:00Z", run.Detail)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, now, *run.FinishedAt)
	assert.Equal(t, now, run.LeaseExpiresAt, "finishing releases the lease")
}

func TestRecomputeFailureIsStored(t *testing.T) {
	f := newFixture(Config{})
	f.admin.err = errors.New("search backend down")

	run, err := f.svc.RunJob(context.Background(), nsdom.JobRecompute)
	require.Error(t, err)
	assert.Equal(t, nsdom.StatusError, run.Status)
	assert.Equal(t, "search backend down", run.Detail)

	// the lease was released so the job can run again at once
	f.admin.err = nil
	f.admin.stats = records.Stats{Scanned: 2, Changed: 1, Unchanged: 1}
	run, err = f.svc.RunJob(context.Background(), nsdom.JobRecompute)
	require.NoError(t, err)
	assert.Equal(t, "scanned 2 changed 1 unchanged 1 failed 0", run.Detail)
	assert.Equal(t, 2, f.admin.recomputes)
}

func TestHeldLeaseSkips(t *testing.T) {
	f := newFixture(Config{})
	require.NoError(t, f.db.Tx(context.Background(), func(q repokit.Queryer) error {
		ok, err := f.repo.Bind(q).Claim(context.Background(), nsdom.JobRecompute, "other:1", now.Add(-time.Minute), time.Hour)
		require.True(t, ok)
		return err
	}))

	run, err := f.svc.RunJob(context.Background(), nsdom.JobRecompute)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeConflict))
	assert.Equal(t, "other:1", run.Owner)
	assert.Equal(t, nsdom.StatusRunning, run.Status)
	assert.Zero(t, f.admin.recomputes)
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	f := newFixture(Config{})
	require.NoError(t, f.db.Tx(context.Background(), func(q repokit.Queryer) error {
		_, err := f.repo.Bind(q).Claim(context.Background(), nsdom.JobPurge, "crashed:9", now.Add(-2*time.Hour), time.Hour)
		return err
	}))

	run, err := f.svc.RunJob(context.Background(), nsdom.JobPurge)
	require.NoError(t, err)
	assert.NotEqual(t, "crashed:9", run.Owner)
	assert.Equal(t, nsdom.StatusOK, run.Status)
}

func TestUnknownJob(t *testing.T) {
	f := newFixture(Config{})
	_, err := f.svc.RunJob(context.Background(), nsdom.Job("vacuum"))
	assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))

	runs, err := f.svc.Runs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(Config{Every: time.Millisecond, Jobs: []nsdom.Job{nsdom.JobRecompute}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		runs, err := f.svc.Runs(context.Background())
		return err == nil && len(runs) == 1
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
