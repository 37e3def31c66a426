// Package service runs the periodic maintenance jobs
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	ptime "oaiserver/internal/platform/time"
	nsdom "oaiserver/internal/services/nightshift/domain"
	"oaiserver/internal/services/nightshift/guardrails"
	records "oaiserver/internal/services/records/domain"
)

// Maintainer is the slice of the records admin port the jobs need
type Maintainer interface {
	Recompute(ctx context.Context) (records.Stats, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Config controls the schedule
type Config struct {
	// Every is the pause between passes; zero disables the loop
	Every time.Duration

	// Jobs run in order on every pass
	Jobs []nsdom.Job

	// Retention is how long tombstones are kept before purge
	Retention time.Duration
}

// Service runs jobs under the shared lease
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[nsdom.StorageRepo]
	lease  guardrails.Lease
	admin  Maintainer
	cfg    Config
	clock  ptime.Clock
}

// New constructs the service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[nsdom.StorageRepo],
	lease guardrails.Lease,
	admin Maintainer,
	cfg Config,
	clock ptime.Clock,
) *Service {
	if db == nil {
		panic("nightshift.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("nightshift.Service requires a non nil Repo binder")
	}
	if lease == nil || admin == nil {
		panic("nightshift.Service requires a lease and a records admin port")
	}
	if clock == nil {
		clock = ptime.System
	}
	return &Service{db: db, binder: binder, lease: lease, admin: admin, cfg: cfg, clock: clock}
}

// RunJob implements domain.RunnerPort
func (s *Service) RunJob(ctx context.Context, job nsdom.Job) (nsdom.Run, error) {
	if !job.Valid() {
		return nsdom.Run{}, perr.WithField(perr.NotFoundf("unknown job %q", job), "job")
	}
	l := logger.C(ctx).With().Str("mod", "nightshift").Str("job", string(job)).Logger()
	l.Info().Msg("nightshift: job start")

	err := s.lease(ctx, job, s.work(job))
	switch {
	case errors.Is(err, guardrails.ErrLeaseHeld):
		l.Debug().Msg("nightshift: lease held elsewhere; clean skip")
		run, _ := s.last(ctx, job)
		return run, perr.Conflictf("job %s is already running", job)
	case err != nil:
		l.Error().Err(err).Msg("nightshift: job failed")
	default:
		l.Info().Msg("nightshift: job done")
	}
	run, lerr := s.last(ctx, job)
	if lerr != nil {
		return nsdom.Run{}, errors.Join(err, lerr)
	}
	return run, err
}

// Runs implements domain.RunnerPort
func (s *Service) Runs(ctx context.Context) ([]nsdom.Run, error) {
	var out []nsdom.Run
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).Runs(ctx)
		return err
	})
	return out, err
}

// Run executes every configured job once per interval until ctx ends
// the first pass starts after one full interval
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Every <= 0 || len(s.cfg.Jobs) == 0 {
		<-ctx.Done()
		return nil
	}
	tick := time.NewTicker(s.cfg.Every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			s.pass(ctx)
		}
	}
}

// pass runs each job once; failures are logged and the pass continues
func (s *Service) pass(ctx context.Context) {
	for _, job := range s.cfg.Jobs {
		if ctx.Err() != nil {
			return
		}
		_, _ = s.RunJob(ctx, job)
	}
}

func (s *Service) work(job nsdom.Job) nsdom.Work {
	switch job {
	case nsdom.JobPurge:
		return func(ctx context.Context) (string, error) {
			before := s.clock.Now().Add(-s.cfg.Retention).UTC()
			n, err := s.admin.Purge(ctx, before)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("purged %d before %s", n, before.Format(time.RFC3339)), nil
		}
	default:
		return func(ctx context.Context) (string, error) {
			st, err := s.admin.Recompute(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("scanned %d changed %d unchanged %d failed %d",
				st.Scanned, st.Changed, st.Unchanged, st.Failed), nil
		}
	}
}

func (s *Service) last(ctx context.Context, job nsdom.Job) (nsdom.Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nsdom.Run{}, err
	}
	for _, r := range runs {
		if r.Job == job {
			return r, nil
		}
	}
	return nsdom.Run{}, perr.NotFoundf("job %s has not run", job)
}
