// Package repo provides the nightshift lease and outcome storage
package repo

import (
	"context"
	"time"

	"oaiserver/internal/modkit/repokit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/store"
	nsdom "oaiserver/internal/services/nightshift/domain"
)

type (
	pg       struct{ q repokit.Queryer }
	pgBinder struct{}
)

// NewPG returns a binder over the maintenance_runs table
func NewPG() repokit.Binder[nsdom.StorageRepo] { return pgBinder{} }

// Bind implements repokit.Binder
func (pgBinder) Bind(q repokit.Queryer) nsdom.StorageRepo {
	return &pg{q: repokit.RequireQueryer(q)}
}

// Claim inserts the job row or takes over an expired lease; a live lease affects no row
func (s *pg) Claim(ctx context.Context, job nsdom.Job, owner string, now time.Time, ttl time.Duration) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO maintenance_runs AS r (job, owner, status, detail, started_at, finished_at, lease_expires_at)
		VALUES ($1, $2, 'running', '', $3, NULL, $4)
		ON CONFLICT (job) DO UPDATE
		   SET owner = EXCLUDED.owner,
		       status = 'running',
		       detail = '',
		       started_at = EXCLUDED.started_at,
		       finished_at = NULL,
		       lease_expires_at = EXCLUDED.lease_expires_at
		 WHERE r.lease_expires_at <= EXCLUDED.started_at`,
		string(job), owner, now.UTC(), now.Add(ttl).UTC())
	if err != nil {
		return false, perr.FromPostgres(err, "claim maintenance lease")
	}
	return tag.RowsAffected() == 1, nil
}

// Finish stores the outcome; a lease taken over by another owner is a conflict
func (s *pg) Finish(ctx context.Context, job nsdom.Job, owner string, fin nsdom.Finish) error {
	err := store.ExecOne(ctx, s.q, `
		UPDATE maintenance_runs
		   SET status = $3, detail = $4, finished_at = $5, lease_expires_at = $5
		 WHERE job = $1 AND owner = $2`,
		string(job), owner, fin.Status, fin.Detail, fin.At.UTC())
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.Conflictf("maintenance lease for %s is no longer held by %s", job, owner)
	}
	return perr.FromPostgres(err, "finish maintenance run")
}

// Runs lists every job row
func (s *pg) Runs(ctx context.Context) ([]nsdom.Run, error) {
	out, err := store.Many(ctx, s.q, func(r store.Row) (nsdom.Run, error) {
		var run nsdom.Run
		var job string
		err := r.Scan(&job, &run.Owner, &run.Status, &run.Detail, &run.StartedAt, &run.FinishedAt, &run.LeaseExpiresAt)
		run.Job = nsdom.Job(job)
		return run, err
	}, `
		SELECT job, owner, status, detail, started_at, finished_at, lease_expires_at
		FROM maintenance_runs
		ORDER BY job`)
	return out, perr.FromPostgres(err, "list maintenance runs")
}
