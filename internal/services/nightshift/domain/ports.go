package domain

import (
	"context"
	"time"
)

// RunnerPort is the public entrypoint exposed by the module
type RunnerPort interface {
	// RunJob executes one job now under its lease; a held lease is a clean skip
	RunJob(ctx context.Context, job Job) (Run, error)

	// Runs lists the last run of every job that has run at least once
	Runs(ctx context.Context) ([]Run, error)
}

// StorageRepo keeps one lease and outcome row per job
type StorageRepo interface {
	// Claim takes the job lease when it is free or expired; ok is false when held
	Claim(ctx context.Context, job Job, owner string, now time.Time, ttl time.Duration) (ok bool, err error)

	// Finish stores the outcome and releases the lease
	Finish(ctx context.Context, job Job, owner string, fin Finish) error

	// Runs returns every job row ordered by job name
	Runs(ctx context.Context) ([]Run, error)
}
