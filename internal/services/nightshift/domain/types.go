// Package domain defines the maintenance jobs nightshift schedules
package domain

import (
	"context"
	"time"
)

// Job names a maintenance task
type Job string

// Known jobs
const (
	// JobRecompute re-evaluates set membership for every live record
	JobRecompute Job = "recompute"
	// JobPurge hard deletes tombstones older than the retention window
	JobPurge Job = "purge"
)

// Valid reports whether j is a known job
func (j Job) Valid() bool { return j == JobRecompute || j == JobPurge }

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Run is the book-keeping row for the last execution of a job
type Run struct {
	Job        Job        `json:"job"`
	Owner      string     `json:"owner"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// LeaseExpiresAt is when another replica may claim the job again
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
}

// Finish records the outcome of a run
type Finish struct {
	Status string
	Detail string
	At     time.Time
}

// Work is one job body; the returned detail is stored on the run
type Work func(ctx context.Context) (detail string, err error)
