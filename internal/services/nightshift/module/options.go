package module

import (
	"time"

	"oaiserver/internal/platform/config"
	nsdom "oaiserver/internal/services/nightshift/domain"
)

// Options for the nightshift module
type Options struct {
	Enabled  bool
	Every    time.Duration
	Jobs     []nsdom.Job
	LeaseTTL time.Duration
}

// FromConfig fills options from environment
// CORE_NIGHTSHIFT_ENABLED (default true) starts the scheduler loop
// CORE_NIGHTSHIFT_EVERY (default 24h) is the pause between passes
// CORE_NIGHTSHIFT_JOBS is a csv of purge and recompute; recompute is added by
// default when records no longer re-annotate on write (OAI_REGISTER_RECORD_SIGNALS=false)
// or set changes rescan lazily (OAI_SETS_RESCAN=lazy)
// CORE_NIGHTSHIFT_LEASE_TTL (default 30m) bounds how long a crashed replica holds a job
func FromConfig(cfg config.Conf) Options {
	n := cfg.Prefix("CORE_NIGHTSHIFT_")
	oc := cfg.Prefix("OAI_")

	def := []string{string(nsdom.JobPurge)}
	if !oc.MayBool("REGISTER_RECORD_SIGNALS", true) || oc.MayEnum("SETS_RESCAN", "eager", "eager", "lazy") == "lazy" {
		def = append(def, string(nsdom.JobRecompute))
	}
	var jobs []nsdom.Job
	for _, j := range n.MayCSV("JOBS", def) {
		if job := nsdom.Job(j); job.Valid() {
			jobs = append(jobs, job)
		}
	}
	return Options{
		Enabled:  n.MayBool("ENABLED", true),
		Every:    n.MayDuration("EVERY", 24*time.Hour),
		Jobs:     jobs,
		LeaseTTL: n.MayDuration("LEASE_TTL", 30*time.Minute),
	}
}
