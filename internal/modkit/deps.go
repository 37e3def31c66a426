package modkit

import (
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/config"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	"oaiserver/internal/platform/store"
	ptime "oaiserver/internal/platform/time"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// PG runs units of work; a *mem.DB when no database is configured
	PG repokit.TxRunner
	// CH is optional and nil unless a clickhouse URL is set
	CH store.Clickhouse

	Clock   ptime.Clock
	Metrics *metrics.Metrics
}

// Now returns the deps clock, falling back to the system clock
func (d Deps) Now() ptime.Clock {
	if d.Clock == nil {
		return ptime.System
	}
	return d.Clock
}
