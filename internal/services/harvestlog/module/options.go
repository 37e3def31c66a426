package module

import (
	"time"

	"oaiserver/internal/platform/config"
)

// Options holds configuration settings for the harvest log module
type Options struct {
	Enabled    bool
	Table      string
	Batch      int
	Buffer     int
	FlushEvery time.Duration
	HardLimit  int
}

// FromConfig reads HARVESTLOG_ENABLED, HARVESTLOG_TABLE, HARVESTLOG_BATCH,
// HARVESTLOG_BUFFER, HARVESTLOG_FLUSH and HARVESTLOG_HARD_LIMIT
func FromConfig(cfg config.Conf) Options {
	hc := cfg.Prefix("HARVESTLOG_")
	return Options{
		Enabled:    hc.MayBool("ENABLED", true),
		Table:      hc.MayString("TABLE", "oai_harvest_events"),
		Batch:      hc.MayInt("BATCH", 500),
		Buffer:     hc.MayInt("BUFFER", 4096),
		FlushEvery: hc.MayDuration("FLUSH", 2*time.Second),
		HardLimit:  hc.MayInt("HARD_LIMIT", 100),
	}
}
