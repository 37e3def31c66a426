package module

import (
	"oaiserver/internal/core/ident"
	"oaiserver/internal/platform/config"
)

// Options holds configuration settings for the records module
type Options struct {
	RecomputeBatch   int
	RecomputeWorkers int
	IDs              ident.Config
}

// FromConfig reads OAI_RECOMPUTE_BATCH, OAI_RECOMPUTE_WORKERS and OAI_ID_PREFIX
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("OAI_")
	return Options{
		RecomputeBatch:   oc.MayInt("RECOMPUTE_BATCH", 500),
		RecomputeWorkers: oc.MayInt("RECOMPUTE_WORKERS", 4),
		IDs:              ident.ConfigFrom(oc),
	}
}
