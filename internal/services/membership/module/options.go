package module

import (
	"time"

	"oaiserver/internal/platform/config"
)

// Options holds configuration settings for membership evaluation
type Options struct {
	SearchTimeout   time.Duration
	RegisterSignals bool
	FailOnTransient bool
}

// FromConfig reads OAI_SEARCH_TIMEOUT, OAI_REGISTER_RECORD_SIGNALS and OAI_FAIL_ON_TRANSIENT
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("OAI_")
	return Options{
		SearchTimeout:   oc.MayDuration("SEARCH_TIMEOUT", 2*time.Second),
		RegisterSignals: oc.MayBool("REGISTER_RECORD_SIGNALS", true),
		FailOnTransient: oc.MayBool("FAIL_ON_TRANSIENT", true),
	}
}
