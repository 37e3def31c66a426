// Package domain defines the types and ports for the harvest log
package domain

import "time"

// Window is a half open time range [Since, Until)
type Window struct {
	Since time.Time
	Until time.Time
}

// Entry is one logged protocol request
type Entry struct {
	At       time.Time
	Verb     string
	Outcome  string
	Set      string
	Prefix   string
	Items    int
	Resumed  bool
	Duration time.Duration
}

// VerbStat aggregates requests by verb and outcome
type VerbStat struct {
	Verb      string  `json:"verb"`
	Outcome   string  `json:"outcome"`
	Requests  uint64  `json:"requests"`
	Items     uint64  `json:"items"`
	AvgMillis float64 `json:"avg_ms"`
}

// SetStat counts items harvested per set
type SetStat struct {
	Set      string `json:"set"`
	Requests uint64 `json:"requests"`
	Items    uint64 `json:"items"`
}
