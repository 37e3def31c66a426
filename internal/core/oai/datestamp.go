package oai

import (
	"time"

	perr "oaiserver/internal/platform/errors"
)

// Granularity is the precision of a datestamp
type Granularity string

// Supported granularities; the repository itself publishes seconds
const (
	GranularityDay     Granularity = "YYYY-MM-DD"
	GranularitySeconds Granularity = "YYYY-MM-DDThh:mm:ssZ"
)

const (
	dayLayout     = "2006-01-02"
	secondsLayout = "2006-01-02T15:04:05Z"
)

// FormatDatestamp renders t in UTC at seconds granularity
func FormatDatestamp(t time.Time) string { return t.UTC().Format(secondsLayout) }

// ParseDatestamp accepts either granularity and reports which one matched
func ParseDatestamp(s string) (time.Time, Granularity, error) {
	if t, err := time.Parse(secondsLayout, s); err == nil {
		return t, GranularitySeconds, nil
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, GranularityDay, nil
	}
	return time.Time{}, "", perr.Newf(perr.ErrorCodeBadArgument, "illegal datestamp %q", s)
}

// Window is an inclusive datestamp range; nil bounds are open
type Window struct {
	From  *time.Time `json:"from,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// Contains reports whether t falls inside w
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.Until != nil && t.After(*w.Until) {
		return false
	}
	return true
}

// ParseWindow validates the from and until arguments
// both must share a granularity and from must not be after until;
// until is widened to the last instant its granularity covers
func ParseWindow(from, until string) (Window, error) {
	var w Window
	var fg, ug Granularity
	if from != "" {
		t, g, err := ParseDatestamp(from)
		if err != nil {
			return w, perr.WithField(err, ArgFrom)
		}
		w.From, fg = &t, g
	}
	if until != "" {
		t, g, err := ParseDatestamp(until)
		if err != nil {
			return w, perr.WithField(err, ArgUntil)
		}
		w.Until, ug = &t, g
	}
	if w.From != nil && w.Until != nil {
		if fg != ug {
			return Window{}, perr.Newf(perr.ErrorCodeBadArgument, "from and until must share a granularity")
		}
		if w.From.After(*w.Until) {
			return Window{}, perr.Newf(perr.ErrorCodeBadArgument, "from %s is after until %s", from, until)
		}
	}
	if w.Until != nil {
		step := time.Second
		if ug == GranularityDay {
			step = 24 * time.Hour
		}
		end := w.Until.Add(step - time.Nanosecond)
		w.Until = &end
	}
	return w, nil
}
