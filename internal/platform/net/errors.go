package net

import (
	"net/http"
	"strconv"
	"time"

	perr "oaiserver/internal/platform/errors"
)

// DefaultRetryAfter is advertised to clients on transient failures
const DefaultRetryAfter = 30 * time.Second

// HTTPStatus maps a project error to http status
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return perr.HTTPStatus(err)
}

// SetRetryAfter adds a Retry-After header when err is transient
// returns true when the header was written
func SetRetryAfter(h http.Header, err error, after time.Duration) bool {
	if err == nil || !perr.Retryable(err) {
		return false
	}
	if after <= 0 {
		after = DefaultRetryAfter
	}
	h.Set("Retry-After", strconv.Itoa(int(after/time.Second)))
	return true
}
