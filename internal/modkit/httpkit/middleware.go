package httpkit

import (
	"net/http"

	"oaiserver/internal/platform/net/middleware"
)

// CommonStack returns the baseline middleware for JSON admin modules
// request ids, recovery and access logging are applied globally in main
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.NoCache(),
		middleware.StripSlashes(),
	}
}
