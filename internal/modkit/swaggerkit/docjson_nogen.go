//go:build !swag

package swaggerkit

import "net/http"

// skeleton keeps the UI loadable when the generated docs are not compiled in
const skeleton = `{"openapi":"3.0.3","info":{"title":"oaiserver admin API","version":"0.0.0"},` +
	`"servers":[{"url":"/api/v1"}],"paths":{}}`

var docReader = func() string { return skeleton }

// serveDocJSON (no-swag build) serves the skeleton as is
func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(docReader()))
	}
}
