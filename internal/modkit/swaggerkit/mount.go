// Package swaggerkit mounts Swagger UI and the admin API spec
package swaggerkit

import (
	"net/http"

	phttp "oaiserver/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Base is where the UI and doc.json live
const Base = "/api/docs"

// Mount the Swagger UI and JSON spec if enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get(Base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, Base+"/", http.StatusPermanentRedirect)
	})
	r.Get(Base+"/doc.json", serveDocJSON())
	r.Handle(Base+"/*", httpSwagger.Handler(
		httpSwagger.InstanceName("oaiserver"),
		httpSwagger.URL(Base+"/doc.json"),
	))
}
