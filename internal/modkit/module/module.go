// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "oaiserver/internal/platform/net/http"
)

// Module defines the minimal contract used by modkit
// kept in its own package so a module exporting its own ports type avoids import knots
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
