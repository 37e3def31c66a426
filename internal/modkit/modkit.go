// Package modkit provides module wiring and core deps
package modkit

import "oaiserver/internal/modkit/module"

// Module is the common surface for modules that can mount routes and expose ports
type Module = module.Module
