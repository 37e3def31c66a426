// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"context"
	"net/http"

	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	str "oaiserver/internal/platform/strings"
	metahttp "oaiserver/internal/services/api/meta/http"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"
)

// Module implements the modkit.Module interface
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	deps     metahttp.Deps
}

// New constructs a meta module; sr and rr may be nil
func New(deps modkit.Deps, service string, sr sets.RegistryPort, rr records.ReaderPort, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	clock := deps.Now()
	d := metahttp.Deps{
		ServiceName: service,
		StartedAt:   clock.Now(),
		Now:         clock.Now,
		PG:          deps.PG,
	}
	// an untyped nil keeps the ch check skipped
	if deps.CH != nil {
		d.CH = deps.CH
	}
	if sr != nil {
		d.Sets = sr.Count
	}
	if rr != nil {
		d.Records = func(ctx context.Context) (int64, error) { return rr.Count(ctx, records.Filter{}) }
	}

	m := &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, deps: d}
	external := b.Register
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, m.deps)
		external(r)
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// MountProbe mounts the readiness probe at path on r, outside the module prefix
func (m *Module) MountProbe(r httpkit.Router, path string) {
	metahttp.RegisterProbe(r, path, m.deps)
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "meta") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
