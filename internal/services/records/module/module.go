// Package module wires the records service into the server using modkit
package module

import (
	"net/http"

	"oaiserver/internal/core/ident"
	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/store/mem"
	str "oaiserver/internal/platform/strings"
	"oaiserver/internal/services/records/domain"
	recordshttp "oaiserver/internal/services/records/http"
	"oaiserver/internal/services/records/repo"
	"oaiserver/internal/services/records/service"
)

// Ports exposed by the records module
type Ports struct {
	Reader domain.ReaderPort
	Admin  domain.AdminPort
	// Service is the concrete service, for hook registration and late wiring
	Service *service.Service
	IDs     *ident.Provider
}

// Module implements modkit.Module for records
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	svc      *service.Service
	ports    Ports
}

// New constructs the records module
// the set checker and annotator are attached later through Service().Use
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("records"), modkit.WithPrefix("/records")}, opts...)...)
	o := FromConfig(deps.Cfg)
	ids := ident.New(o.IDs)

	svc := service.New(deps.PG, binderFor(deps.PG), ids,
		service.Config{BatchSize: o.RecomputeBatch, Workers: o.RecomputeWorkers},
		service.WithClock(deps.Now()),
		service.WithMetrics(deps.Metrics),
	)

	m := &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
		ports:  Ports{Reader: svc, Admin: svc, Service: svc, IDs: ids},
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		recordshttp.Register(r, m.svc)
		external(r)
	}
	return m
}

func binderFor(db repokit.TxRunner) repokit.Binder[repo.Storage] {
	if _, ok := db.(*mem.DB); ok {
		return repo.NewMemory()
	}
	return repo.NewPG()
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Service returns the records service
func (m *Module) Service() *service.Service { return m.svc }
