// Package module wires the set registry into the server using modkit
package module

import (
	"context"
	"net/http"

	"oaiserver/internal/core/query"
	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/cache"
	"oaiserver/internal/platform/store/mem"
	str "oaiserver/internal/platform/strings"
	"oaiserver/internal/services/sets/domain"
	setshttp "oaiserver/internal/services/sets/http"
	"oaiserver/internal/services/sets/repo"
	"oaiserver/internal/services/sets/service"
)

// Ports exposed by the sets module
type Ports struct {
	Registry domain.RegistryPort
	Admin    domain.AdminPort
	// Service is the concrete registry, for late wiring of records ports
	Service *service.Service
}

// Module implements modkit.Module for the set registry
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	svc      *service.Service
	ports    Ports
}

// New constructs the sets module; an unknown query parser fails here
func New(ctx context.Context, deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("sets"), modkit.WithPrefix("/sets")}, opts...)...)
	o := FromConfig(deps.Cfg)

	parsers, err := query.Default()
	if err != nil {
		return nil, err
	}
	parser, err := parsers.Get(o.QueryParser)
	if err != nil {
		return nil, err
	}
	snapshots, err := cache.Open[[]domain.Set](ctx, cache.ConfigFrom(deps.Cfg, o.CacheKey))
	if err != nil {
		return nil, err
	}

	svc := service.New(deps.PG, binderFor(deps.PG), query.Memo(parser, o.ParseCacheSize, o.ParseCacheTTL), snapshots,
		service.Config{MaxDepth: o.MaxDepth, Rescan: o.Rescan},
		service.WithClock(deps.Now()),
		service.WithMetrics(deps.Metrics),
	)

	m := &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
		ports:  Ports{Registry: svc, Admin: svc, Service: svc},
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		setshttp.Register(r, m.svc)
		external(r)
	}
	return m, nil
}

// binderFor picks map backed storage when no database is configured
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

// Service returns the registry service
func (m *Module) Service() *service.Service { return m.svc }
