// Package module wires the harvest log into the server using modkit
package module

import (
	"context"
	"net/http"

	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/platform/logger"
	str "oaiserver/internal/platform/strings"
	harvest "oaiserver/internal/services/harvest/domain"
	"oaiserver/internal/services/harvestlog/domain"
	loghttp "oaiserver/internal/services/harvestlog/http"
	"oaiserver/internal/services/harvestlog/repo"
	"oaiserver/internal/services/harvestlog/service"
)

// Ports exposed by the harvest log module
type Ports struct {
	// Sink is nil when the log is disabled
	Sink  harvest.EventSink
	Query domain.QueryPort
}

// Module implements modkit.Module for the harvest log
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	svc      *service.Service
	ports    Ports
}

// New constructs the module; entries go to clickhouse when deps.CH is set
// and to memory otherwise
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("harvestlog"), modkit.WithPrefix("/harvestlog")}, opts...)...)
	o := FromConfig(deps.Cfg)

	var storage repo.Storage = repo.NewMemory()
	if deps.CH != nil {
		ch, err := repo.NewCH(deps.CH, o.Table)
		if err != nil {
			return nil, err
		}
		storage = ch
	} else {
		logger.Named("harvestlog").Info().Msg("clickhouse not configured; harvest log kept in memory")
	}

	svc := service.New(storage, service.Config{
		Batch:      o.Batch,
		Buffer:     o.Buffer,
		FlushEvery: o.FlushEvery,
		HardLimit:  o.HardLimit,
	})
	m := &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
		ports:  Ports{Query: svc},
	}
	if o.Enabled {
		m.ports.Sink = svc
	}
	external := b.Register
	now := deps.Now()
	m.register = func(r httpkit.Router) {
		loghttp.Register(r, m.svc, now.Now)
		external(r)
	}
	return m, nil
}

// Run drains the event buffer until ctx ends
func (m *Module) Run(ctx context.Context) error { return m.svc.Run(ctx) }

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
