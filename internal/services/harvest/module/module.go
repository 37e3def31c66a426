// Package module wires the harvest endpoint into the server using modkit
package module

import (
	"oaiserver/internal/core/formats"
	"oaiserver/internal/core/ident"
	"oaiserver/internal/core/token"
	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	str "oaiserver/internal/platform/strings"
	"oaiserver/internal/services/harvest/domain"
	harvesthttp "oaiserver/internal/services/harvest/http"
	"oaiserver/internal/services/harvest/service"
	records "oaiserver/internal/services/records/domain"
	sets "oaiserver/internal/services/sets/domain"
)

// Ports exposed by the harvest module
type Ports struct {
	Dispatcher domain.Dispatcher
}

// Module implements modkit.Module for the harvest endpoint
type Module struct {
	name    string
	baseURL string
	svc     *service.Service
	ports   Ports
}

// New builds the endpoint; an unknown metadata format name fails here
// sink may be nil
func New(deps modkit.Deps, rs records.ReaderPort, ss sets.RegistryPort, ids *ident.Provider, sink domain.EventSink, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("harvest")}, opts...)...)
	o := FromConfig(deps.Cfg)

	fs, err := formats.Builtin().Select(o.MetadataFormats)
	if err != nil {
		return nil, err
	}
	pages := service.NewPaginator(rs, ss, fs, token.New(o.Token, deps.Now()),
		service.PageConfig{
			PageSize:     o.PageSize,
			Deleted:      o.DeletedRecord,
			Retention:    o.DeletedRetention,
			QueryTimeout: o.ListTimeout,
		},
		deps.Now(), deps.Metrics,
	)
	var svcOpts []service.Option
	if sink != nil {
		svcOpts = append(svcOpts, service.WithSink(sink))
	}
	svc := service.New(pages, ids, service.IdentifyConfig{
		RepositoryName:  o.RepositoryName,
		BaseURL:         o.BaseURL,
		ProtocolVersion: o.ProtocolVersion,
		AdminEmails:     o.AdminEmails,
		Compressions:    o.Compressions,
	}, svcOpts...)

	return &Module{name: b.Name, baseURL: o.BaseURL, svc: svc, ports: Ports{Dispatcher: svc}}, nil
}

// MountRoutes implements modkit.Module; the endpoint lives at the server root
func (m *Module) MountRoutes(r httpkit.Router) {
	harvesthttp.Register(r, m.svc, m.baseURL)
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Service returns the dispatcher
func (m *Module) Service() *service.Service { return m.svc }
