// Package module wires the maintenance scheduler into the server using modkit
package module

import (
	"context"
	"net/http"
	"time"

	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/store/mem"
	str "oaiserver/internal/platform/strings"
	nsdom "oaiserver/internal/services/nightshift/domain"
	"oaiserver/internal/services/nightshift/guardrails"
	nshttp "oaiserver/internal/services/nightshift/http"
	nsrepo "oaiserver/internal/services/nightshift/repo"
	nsservice "oaiserver/internal/services/nightshift/service"
)

// Ports exported by the nightshift module
type Ports struct {
	Runner nsdom.RunnerPort
}

// Module implements modkit.Module for nightshift
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	enabled  bool
	svc      *nsservice.Service
	ports    Ports
}

// New constructs the module; retention is the tombstone window purge keeps
func New(deps modkit.Deps, admin nsservice.Maintainer, retention time.Duration, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("nightshift"), modkit.WithPrefix("/nightshift")}, opts...)...)
	o := FromConfig(deps.Cfg)

	binder := binderFor(deps.PG)
	lease := guardrails.MakeLease(deps.PG, binder, "nightshift", o.LeaseTTL, deps.Now())
	svc := nsservice.New(deps.PG, binder, lease, admin, nsservice.Config{
		Every:     o.Every,
		Jobs:      o.Jobs,
		Retention: retention,
	}, deps.Now())

	m := &Module{
		name:    b.Name,
		prefix:  b.Prefix,
		mws:     b.Mw,
		enabled: o.Enabled,
		svc:     svc,
		ports:   Ports{Runner: svc},
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		nshttp.Register(r, m.svc)
		external(r)
	}
	return m
}

func binderFor(db repokit.TxRunner) repokit.Binder[nsdom.StorageRepo] {
	if _, ok := db.(*mem.DB); ok {
		return nsrepo.NewMemory()
	}
	return nsrepo.NewPG()
}

// Run drives the schedule until ctx ends; a disabled scheduler just waits
func (m *Module) Run(ctx context.Context) error {
	if !m.enabled {
		logger.Named("nightshift").Info().Msg("nightshift scheduler disabled")
		<-ctx.Done()
		return nil
	}
	return m.svc.Run(ctx)
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
