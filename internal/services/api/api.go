// Package api assembles the harvest endpoint and the admin API
package api

import (
	"context"

	"oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/modkit/module"
	"oaiserver/internal/modkit/swaggerkit"
	"oaiserver/internal/platform/config"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	phttp "oaiserver/internal/platform/net/http"
	"oaiserver/internal/platform/store"
	"oaiserver/internal/platform/store/mem"
	ptime "oaiserver/internal/platform/time"

	"golang.org/x/sync/errgroup"

	metamod "oaiserver/internal/services/api/meta/module"
	harvestmod "oaiserver/internal/services/harvest/module"
	harvestlogmod "oaiserver/internal/services/harvestlog/module"
	membershipmod "oaiserver/internal/services/membership/module"
	nightshiftmod "oaiserver/internal/services/nightshift/module"
	recordsmod "oaiserver/internal/services/records/module"
	setsmod "oaiserver/internal/services/sets/module"
)

// Options are the API options
type Options struct {
	// Service names the binary in meta responses
	Service string
	Config  config.Conf
	// Store may be nil or have a nil PG; an in-memory database is used then
	Store   *store.Store
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Clock   ptime.Clock

	EnableSwagger  bool
	EnableProfiler bool
}

// App holds the constructed modules
type App struct {
	Deps       modkit.Deps
	Registry   *module.Registry
	Sets       *setsmod.Module
	Records    *recordsmod.Module
	Membership *membershipmod.Module
	HarvestLog *harvestlogmod.Module
	Harvest    *harvestmod.Module
	Meta       *metamod.Module
	Nightshift *nightshiftmod.Module

	swagger  bool
	profiler bool
}

// Build constructs every module and wires their ports together
// an unknown query parser, metadata format or cache backend fails here
func Build(ctx context.Context, opt Options) (*App, error) {
	deps := modkit.Deps{
		Cfg:     opt.Config,
		Clock:   opt.Clock,
		Metrics: opt.Metrics,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	} else {
		deps.Log = *logger.Get()
	}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
		deps.CH = opt.Store.CH
	}
	if deps.PG == nil {
		deps.Log.Warn().Msg("postgres not configured; records and sets are kept in memory")
		deps.PG = mem.New()
	}

	sets, err := setsmod.New(ctx, deps)
	if err != nil {
		return nil, err
	}
	records := recordsmod.New(deps)
	setPorts := module.MustPortsOf[setsmod.Ports](sets)
	recPorts := module.MustPortsOf[recordsmod.Ports](records)

	// membership attaches the annotator, retractor and rescanner to both services
	membership := membershipmod.New(deps, setPorts, recPorts)

	hlog, err := harvestlogmod.New(deps)
	if err != nil {
		return nil, err
	}
	hlogPorts := module.MustPortsOf[harvestlogmod.Ports](hlog)

	harvest, err := harvestmod.New(deps, recPorts.Reader, setPorts.Registry, recPorts.IDs, hlogPorts.Sink)
	if err != nil {
		return nil, err
	}

	service := opt.Service
	if service == "" {
		service = "oaiserver-api"
	}
	meta := metamod.New(deps, service, setPorts.Registry, recPorts.Reader)

	retention := harvestmod.FromConfig(deps.Cfg).DeletedRetention
	nightshift := nightshiftmod.New(deps, recPorts.Admin, retention)

	reg := module.NewRegistry()
	for _, m := range []module.Module{sets, records, membership, hlog, harvest, meta, nightshift} {
		reg.Add(m)
	}

	return &App{
		Deps:       deps,
		Registry:   reg,
		Sets:       sets,
		Records:    records,
		Membership: membership,
		HarvestLog: hlog,
		Harvest:    harvest,
		Meta:       meta,
		Nightshift: nightshift,
		swagger:    opt.EnableSwagger,
		profiler:   opt.EnableProfiler,
	}, nil
}

// Mount mounts the app onto the given router
//
//	/oai2d          harvest endpoint
//	/healthz        readiness probe
//	/metrics        prometheus, when metrics are configured
//	/api/v1/...     admin modules
//	/api/docs/...   swagger UI, when enabled
//	/debug/...      pprof, when enabled
func (a *App) Mount(r phttp.Router) {
	a.Harvest.MountRoutes(r)
	a.Meta.MountProbe(r, "/healthz")
	if a.Deps.Metrics != nil {
		r.Handle("/metrics", a.Deps.Metrics.Handler())
	}
	swaggerkit.Mount(r, a.swagger)
	phttp.MountProfiler(r, "/debug", a.profiler)

	admin := []module.Module{a.Meta, a.Sets, a.Records, a.Membership, a.HarvestLog, a.Nightshift}
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range admin {
			m.MountRoutes(api)
		}
	})
}

// Run drives the harvest log writer and the maintenance scheduler until ctx ends
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.HarvestLog.Run(ctx) })
	g.Go(func() error { return a.Nightshift.Run(ctx) })
	return g.Wait()
}
