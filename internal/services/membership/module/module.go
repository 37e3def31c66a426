// Package module connects the set registry and the records service through
// the membership annotator
package module

import (
	"net/http"

	modkit "oaiserver/internal/modkit"
	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/platform/logger"
	str "oaiserver/internal/platform/strings"
	"oaiserver/internal/services/membership/service"
	records "oaiserver/internal/services/records/domain"
	recordsmod "oaiserver/internal/services/records/module"
	recordsservice "oaiserver/internal/services/records/service"
	setsmod "oaiserver/internal/services/sets/module"
	setsservice "oaiserver/internal/services/sets/service"
)

// Ports exposed by the membership module
type Ports struct {
	Evaluator *service.Evaluator
	Annotator *service.Annotator
}

// Module implements modkit.Module for membership
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	sets  *setsservice.Service
	ports Ports
}

// New wires the annotator into both services and registers its hooks when configured
func New(deps modkit.Deps, sets setsmod.Ports, recs recordsmod.Ports, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("membership"), modkit.WithPrefix("/membership")}, opts...)...)
	o := FromConfig(deps.Cfg)

	eval := service.NewEvaluator(
		service.WithSearchTimeout(o.SearchTimeout),
		service.WithEvaluatorMetrics(deps.Metrics),
	)
	ann := service.NewAnnotator(eval, sets.Service, recs.Service, recs.IDs, service.WithFailOnTransient(o.FailOnTransient))

	recs.Service.Use(
		recordsservice.WithAnnotator(ann),
		recordsservice.WithSetChecker(sets.Service),
	)
	sets.Service.Use(
		setsservice.WithRetractor(recs.Service),
		setsservice.WithRescanner(recs.Service),
	)
	if o.RegisterSignals {
		ann.RegisterSignals()
	} else {
		logger.Named("membership").Warn().Msg("record hooks disabled; run recompute to refresh membership")
	}

	return &Module{
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		sets:   sets.Service,
		ports:  Ports{Evaluator: eval, Annotator: ann},
	}
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(r httpkit.Router) {
		httpkit.PostJSONOK[records.Input](r, "/preview", m.preview)
	})
}

// preview evaluates a draft record without storing it
//
// @Summary Preview set membership for a draft record
// @Tags Membership
// @Accept json
// @Produce json
// @Param body body records.Input true "draft record"
// @Success 200 {object} service.Result
// @Router /membership/preview [post]
func (m *Module) preview(r *http.Request, in records.Input) (any, error) {
	snap, err := m.sets.Snapshot(r.Context())
	if err != nil {
		return nil, err
	}
	rec := &records.Record{Content: in.Content, ManualSets: str.SortedUnique(in.ManualSets)}
	res, err := m.ports.Evaluator.Evaluate(r.Context(), rec, snap)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Annotator returns the hook owner
func (m *Module) Annotator() *service.Annotator { return m.ports.Annotator }
