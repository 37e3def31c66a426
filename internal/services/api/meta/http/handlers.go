// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"oaiserver/internal/core/version"
	"oaiserver/internal/modkit/httpkit"
	perr "oaiserver/internal/platform/errors"
)

// Pinger is satisfied by backends that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Now         func() time.Time

	// PG and CH are probed when they implement Pinger; nil is skipped
	PG any
	CH any

	// Sets and Records are reported by /service when set
	Sets    func(stdctx.Context) (int64, error)
	Records func(stdctx.Context) (int64, error)
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := newHandlers(d)

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
}

// RegisterProbe mounts GET path as a readiness probe that answers 503 on failure
func RegisterProbe(r httpkit.Router, path string, d Deps) {
	h := newHandlers(d)
	httpkit.Get(r, path, func(req *http.Request) (any, error) {
		res, _ := h.ready(req)
		if rr := res.(ReadyResponse); rr.Status == "fail" {
			return nil, perr.Unavailablef("dependency check failed")
		}
		return res, nil
	})
}

func newHandlers(d Deps) *handlers {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = d.Now()
	}
	return &handlers{deps: d}
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"oaiserver-api"`
	Started string `json:"started" example:"2026-10-01T13:00:00Z"`
	Now     string `json:"now"     example:"2026-10-01T13:05:00Z"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"            example:"pg"`
	Status string `json:"status"          example:"ok"` // ok fail skipped unknown
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432 connect: connection refused"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"` // ok degraded fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2026-10-01T13:05:00Z"`
}

// ServiceResponse describes service info
type ServiceResponse struct {
	Name    string `json:"name"              example:"oaiserver-api"`
	Started string `json:"started"           example:"2026-10-01T13:00:00Z"`
	Uptime  int64  `json:"uptime"            example:"300"`
	Sets    *int64 `json:"sets,omitempty"    example:"12"`
	Records *int64 `json:"records,omitempty" example:"5400"`
}

// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     h.deps.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ready probes each backend; a skipped backend degrades, a failing one fails
//
// @Summary Readiness with dependency checks
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	check := func(name string, c any) ReadyCheck {
		if c == nil {
			return ReadyCheck{Name: name, Status: "skipped"}
		}
		if p, ok := c.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
			}
			return ReadyCheck{Name: name, Status: "ok"}
		}
		return ReadyCheck{Name: name, Status: "unknown"}
	}

	pg := check("pg", h.deps.PG)
	ch := check("ch", h.deps.CH)

	overall := "ok"
	if pg.Status != "ok" || ch.Status != "ok" {
		overall = "degraded"
		if pg.Status == "fail" || ch.Status == "fail" {
			overall = "fail"
		}
	}

	return ReadyResponse{
		Status: overall,
		Checks: []ReadyCheck{pg, ch},
		Now:    h.deps.Now().UTC().Format(time.RFC3339),
	}, nil
}

// @Summary Build and version info
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}

// @Summary Service info, uptime and catalogue counts
// @Tags Meta
// @Produce json
// @Success 200 {object} ServiceResponse
// @Router /meta/service [get]
func (h *handlers) service(r *http.Request) (any, error) {
	uptime := h.deps.Now().Sub(h.deps.StartedAt)
	out := ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(uptime / time.Second),
	}
	count := func(fn func(stdctx.Context) (int64, error)) (*int64, error) {
		if fn == nil {
			return nil, nil
		}
		n, err := fn(r.Context())
		if err != nil {
			return nil, err
		}
		return &n, nil
	}
	var err error
	if out.Sets, err = count(h.deps.Sets); err != nil {
		return nil, err
	}
	if out.Records, err = count(h.deps.Records); err != nil {
		return nil, err
	}
	return out, nil
}
