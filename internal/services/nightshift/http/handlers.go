// Package http exposes the maintenance job runner
package http

import (
	"net/http"

	"oaiserver/internal/modkit/httpkit"
	nsdom "oaiserver/internal/services/nightshift/domain"
)

// Register mounts GET /runs and POST /{job}
func Register(r httpkit.Router, svc nsdom.RunnerPort) {
	h := handlers{svc: svc}
	httpkit.Get(r, "/runs", h.runs)
	httpkit.Post(r, "/{job}", h.run)
}

type handlers struct{ svc nsdom.RunnerPort }

// @Summary Last run of every maintenance job
// @Tags Nightshift
// @Produce json
// @Success 200 {array} nsdom.Run
// @Router /nightshift/runs [get]
func (h handlers) runs(req *http.Request) (any, error) {
	return h.svc.Runs(req.Context())
}

// @Summary Run one job now under the shared lease
// @Description 409 when another process holds the lease
// @Tags Nightshift
// @Produce json
// @Param job path string true "purge or recompute"
// @Success 200 {object} nsdom.Run
// @Router /nightshift/{job} [post]
func (h handlers) run(req *http.Request) (any, error) {
	return h.svc.RunJob(req.Context(), nsdom.Job(httpkit.Param(req, "job")))
}
