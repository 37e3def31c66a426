// Package http provides the admin transport for the set registry
package http

import (
	stdhttp "net/http"

	"oaiserver/internal/modkit/httpkit"
	"oaiserver/internal/services/sets/domain"
)

// Service is what the handlers need from the registry
type Service interface {
	domain.RegistryPort
	domain.AdminPort
}

// Register mounts set endpoints on the given router
func Register(r httpkit.Router, s Service) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/", h.list)
	httpkit.PostJSON[domain.SetInput](r, "/", h.create)
	httpkit.Get(r, "/{spec}", h.get)
	httpkit.PatchJSON[domain.SetPatch](r, "/{spec}", h.update)
	httpkit.Delete(r, "/{spec}", h.delete)
}

type handlers struct{ svc Service }

// @Summary List sets in spec order
// @Tags Sets
// @Produce json
// @Param after query string false "last spec of the previous page"
// @Param limit query int false "page size" default(50)
// @Success 200 {array} domain.Set
// @Router /sets [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	limit, err := httpkit.QueryInt(r, "limit", 50)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	items, next, err := h.svc.List(r.Context(), r.URL.Query().Get("after"), limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Set{}
	}
	return httpkit.List(items, limit, next), nil
}

// @Summary Get a set
// @Tags Sets
// @Produce json
// @Param spec path string true "set spec, colon separated"
// @Success 200 {object} domain.Set
// @Router /sets/{spec} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.svc.Get(r.Context(), httpkit.Param(r, "spec"))
}

// @Summary Create a set; the parent must exist
// @Tags Sets
// @Accept json
// @Produce json
// @Param body body domain.SetInput true "set"
// @Success 200 {object} domain.Set
// @Router /sets [post]
func (h *handlers) create(r *stdhttp.Request, in domain.SetInput) (any, error) {
	return h.svc.Create(r.Context(), in)
}

// @Summary Change a set's name, description or query
// @Tags Sets
// @Accept json
// @Produce json
// @Param spec path string true "set spec"
// @Param body body domain.SetPatch true "changes"
// @Success 200 {object} domain.Set
// @Router /sets/{spec} [patch]
func (h *handlers) update(r *stdhttp.Request, p domain.SetPatch) (any, error) {
	return h.svc.Update(r.Context(), httpkit.Param(r, "spec"), p)
}

// @Summary Delete a set and its descendants
// @Tags Sets
// @Param spec path string true "set spec"
// @Success 200
// @Router /sets/{spec} [delete]
func (h *handlers) delete(r *stdhttp.Request) (any, error) {
	return nil, h.svc.Delete(r.Context(), httpkit.Param(r, "spec"))
}
