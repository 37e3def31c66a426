// Package http provides the admin transport for records
package http

import (
	stdhttp "net/http"
	"strconv"

	"oaiserver/internal/modkit/httpkit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/services/records/domain"
)

// Service is what the handlers need from the records service
type Service interface {
	domain.ReaderPort
	domain.AdminPort
}

// Register mounts record endpoints on the given router
func Register(r httpkit.Router, s Service) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/", h.list)
	httpkit.PostJSON[domain.Input](r, "/", h.create)
	httpkit.Post(r, "/recompute", h.recompute)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.PutJSON[domain.ContentInput](r, "/{id}", h.update)
	httpkit.Delete(r, "/{id}", h.delete)
	httpkit.PostJSON[domain.SetRef](r, "/{id}/sets", h.assign)
	httpkit.Delete(r, "/{id}/sets/{spec}", h.unassign)
}

type handlers struct{ svc Service }

func id(r *stdhttp.Request) (int64, error) {
	raw := httpkit.Param(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, perr.WithField(perr.Validationf("record id %q is not a positive integer", raw), "id")
	}
	return n, nil
}

// @Summary List records in id order
// @Tags Records
// @Produce json
// @Param after query int false "last id of the previous page"
// @Param limit query int false "page size" default(50)
// @Param set query string false "only members of this set"
// @Param deleted query bool false "include tombstones"
// @Success 200 {array} domain.Record
// @Router /records [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	limit, err := httpkit.QueryInt(r, "limit", 50)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	after, err := httpkit.QueryInt(r, "after", 0)
	if err != nil {
		return nil, err
	}
	f := domain.Filter{
		AfterID: int64(after),
		Set:     r.URL.Query().Get("set"),
		Deleted: domain.DeletedFilter{Include: r.URL.Query().Get("deleted") == "true"},
	}
	items, err := h.svc.List(r.Context(), f, limit+1)
	if err != nil {
		return nil, err
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = strconv.FormatInt(items[limit-1].ID, 10)
	}
	if items == nil {
		items = []domain.Record{}
	}
	return httpkit.List(items, limit, next), nil
}

// @Summary Get a record with its computed sets
// @Tags Records
// @Produce json
// @Param id path int true "record id"
// @Success 200 {object} domain.Record
// @Router /records/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	n, err := id(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Get(r.Context(), n)
}

// @Summary Store a record; membership is computed on write
// @Tags Records
// @Accept json
// @Produce json
// @Param body body domain.Input true "record"
// @Success 200 {object} domain.Record
// @Router /records [post]
func (h *handlers) create(r *stdhttp.Request, in domain.Input) (any, error) {
	return h.svc.Create(r.Context(), in)
}

// @Summary Replace a record's content
// @Tags Records
// @Accept json
// @Produce json
// @Param id path int true "record id"
// @Param body body domain.ContentInput true "content"
// @Success 200 {object} domain.Record
// @Router /records/{id} [put]
func (h *handlers) update(r *stdhttp.Request, in domain.ContentInput) (any, error) {
	n, err := id(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Update(r.Context(), n, in)
}

// @Summary Delete a record, leaving a tombstone
// @Tags Records
// @Param id path int true "record id"
// @Success 200
// @Router /records/{id} [delete]
func (h *handlers) delete(r *stdhttp.Request) (any, error) {
	n, err := id(r)
	if err != nil {
		return nil, err
	}
	return nil, h.svc.Delete(r.Context(), n)
}

// @Summary Assign a record to a set by hand
// @Tags Records
// @Accept json
// @Produce json
// @Param id path int true "record id"
// @Param body body domain.SetRef true "set"
// @Success 200 {object} domain.Record
// @Router /records/{id}/sets [post]
func (h *handlers) assign(r *stdhttp.Request, in domain.SetRef) (any, error) {
	n, err := id(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Assign(r.Context(), n, in.Spec)
}

// @Summary Drop a manual set assignment
// @Tags Records
// @Param id path int true "record id"
// @Param spec path string true "set spec"
// @Success 200
// @Router /records/{id}/sets/{spec} [delete]
func (h *handlers) unassign(r *stdhttp.Request) (any, error) {
	n, err := id(r)
	if err != nil {
		return nil, err
	}
	if _, err := h.svc.Unassign(r.Context(), n, httpkit.Param(r, "spec")); err != nil {
		return nil, err
	}
	return nil, nil
}

// @Summary Recompute membership for every live record
// @Tags Records
// @Produce json
// @Success 200 {object} domain.Stats
// @Router /records/recompute [post]
func (h *handlers) recompute(r *stdhttp.Request) (any, error) {
	return h.svc.Recompute(r.Context())
}
