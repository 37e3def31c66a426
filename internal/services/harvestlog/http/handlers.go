// Package http exposes harvest log aggregates
package http

import (
	"net/http"
	"time"

	"oaiserver/internal/modkit/httpkit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/services/harvestlog/domain"
)

// Register mounts GET /verbs and GET /sets
//
//	since and until are RFC 3339; the default window is the last 24 hours
func Register(r httpkit.Router, q domain.QueryPort, now func() time.Time) {
	h := handlers{q: q, now: now}
	httpkit.Get(r, "/verbs", h.verbs)
	httpkit.Get(r, "/sets", h.sets)
}

type handlers struct {
	q   domain.QueryPort
	now func() time.Time
}

// @Summary Harvest requests per verb and outcome
// @Tags HarvestLog
// @Produce json
// @Param since query string false "RFC 3339, default 24h ago"
// @Param until query string false "RFC 3339, default now"
// @Success 200 {array} domain.VerbStat
// @Router /harvestlog/verbs [get]
func (h handlers) verbs(req *http.Request) (any, error) {
	w, err := window(req, h.now())
	if err != nil {
		return nil, err
	}
	return h.q.ByVerb(req.Context(), w)
}

// @Summary Most harvested sets
// @Tags HarvestLog
// @Produce json
// @Param since query string false "RFC 3339, default 24h ago"
// @Param until query string false "RFC 3339, default now"
// @Param limit query int false "top N"
// @Success 200 {array} domain.SetStat
// @Router /harvestlog/sets [get]
func (h handlers) sets(req *http.Request) (any, error) {
	w, err := window(req, h.now())
	if err != nil {
		return nil, err
	}
	limit, err := httpkit.QueryInt(req, "limit", 0)
	if err != nil {
		return nil, err
	}
	return h.q.BySet(req.Context(), w, limit)
}

func window(r *http.Request, now time.Time) (domain.Window, error) {
	w := domain.Window{Since: now.Add(-24 * time.Hour), Until: now}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &w.Since}, {"until", &w.Until}} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.Window{}, perr.WithField(perr.Validationf("%s must be RFC 3339", p.name), p.name)
		}
		*p.dst = t
	}
	if !w.Since.Before(w.Until) {
		return domain.Window{}, perr.WithField(perr.Validationf("since must be before until"), "since")
	}
	return w, nil
}
