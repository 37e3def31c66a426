package http

import (
	stdhttp "net/http"
	"strconv"

	perr "oaiserver/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

// Param returns a route parameter
func Param(r *stdhttp.Request, name string) string { return chi.URLParam(r, name) }

// QueryInt reads an integer query parameter; absent means def
func QueryInt(r *stdhttp.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, perr.WithField(perr.Validationf("%s must be an integer", name), name)
	}
	return n, nil
}
