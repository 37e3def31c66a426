// Package http serves the OAI-PMH endpoint
package http

import (
	"bytes"
	"encoding/xml"
	stdhttp "net/http"

	"oaiserver/internal/modkit/httpkit"
	perr "oaiserver/internal/platform/errors"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/services/harvest/domain"
)

// Path is where the endpoint is mounted
const Path = "/oai2d"

// Register mounts the endpoint for GET and POST
// baseURL is echoed in every response; empty derives it from the request
func Register(r httpkit.Router, d domain.Dispatcher, baseURL string) {
	h := &handler{d: d, baseURL: baseURL}
	r.Get(Path, h.serve)
	r.Post(Path, h.serve)
}

type handler struct {
	d       domain.Dispatcher
	baseURL string
}

func (h *handler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	args := r.URL.Query()
	if r.Method == stdhttp.MethodPost {
		if err := r.ParseForm(); err != nil {
			stdhttp.Error(w, "malformed form body", stdhttp.StatusBadRequest)
			return
		}
		args = r.PostForm
	}

	resp, err := h.d.Dispatch(r.Context(), domain.Request{Args: args})
	if err != nil {
		status := stdhttp.StatusInternalServerError
		if perr.IsCode(err, perr.ErrorCodeUnavailable) {
			status = stdhttp.StatusServiceUnavailable
			w.Header().Set("Retry-After", "5")
		}
		stdhttp.Error(w, stdhttp.StatusText(status), status)
		return
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(render(resp, h.base(r))); err != nil {
		logger.C(r.Context()).Error().Err(err).Msg("encode protocol response")
		stdhttp.Error(w, stdhttp.StatusText(stdhttp.StatusInternalServerError), stdhttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *handler) base(r *stdhttp.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
