package httpkit_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"oaiserver/internal/modkit/httpkit"
	perr "oaiserver/internal/platform/errors"
	phttp "oaiserver/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type in struct {
	Spec string `json:"spec" validate:"required"`
}

func TestMountAPIV1AndSugar(t *testing.T) {
	m := chi.NewRouter()
	httpkit.MountAPIV1(phttp.AdaptChi(m), httpkit.CommonStack(), func(api httpkit.Router) {
		httpkit.MountUnder(api, "/sets", nil, func(r httpkit.Router) {
			httpkit.Get(r, "/", func(*http.Request) (any, error) { return httpkit.List([]string{"a"}, 1, ""), nil })
			httpkit.PostJSON(r, "/", func(_ *http.Request, v in) (any, error) { return v, nil })
			httpkit.Delete(r, "/{spec}", func(r *http.Request) (any, error) {
				return nil, perr.NotFoundf("set %s not found", chi.URLParam(r, "spec"))
			})
		})
	})

	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/api/v1/sets", "", http.StatusOK},
		{http.MethodPost, "/api/v1/sets", `{"spec":"a"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/sets", `{}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/v1/sets/zzz", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		m.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: status %d want %d body=%s", tc.method, tc.path, rec.Code, tc.status, rec.Body.String())
		}
		if rec.Header().Get("Cache-Control") == "" {
			t.Fatalf("%s %s: NoCache header missing", tc.method, tc.path)
		}
	}
}
