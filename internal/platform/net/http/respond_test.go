package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "oaiserver/internal/platform/errors"
	pnet "oaiserver/internal/platform/net"
	phttp "oaiserver/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func reqWithReqID(method, path, rid string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(pnet.WithRequest(req.Context(), rid))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) phttp.Envelope {
	t.Helper()
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return env
}

func TestHandleSuccessAndList(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.Handle(func(*http.Request) phttp.Response {
		return phttp.List([]string{"a", "b"}, 2, "b")
	})(rec, reqWithReqID("GET", "/sets", "rid-1"))

	env := decode(t, rec)
	if rec.Code != http.StatusOK || env.RequestID != "rid-1" {
		t.Fatalf("bad envelope %+v", env)
	}
	if env.Page == nil || env.Page.Next != "b" || env.Page.Limit != 2 {
		t.Fatalf("page = %+v", env.Page)
	}
}

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		retry  string
		msg    string
	}{
		{perr.NotFoundf("set x not found"), http.StatusNotFound, "", "set x not found"},
		{perr.Conflictf("set has children"), http.StatusConflict, "", "set has children"},
		{perr.Unavailablef("search down"), http.StatusServiceUnavailable, "30", "search down"},
		{errors.New("secret driver text"), http.StatusInternalServerError, "", "internal error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		phttp.RespondError(rec, reqWithReqID("GET", "/", "r"), tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status %d want %d", tc.err, rec.Code, tc.status)
		}
		if got := rec.Header().Get("Retry-After"); got != tc.retry {
			t.Fatalf("%v: Retry-After %q want %q", tc.err, got, tc.retry)
		}
		if env := decode(t, rec); env.Error != tc.msg {
			t.Fatalf("%v: message %q", tc.err, env.Error)
		}
	}
}

func TestNoContentWritesNoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.Handle(func(*http.Request) phttp.Response { return phttp.NoContent() })(rec, reqWithReqID("DELETE", "/", ""))
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

type nameIn struct {
	Name string `json:"name" validate:"required"`
}

func TestSugarMountsThroughChi(t *testing.T) {
	m := chi.NewRouter()
	r := phttp.AdaptChi(m)
	r.Route("/api", func(api phttp.Router) {
		phttp.PostJSON(api, "/things", func(_ *http.Request, in nameIn) (any, error) {
			return map[string]string{"name": in.Name}, nil
		})
		phttp.GetJSON(api, "/things/{id}", func(r *http.Request) (any, error) {
			return chi.URLParam(r, "id"), nil
		})
		phttp.DeleteJSON(api, "/things/{id}", func(*http.Request) (any, error) { return nil, nil })
		api.Method(http.MethodPost, "/both", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	})

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/things", strings.NewReader(`{"name":"n"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status %d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/things", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest || decode(t, rec).Field != "name" {
		t.Fatalf("validation status %d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/42", nil))
	if decode(t, rec).Data != "42" {
		t.Fatalf("get body=%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/things/42", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/both", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("method status %d", rec.Code)
	}
}

func TestParamsAndQueryInt(t *testing.T) {
	mux := chi.NewRouter()
	var got string
	mux.Get("/sets/{spec}", func(w http.ResponseWriter, r *http.Request) { got = phttp.Param(r, "spec") })
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sets/a:b", nil))
	if got != "a:b" {
		t.Fatalf("Param = %q", got)
	}

	r := httptest.NewRequest(http.MethodGet, "/x?limit=5&bad=z", nil)
	if n, err := phttp.QueryInt(r, "limit", 10); err != nil || n != 5 {
		t.Fatalf("QueryInt(limit) = %d, %v", n, err)
	}
	if n, err := phttp.QueryInt(r, "missing", 10); err != nil || n != 10 {
		t.Fatalf("QueryInt(missing) = %d, %v", n, err)
	}
	if _, err := phttp.QueryInt(r, "bad", 10); err == nil {
		t.Fatalf("QueryInt(bad) should fail")
	}
}
