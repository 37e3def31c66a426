package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	phttp "oaiserver/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h stdhttp.Handler, path string, into any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	if into != nil {
		env := phttp.Envelope{Data: into}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code
}

func TestMetaRoutes(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), Deps{
		ServiceName: "oaiserver-api",
		StartedAt:   start,
		Now:         func() time.Time { return now },
		PG:          pinger{},
		Sets:        func(context.Context) (int64, error) { return 3, nil },
	})

	var ready ReadyResponse
	require.Equal(t, stdhttp.StatusOK, get(t, mux, "/ready", &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "ok", ready.Checks[0].Status)
	assert.Equal(t, "skipped", ready.Checks[1].Status)

	var svc ServiceResponse
	require.Equal(t, stdhttp.StatusOK, get(t, mux, "/service", &svc))
	assert.Equal(t, int64(300), svc.Uptime)
	require.NotNil(t, svc.Sets)
	assert.Equal(t, int64(3), *svc.Sets)
	assert.Nil(t, svc.Records)

	var hp HealthResponse
	require.Equal(t, stdhttp.StatusOK, get(t, mux, "/health", &hp))
	assert.True(t, hp.OK)
	assert.Equal(t, "2026-10-01T12:05:00Z", hp.Now)

	assert.Equal(t, stdhttp.StatusOK, get(t, mux, "/version", nil))
}

func TestProbe(t *testing.T) {
	cases := []struct {
		name string
		pg   any
		want int
	}{
		{"up", pinger{}, stdhttp.StatusOK},
		{"no backends", nil, stdhttp.StatusOK},
		{"down", pinger{err: errors.New("connection refused")}, stdhttp.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := chi.NewRouter()
			RegisterProbe(phttp.AdaptChi(mux), "/healthz", Deps{ServiceName: "x", PG: tc.pg})
			assert.Equal(t, tc.want, get(t, mux, "/healthz", nil))
		})
	}
}
