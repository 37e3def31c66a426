package http_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"oaiserver/internal/platform/config"
	phttp "oaiserver/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Setenv("T_API_PORT", "127.0.0.1:0")
	t.Setenv("T_API_SHUTDOWN_GRACE", "1s")
	called := false
	s := phttp.NewServer(config.New().Prefix("T_"), func(m *chi.Mux) {
		called = true
		m.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	})
	if !called || s.Addr() != "127.0.0.1:0" || s.Router() == nil {
		t.Fatalf("server not configured: addr=%q", s.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
