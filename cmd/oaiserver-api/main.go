// @title         oaiserver admin API
// @version       0.1.0
// @description   Set registry, record store and harvest operations behind the OAI-PMH endpoint
// @BasePath      /api/v1

// Command oaiserver-api serves the OAI-PMH endpoint and the admin API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/config"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/metrics"
	phttp "oaiserver/internal/platform/net/http"
	"oaiserver/internal/platform/net/middleware"
	"oaiserver/internal/platform/store"
	"oaiserver/migrations"

	"oaiserver/internal/services/api"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const service = "oaiserver-api"

func main() {
	if err := run(); err != nil {
		logger.Get().Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run() error {
	root := config.New()
	coreCfg := root.Prefix("CORE_")

	// bring up logging early
	lo := logger.FromEnv()
	lo.Service = service
	logger.Init(lo)
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// open the platform store; without CORE_PG_URL everything stays in memory
	st, err := store.Open(ctx, store.ConfigFrom(coreCfg, service), store.WithLogger(*l))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// backends started alongside the server may still be coming up
	if err := repokit.WaitReady(ctx, st, coreCfg.MayDuration("STARTUP_WAIT", 30*time.Second)); err != nil {
		return err
	}

	if st.PG != nil && coreCfg.MayBool("MIGRATE", true) {
		n, err := migrations.Up(ctx, st.PG)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		l.Info().Int("applied", n).Msg("migrations up to date")
	}

	m := metrics.New()
	app, err := api.Build(ctx, api.Options{
		Service:        service,
		Config:         root,
		Store:          st,
		Logger:         l,
		Metrics:        m,
		EnableSwagger:  coreCfg.MayBool("SWAGGER", true),
		EnableProfiler: coreCfg.MayBool("PROFILER", false),
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	// http server (reads CORE_API_PORT and the CORE_API_* timeouts)
	srv := phttp.NewServer(coreCfg, func(mux *chi.Mux) {
		mux.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: coreCfg.MayCSV("CORS_ORIGINS", nil),
			MaxAge:         coreCfg.MayInt("CORS_MAX_AGE", 300),
		}))
		mux.Use(middleware.Defaults(coreCfg.MayDuration("REQUEST_TIMEOUT", 30*time.Second))...)
		mux.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{
			Slow:    coreCfg.MayDuration("SLOW_REQUEST", time.Second),
			Observe: m.ObserveHTTP,
		}))
	})
	app.Mount(srv.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return app.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	l.Info().Msg("bye")
	return nil
}
