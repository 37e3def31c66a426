package main

import (
	"context"
	"errors"
	"time"

	"oaiserver/internal/modkit/repokit"
	"oaiserver/internal/platform/config"
	"oaiserver/internal/platform/logger"
	"oaiserver/internal/platform/store"
	"oaiserver/internal/services/api"

	"github.com/spf13/cobra"
)

const service = "oaiserver-admin"

// backend opens the store and builds the app on first use
// Close is safe to call more than once
type backend struct {
	cfg       config.Conf
	openStore func(ctx context.Context) (*store.Store, error)
	build     func(ctx context.Context, st *store.Store) (*api.App, error)

	st  *store.Store
	app *api.App
}

// openFromEnv reads CORE_PG_URL, CORE_CH_URL and the OAI_ settings
func openFromEnv() *backend {
	root := config.New()
	return &backend{
		cfg: root,
		openStore: func(ctx context.Context) (*store.Store, error) {
			core := root.Prefix("CORE_")
			st, err := store.Open(ctx, store.ConfigFrom(core, service), store.WithLogger(*logger.Get()))
			if err != nil {
				return nil, err
			}
			if err := repokit.WaitReady(ctx, st, core.MayDuration("STARTUP_WAIT", 5*time.Second)); err != nil {
				return nil, errors.Join(err, st.Close(ctx))
			}
			return st, nil
		},
		build: func(ctx context.Context, st *store.Store) (*api.App, error) {
			return api.Build(ctx, api.Options{Service: service, Config: root, Store: st})
		},
	}
}

func (b *backend) Store(ctx context.Context) (*store.Store, error) {
	if b.st != nil {
		return b.st, nil
	}
	st, err := b.openStore(ctx)
	if err != nil {
		return nil, err
	}
	b.st = st
	return st, nil
}

func (b *backend) App(ctx context.Context) (*api.App, error) {
	if b.app != nil {
		return b.app, nil
	}
	st, err := b.Store(ctx)
	if err != nil {
		return nil, err
	}
	app, err := b.build(ctx, st)
	if err != nil {
		return nil, err
	}
	b.app = app
	return app, nil
}

func (b *backend) Close(ctx context.Context) error {
	if b.st == nil {
		return nil
	}
	err := b.st.Close(ctx)
	b.st, b.app = nil, nil
	return err
}

func newRootCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:          service,
		Short:        "Administer an OAI-PMH repository",
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return b.Close(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringP(flagOutput, "o", formatTable, "output format: table or json")

	cmd.AddCommand(
		newSetsCmd(b),
		newRecomputeCmd(b),
		newPurgeCmd(b),
		newMigrateCmd(b),
		newLogCmd(b),
		newNightshiftCmd(b),
		newVersionCmd(),
	)
	return cmd
}

var errNoDatabase = errors.New("no database configured; set CORE_PG_URL")
