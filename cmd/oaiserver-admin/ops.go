package main

import (
	"fmt"
	"time"

	"oaiserver/internal/core/version"
	"oaiserver/internal/modkit/module"
	harvestmod "oaiserver/internal/services/harvest/module"
	logdomain "oaiserver/internal/services/harvestlog/domain"
	harvestlogmod "oaiserver/internal/services/harvestlog/module"
	"oaiserver/migrations"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRecomputeCmd(b *backend) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Re-evaluate set membership for every live record",
		Long: `Re-evaluate set membership for every live record.

Run this nightly when record hooks are disabled (OAI_REGISTER_RECORD_SIGNALS=false)
or when pattern changes are rescanned lazily (OAI_SETS_RESCAN=lazy). A second run
with no intervening changes writes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			st, err := app.Records.Service().Recompute(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, view{
				header: table.Row{"Scanned", "Changed", "Unchanged", "Failed"},
				rows:   []table.Row{{st.Scanned, st.Changed, st.Unchanged, st.Failed}},
				value:  st,
			})
		},
	}
}

func newPurgeCmd(b *backend) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Hard delete tombstones past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = harvestmod.FromConfig(b.cfg).DeletedRetention
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			before := app.Deps.Now().Now().Add(-olderThan)
			n, err := app.Records.Service().Purge(cmd.Context(), before)
			if err != nil {
				return err
			}
			return render(cmd, view{
				header: table.Row{"Purged", "Before"},
				rows:   []table.Row{{n, stamp(before)}},
				value:  map[string]any{"purged": n, "before": before},
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "tombstone age to purge (default OAI_DELETED_RETENTION)")
	return cmd
}

func newMigrateCmd(b *backend) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := b.Store(cmd.Context())
			if err != nil {
				return err
			}
			if st.PG == nil {
				return errNoDatabase
			}
			n, err := migrations.Up(cmd.Context(), st.PG)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return err
		},
	}
}

func newLogCmd(b *backend) *cobra.Command {
	var since, until time.Duration
	var limit int
	window := func() logdomain.Window {
		now := time.Now().UTC()
		return logdomain.Window{Since: now.Add(-since), Until: now.Add(-until)}
	}
	query := func(cmd *cobra.Command) (logdomain.QueryPort, error) {
		app, err := b.App(cmd.Context())
		if err != nil {
			return nil, err
		}
		return module.MustPortsOf[harvestlogmod.Ports](app.HarvestLog).Query, nil
	}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Summarize served harvest requests (needs CORE_CH_URL)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().DurationVar(&since, "since", 24*time.Hour, "window start, as an age")
	cmd.PersistentFlags().DurationVar(&until, "until", 0, "window end, as an age")

	verbs := &cobra.Command{
		Use:   "verbs",
		Short: "Requests by verb and outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := query(cmd)
			if err != nil {
				return err
			}
			stats, err := q.ByVerb(cmd.Context(), window())
			if err != nil {
				return err
			}
			v := view{header: table.Row{"Verb", "Outcome", "Requests", "Items", "Avg ms"}, value: stats}
			for _, s := range stats {
				v.rows = append(v.rows, table.Row{s.Verb, s.Outcome, s.Requests, s.Items, fmt.Sprintf("%.1f", s.AvgMillis)})
			}
			return render(cmd, v)
		},
	}
	sets := &cobra.Command{
		Use:   "sets",
		Short: "Most harvested sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := query(cmd)
			if err != nil {
				return err
			}
			stats, err := q.BySet(cmd.Context(), window(), limit)
			if err != nil {
				return err
			}
			v := view{header: table.Row{"Set", "Requests", "Items"}, value: stats}
			for _, s := range stats {
				v.rows = append(v.rows, table.Row{s.Set, s.Requests, s.Items})
			}
			return render(cmd, v)
		},
	}
	sets.Flags().IntVar(&limit, "limit", 20, "rows to show")
	cmd.AddCommand(verbs, sets)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info(service).String())
			return err
		},
	}
}
