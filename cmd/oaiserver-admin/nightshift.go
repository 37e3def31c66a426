package main

import (
	"oaiserver/internal/modkit/module"
	nsdom "oaiserver/internal/services/nightshift/domain"
	nightshiftmod "oaiserver/internal/services/nightshift/module"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newNightshiftCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nightshift",
		Short: "Inspect and trigger leased maintenance jobs",
	}
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Show the last run of every job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := nightshiftRunner(cmd, b)
			if err != nil {
				return err
			}
			rs, err := runner.Runs(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(rs))
			for _, r := range rs {
				rows = append(rows, runRow(r))
			}
			return render(cmd, view{header: runHeader, rows: rows, value: rs})
		},
	}
	run := &cobra.Command{
		Use:       "run JOB",
		Short:     "Run one job now under its lease",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(nsdom.JobPurge), string(nsdom.JobRecompute)},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := nightshiftRunner(cmd, b)
			if err != nil {
				return err
			}
			r, err := runner.RunJob(cmd.Context(), nsdom.Job(args[0]))
			if err != nil {
				return err
			}
			return render(cmd, view{header: runHeader, rows: []table.Row{runRow(r)}, value: r})
		},
	}
	cmd.AddCommand(runs, run)
	return cmd
}

var runHeader = table.Row{"Job", "Status", "Owner", "Started", "Finished", "Detail"}

func runRow(r nsdom.Run) table.Row {
	finished := ""
	if r.FinishedAt != nil {
		finished = stamp(*r.FinishedAt)
	}
	return table.Row{r.Job, r.Status, r.Owner, stamp(r.StartedAt), finished, r.Detail}
}

func nightshiftRunner(cmd *cobra.Command, b *backend) (nsdom.RunnerPort, error) {
	app, err := b.App(cmd.Context())
	if err != nil {
		return nil, err
	}
	return module.MustPortsOf[nightshiftmod.Ports](app.Nightshift).Runner, nil
}
