package main

import (
	"fmt"

	"oaiserver/internal/services/sets/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSetsCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sets",
		Aliases: []string{"set"},
		Short:   "List and edit sets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newSetsListCmd(b),
		newSetsCreateCmd(b),
		newSetsUpdateCmd(b),
		newSetsDeleteCmd(b),
	)
	return cmd
}

func setsView(sets []domain.Set) view {
	v := view{
		header: table.Row{"Spec", "Name", "Pattern", "Updated"},
		value:  sets,
	}
	for _, s := range sets {
		v.rows = append(v.rows, table.Row{s.Spec, s.Name, s.Pattern(), stamp(s.UpdatedAt)})
	}
	return v
}

func newSetsListCmd(b *backend) *cobra.Command {
	var (
		after string
		limit int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sets ordered by spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			reg := app.Sets.Service()
			var out []domain.Set
			for {
				page, next, err := reg.List(cmd.Context(), after, limit)
				if err != nil {
					return err
				}
				out = append(out, page...)
				if !all || next == "" {
					break
				}
				after = next
			}
			if out == nil {
				out = []domain.Set{}
			}
			return render(cmd, setsView(out))
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "start after this spec")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().BoolVar(&all, "all", false, "follow pages until the end")
	return cmd
}

func newSetsCreateCmd(b *backend) *cobra.Command {
	var in domain.SetInput
	var pattern string
	cmd := &cobra.Command{
		Use:   "create SPEC",
		Short: "Create a set; a pattern makes it dynamic",
		Example: `  oaiserver-admin sets create physics --name Physics
  oaiserver-admin sets create physics:hep --name "High energy" --pattern 'subject:hep*'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			in.Spec = args[0]
			if cmd.Flags().Changed("pattern") {
				in.SearchPattern = &pattern
			}
			set, err := app.Sets.Service().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return render(cmd, setsView([]domain.Set{set}))
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&pattern, "pattern", "", "search pattern")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSetsUpdateCmd(b *backend) *cobra.Command {
	var (
		name, description, pattern string
		clearPattern               bool
	)
	cmd := &cobra.Command{
		Use:   "update SPEC",
		Short: "Rename a set or change its pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			var p domain.SetPatch
			if cmd.Flags().Changed("name") {
				p.Name = &name
			}
			if cmd.Flags().Changed("description") {
				p.Description = &description
			}
			if cmd.Flags().Changed("pattern") {
				p.SearchPattern = &pattern
			}
			p.ClearSearchPattern = clearPattern
			set, err := app.Sets.Service().Update(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return render(cmd, setsView([]domain.Set{set}))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&pattern, "pattern", "", "new search pattern")
	cmd.Flags().BoolVar(&clearPattern, "clear-pattern", false, "make the set manual only")
	cmd.MarkFlagsMutuallyExclusive("pattern", "clear-pattern")
	return cmd
}

func newSetsDeleteCmd(b *backend) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SPEC",
		Short: "Delete a set and retract it from every record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := b.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Sets.Service().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}
