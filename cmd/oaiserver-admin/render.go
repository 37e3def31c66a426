package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const (
	flagOutput  = "output"
	formatTable = "table"
	formatJSON  = "json"
)

// view is something printable both as a table and as json
type view struct {
	header table.Row
	rows   []table.Row
	value  any
}

func render(cmd *cobra.Command, v view) error {
	format, err := cmd.Flags().GetString(flagOutput)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.value)
	case formatTable, "":
		renderTable(w, v)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, v view) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(v.header)
	t.AppendRows(v.rows)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
