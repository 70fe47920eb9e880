package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

// renderTable prints t with a rounded border. maxRows <= 0 prints all rows.
func renderTable(w io.Writer, t *warehouse.Table, maxRows int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	rows := t.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, r := range rows {
		tw.AppendRow(table.Row(r))
	}
	if len(rows) < len(t.Rows) {
		tw.AppendFooter(table.Row{fmt.Sprintf("%d of %d rows", len(rows), len(t.Rows))})
	}
	tw.SetStyle(table.StyleRounded)
	tw.Render()
}

func renderLoadInfo(w io.Writer, info pipeline.LoadInfo) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Load ID", "Status", "Records", "Skipped", "Started", "Elapsed"})
	status := string(info.Status)
	if info.DryRun {
		status += " (dry run)"
	}
	tw.AppendRow(table.Row{
		info.LoadID,
		status,
		info.Records,
		info.Skipped,
		info.StartedAt.Format(time.RFC3339),
		info.Elapsed.Round(time.Millisecond),
	})
	tw.SetStyle(table.StyleRounded)
	tw.Render()
}
