package ui

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TransferSummary is the final report printed once a beam finishes.
type TransferSummary struct {
	Status    string
	Files     int
	TotalSize string
	Duration  string
	Speed     string
}

// RenderTransferSummary prints the end-of-transfer report.
func RenderTransferSummary(summary TransferSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter

	t.SetTitle("Transfer Summary")
	t.AppendRows([]table.Row{
		{"Status", summary.Status},
		{"Files", fmt.Sprintf("%d", summary.Files)},
		{"Total Size", summary.TotalSize},
		{"Duration", summary.Duration},
		{"Avg Speed", summary.Speed},
	})
	t.Render()
}
