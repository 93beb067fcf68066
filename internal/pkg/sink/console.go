package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Console prints the run result as a table.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console { return &Console{out: out} }

func (c *Console) Name() string { return "console" }

func (c *Console) Write(_ context.Context, run RunInfo, matches []models.Match) error {
	if len(matches) == 0 {
		fmt.Fprintf(c.out, "No matches found (method: %s)\n", run.Method)
		return nil
	}
	fmt.Fprintf(c.out, "Found %d matches (method: %s)\n", len(matches), run.Method)

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"#", "Match", "Tournament", "Start", "Status", "URL"})
	for i, m := range matches {
		t.AppendRow(table.Row{i + 1, m.Title(), m.Tournament, m.StartTime, m.Status, m.URL})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
