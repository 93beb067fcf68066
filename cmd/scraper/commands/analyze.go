package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/network"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [requests.json]",
		Short: "Summarizes a captured API request log (default: the configured requests file).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(root.configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				path = cfg.Paths.RequestsFile
			}

			var reqs []models.CapturedRequest
			if err := artifacts.LoadJSON(path, &reqs); err != nil {
				return err
			}
			renderAnalysis(cmd.OutOrStdout(), network.Analyze(reqs))
			return nil
		},
	}
}

func renderAnalysis(out io.Writer, a network.Analysis) {
	fmt.Fprintf(out, "Captured requests: %d, rate: %.2f req/s\n", a.Total, a.RequestRate)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Endpoint", "Requests"})
	for _, ep := range a.TopEndpoints() {
		t.AppendRow(table.Row{ep.Endpoint, ep.Count})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(a.CommonHeaders) == 0 {
		return
	}
	names := make([]string, 0, len(a.CommonHeaders))
	for k := range a.CommonHeaders {
		names = append(names, k)
	}
	sort.Strings(names)

	h := table.NewWriter()
	h.SetOutputMirror(out)
	h.AppendHeader(table.Row{"Common header", "Value"})
	for _, k := range names {
		h.AppendRow(table.Row{k, a.CommonHeaders[k]})
	}
	h.SetStyle(table.StyleRounded)
	h.Render()
}
