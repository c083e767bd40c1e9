package report

import (
	"fmt"
	"io"

	"github.com/UnknownOlympus/pincheck/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary counts statuses per provider.
type Summary struct {
	Providers []string
	Counts    map[string]map[models.Status]int
	Checked   int
	Invalid   int
}

// Summarize tallies results.
func Summarize(providers []string, results []models.ServiceabilityResult, invalid int) Summary {
	summary := Summary{
		Providers: providers,
		Counts:    make(map[string]map[models.Status]int, len(providers)),
		Checked:   len(results),
		Invalid:   invalid,
	}
	for _, name := range providers {
		summary.Counts[name] = make(map[models.Status]int)
	}
	for _, res := range results {
		for _, name := range providers {
			summary.Counts[name][res.Status(name)]++
		}
	}
	return summary
}

// Render prints the summary as a table with one row per provider and one column per status.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	// Status labels are printed exactly as they appear in the results file.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	header := table.Row{"Provider"}
	for _, status := range models.Statuses() {
		header = append(header, string(status))
	}
	t.AppendHeader(header)

	for _, name := range s.Providers {
		row := table.Row{name}
		for _, status := range models.Statuses() {
			row = append(row, s.Counts[name][status])
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{"Pincodes", fmt.Sprintf("%d checked, %d invalid", s.Checked, s.Invalid)})
	t.Render()
}
