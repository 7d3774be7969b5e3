package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vietddude/wacloud/internal/core/domain"
)

// renderCounters renders a counter hash as a two-column table sorted by
// field name.
func renderCounters(title string, counters map[string]int64) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Counter", "Value"})

	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t.AppendRow(table.Row{k, counters[k]})
	}
	if len(keys) == 0 {
		t.AppendRow(table.Row{"(none)", ""})
	}
	return t.Render()
}

func renderFailures(failures []domain.FailedSend) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Recent failures")
	t.AppendHeader(table.Row{"Time", "Op", "Kind", "Status", "Attempts", "Error"})

	for _, f := range failures {
		status := ""
		if f.StatusCode > 0 {
			status = fmt.Sprint(f.StatusCode)
		}
		t.AppendRow(table.Row{
			time.Unix(f.FailedAt, 0).UTC().Format(time.RFC3339),
			f.Op,
			f.Kind,
			status,
			f.Attempts,
			truncate(f.Error, 60),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(failures)})
	return t.Render()
}

func renderTemplates(list *domain.TemplateList) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Language", "Category", "Status", "ID"})

	for _, tmpl := range list.Data {
		t.AppendRow(table.Row{tmpl.Name, tmpl.Language, string(tmpl.Category), tmpl.Status, tmpl.ID})
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
