package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/platformbuilds/mirador-insights/internal/models"
)

const notAvailable = "-"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// formatMillis renders epoch millis as RFC 3339 in loc followed by the raw
// value, or "-" when unknown.
func formatMillis(ms *int64, loc *time.Location) string {
	if ms == nil {
		return notAvailable
	}
	return fmt.Sprintf("%s (%d)", time.UnixMilli(*ms).In(loc).Format(time.RFC3339Nano), *ms)
}

type palette struct {
	warn func(...any) string
	ok   func(...any) string
}

func newPalette(noColor bool) palette {
	if noColor || color.NoColor {
		return palette{warn: fmt.Sprint, ok: fmt.Sprint}
	}
	return palette{
		warn: color.New(color.FgRed, color.Bold).SprintFunc(),
		ok:   color.New(color.FgGreen).SprintFunc(),
	}
}

func writeInsightsTable(w io.Writer, insights *models.AlertInsights, loc *time.Location, p palette) error {
	suspicious := formatMillis(insights.SuspiciousDatasetEndTime, loc)
	if insights.SuspiciousDatasetEndTime != nil {
		suspicious = p.warn(suspicious)
	}

	rows := [][]string{}
	if t := insights.TemplateWithProperties; t != nil {
		rows = append(rows,
			[]string{"template", t.Name},
			[]string{"dataset", orDash(t.Metadata.DatasetName())},
			[]string{"granularity", orDash(t.Metadata.Granularity)},
		)
	}
	rows = append(rows,
		[]string{"dataset start", formatMillis(insights.DatasetStartTime, loc)},
		[]string{"dataset end", p.ok(formatMillis(insights.DatasetEndTime, loc))},
		[]string{"suspicious end", suspicious},
		[]string{"default start", formatMillis(insights.DefaultStartTime, loc)},
		[]string{"default end", formatMillis(insights.DefaultEndTime, loc)},
	)
	return renderTable(w, []string{"Field", "Value"}, rows)
}

func writeWindowTable(w io.Writer, window models.DefaultWindow, loc *time.Location) error {
	start, end := window.StartTime, window.EndTime
	return renderTable(w, []string{"Field", "Value"}, [][]string{
		{"start", formatMillis(&start, loc)},
		{"end", formatMillis(&end, loc)},
		{"granularity", orDash(window.Granularity)},
		{"lookback", orDash(window.Lookback)},
		{"timezone", orDash(window.Timezone)},
	})
}

func writeDatasetsTable(w io.Writer, datasets []models.DatasetConfig) error {
	rows := make([][]string, 0, len(datasets))
	for _, d := range datasets {
		rows = append(rows, []string{
			d.Name,
			d.DataSource,
			d.EffectiveTable(),
			orDash(d.TimeColumn),
			string(d.EffectiveTimeFormat()),
			orDash(d.Timezone),
		})
	}
	if err := renderTable(w, []string{"Name", "Datasource", "Table", "Time Column", "Format", "Timezone"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s datasets\n", strconv.Itoa(len(datasets)))
	return err
}

func orDash(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
