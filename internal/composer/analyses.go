package composer

import (
	"fmt"
	"sort"
	"time"

	"facility-reports/internal/report"
)

func (w *writer) analyses(b report.AnalysesBlock) {
	w.heading(1, title(b.BlockHeader, "Analyses"))
	if len(w.data.MeasurementLogs) == 0 {
		w.noData("No measurements recorded in the period.")
		return
	}

	limit := b.DetailedDateLimit
	if limit <= 0 {
		limit = report.DefaultDetailedDateLimit
	}

	var fieldCharts, labCharts []report.ChartImage
	if b.IncludeCharts {
		fieldCharts, labCharts = w.assets.FieldCharts, w.assets.LaboratoryCharts
	}

	w.recordType(recordView{
		title:    "Field measurements",
		empty:    "No field measurements in the period.",
		logs:     w.data.LogsOfType(report.RecordField),
		overview: b.ShowFieldOverview,
		detailed: b.ShowFieldDetailed,
		charts:   fieldCharts,
		limit:    limit,
	})
	w.recordType(recordView{
		title:    "Laboratory analyses",
		empty:    "No laboratory analyses in the period.",
		logs:     w.data.LogsOfType(report.RecordLaboratory),
		overview: b.ShowLaboratoryOverview,
		detailed: b.ShowLaboratoryDetailed,
		charts:   labCharts,
		limit:    limit,
	})
}

type recordView struct {
	title    string
	empty    string
	logs     []report.MeasurementLog
	overview bool
	detailed bool
	charts   []report.ChartImage
	limit    int
}

// recordType writes overview, charts and detailed pivot for one record type,
// in that order.
func (w *writer) recordType(v recordView) {
	if !v.overview && !v.detailed && len(v.charts) == 0 {
		return
	}
	w.heading(2, v.title)
	if len(v.logs) == 0 {
		w.noData(v.empty)
		return
	}
	if v.overview {
		w.table(overviewTable(v.logs))
	}
	for _, c := range v.charts {
		w.chart(c)
	}
	if v.detailed {
		t, truncated, anyOut := pivotTable(v.logs, v.limit)
		w.table(t)
		if anyOut {
			w.paragraph(report.StyleCaption, "* value outside the acceptable range")
		}
		if truncated > 0 {
			w.paragraph(report.StyleCaption, fmt.Sprintf("Showing the %d most recent dates; %d earlier date(s) omitted.", len(t.Columns)-1, truncated))
		}
	}
}

func overviewTable(logs []report.MeasurementLog) report.Table {
	t := report.Table{Columns: []string{"Date", "System", "Parameter", "Value", "Unit", "Range", "Status"}}
	for _, l := range logs {
		for _, e := range l.Entries {
			status := "OK"
			if e.IsOutOfRange {
				status = "Out of range"
				t.HighlightRows = append(t.HighlightRows, len(t.Rows))
			}
			p := e.MonitoringPoint
			t.Rows = append(t.Rows, []string{
				formatDate(l.Date),
				orDash(l.SystemName),
				pointName(p),
				formatValue(e.Value),
				orDash(p.Unit),
				formatRange(p.MinValue, p.MaxValue),
				status,
			})
		}
	}
	return t
}

func pointName(p report.MonitoringPoint) string {
	if p.ParameterName != "" {
		return p.ParameterName
	}
	return orDash(p.Name)
}

type cell struct {
	sum   float64
	count int
	out   bool
}

// pivotTable lays out parameters by date over the most recent limit distinct
// dates, ascending. Several readings of a parameter on one date are averaged.
// It returns the table, the number of dates left out, and whether any shown
// cell is out of range.
func pivotTable(logs []report.MeasurementLog, limit int) (report.Table, int, bool) {
	dateSet := make(map[time.Time]struct{})
	for _, l := range logs {
		dateSet[report.Date(l.Date)] = struct{}{}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	truncated := 0
	if len(dates) > limit {
		truncated = len(dates) - limit
		dates = dates[truncated:]
	}
	column := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		column[d] = i
	}

	type row struct {
		label string
		cells []cell
	}
	var rows []*row
	byPoint := make(map[string]*row)
	for _, l := range logs {
		col, ok := column[report.Date(l.Date)]
		if !ok {
			continue
		}
		for _, e := range l.Entries {
			p := e.MonitoringPoint
			key := p.ID
			if key == "" {
				key = l.SystemID + "/" + pointName(p)
			}
			r, ok := byPoint[key]
			if !ok {
				label := joinNonEmpty(" - ", l.SystemName, pointName(p))
				if p.Unit != "" {
					label += " (" + p.Unit + ")"
				}
				r = &row{label: label, cells: make([]cell, len(dates))}
				byPoint[key] = r
				rows = append(rows, r)
			}
			c := &r.cells[col]
			if e.Value != nil {
				c.sum += *e.Value
				c.count++
			}
			if e.IsOutOfRange {
				c.out = true
			}
		}
	}

	t := report.Table{Columns: append([]string{"Parameter"}, formatDates(dates)...)}
	anyOut := false
	for _, r := range rows {
		out := []string{r.label}
		highlight := false
		for _, c := range r.cells {
			text := "-"
			if c.count > 0 {
				text = formatNumber(c.sum / float64(c.count))
			}
			if c.out {
				text += "*"
				highlight = true
			}
			out = append(out, text)
		}
		if highlight {
			anyOut = true
			t.HighlightRows = append(t.HighlightRows, len(t.Rows))
		}
		t.Rows = append(t.Rows, out)
	}
	return t, truncated, anyOut
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("02/01")
	}
	return out
}
