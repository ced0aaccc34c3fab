package composer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"facility-reports/internal/report"
)

func (w *writer) inspections(b report.InspectionsBlock) {
	w.heading(1, title(b.BlockHeader, "Inspections"))

	list := w.data.Inspections
	if b.HighlightOnlyNonConformities {
		list = nonConforming(list)
	}
	if len(list) == 0 {
		if b.HighlightOnlyNonConformities && len(w.data.Inspections) > 0 {
			w.noData("No non-conformities found in the period.")
		} else {
			w.noData("No inspections carried out in the period.")
		}
		return
	}

	if b.ShowInspectionOverview {
		t := report.Table{Columns: []string{"Date", "System", "Inspector", "Status", "Compliant", "Non-conformities"}}
		for _, in := range list {
			nc := in.NonConformityCount()
			if nc > 0 {
				t.HighlightRows = append(t.HighlightRows, len(t.Rows))
			}
			t.Rows = append(t.Rows, []string{
				formatDate(in.InspectedAt),
				orDash(in.SystemName),
				orDash(in.Inspector),
				orDash(in.Status),
				strconv.Itoa(in.CompliantCount()),
				strconv.Itoa(nc),
			})
		}
		w.table(t)
	}

	if !b.ShowInspectionDetailed {
		return
	}
	for _, in := range list {
		w.heading(2, joinNonEmpty(" - ", formatDate(in.InspectedAt), in.SystemName))
		w.paragraph(report.StyleNormal, fmt.Sprintf("Inspector: %s. Status: %s.", orDash(in.Inspector), orDash(in.Status)))
		if in.Notes != "" {
			w.paragraph(report.StyleNormal, in.Notes)
		}

		if len(in.Items) == 0 {
			w.noData("No checklist items recorded.")
		} else {
			t := report.Table{Columns: []string{"Item", "Result", "Notes"}}
			for _, item := range in.Items {
				result := "Compliant"
				if !item.Compliant {
					result = "Non-conforming"
					t.HighlightRows = append(t.HighlightRows, len(t.Rows))
				}
				t.Rows = append(t.Rows, []string{item.Description, result, orDash(item.Notes)})
			}
			w.table(t)
		}

		if b.IncludePhotos {
			w.photos(in.Photos, in.SystemName)
			for _, item := range in.Items {
				w.photos(item.Photos, item.Description)
			}
		}
	}
}

func nonConforming(list []report.Inspection) []report.Inspection {
	var out []report.Inspection
	for _, in := range list {
		if in.NonConformityCount() > 0 {
			out = append(out, in)
		}
	}
	return out
}

func (w *writer) occurrences(b report.OccurrencesBlock) {
	w.heading(1, title(b.BlockHeader, "Occurrences"))

	list := FilterIncidents(w.data.Incidents, b.PriorityFilter)
	if len(list) == 0 {
		w.noData("No occurrences recorded in the period.")
		return
	}

	if b.ShowOccurrenceOverview {
		t := report.Table{Columns: []string{"Opened", "Title", "System", "Priority", "Status", "Resolved"}}
		for _, in := range list {
			if in.IsOpen() {
				t.HighlightRows = append(t.HighlightRows, len(t.Rows))
			}
			t.Rows = append(t.Rows, []string{
				formatDateTime(in.CreatedAt),
				in.Title,
				orDash(in.SystemName),
				orDash(string(in.Priority)),
				orDash(in.Status),
				resolvedAt(in),
			})
		}
		w.table(t)
	}

	if b.ShowTimeline {
		w.heading(2, "Timeline")
		for _, in := range latest(list, timelineLimit) {
			line := fmt.Sprintf("%s [%s] %s", formatDateTime(in.CreatedAt), strings.ToUpper(orDash(string(in.Priority))), in.Title)
			if in.ResolvedAt != nil {
				line += ", resolved " + formatDateTime(*in.ResolvedAt)
			} else if in.IsOpen() {
				line += ", open"
			}
			w.paragraph(report.StyleBullet, line)
		}
	}

	if !b.ShowOccurrenceDetailed {
		return
	}
	for _, in := range list {
		w.heading(2, in.Title)
		w.table(report.Table{
			Columns: []string{"Field", "Value"},
			Rows: [][]string{
				{"System", orDash(in.SystemName)},
				{"Priority", orDash(string(in.Priority))},
				{"Status", orDash(in.Status)},
				{"Opened", formatDateTime(in.CreatedAt)},
				{"Resolved", resolvedAt(in)},
			},
		})
		if in.Description != "" {
			w.paragraph(report.StyleNormal, in.Description)
		}
		if len(in.Comments) == 0 {
			w.noData("No comments.")
		}
		for _, c := range in.Comments {
			w.paragraph(report.StyleBullet, fmt.Sprintf("%s %s: %s", formatDateTime(c.CreatedAt), orDash(c.Author), c.Text))
		}
		if b.IncludePhotos {
			w.photos(in.Photos, in.Title)
		}
	}
}

func resolvedAt(in report.Incident) string {
	if in.ResolvedAt == nil {
		return "-"
	}
	return formatDateTime(*in.ResolvedAt)
}

// FilterIncidents applies an occurrences priority filter: "all", "highest"
// (only the most urgent priority present) or a single priority.
func FilterIncidents(list []report.Incident, filter string) []report.Incident {
	switch filter {
	case "", report.PriorityFilterAll:
		return list
	case report.PriorityFilterHighest:
		top := 0
		for _, in := range list {
			if r := in.Priority.Rank(); r > top {
				top = r
			}
		}
		if top == 0 {
			return list
		}
		var out []report.Incident
		for _, in := range list {
			if in.Priority.Rank() == top {
				out = append(out, in)
			}
		}
		return out
	}
	var out []report.Incident
	for _, in := range list {
		if string(in.Priority) == filter {
			out = append(out, in)
		}
	}
	return out
}

// latest returns up to n incidents, most recent first.
func latest(list []report.Incident, n int) []report.Incident {
	out := append([]report.Incident(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
