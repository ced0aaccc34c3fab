package composer

import (
	"fmt"
	"strconv"

	"facility-reports/internal/report"
)

func (w *writer) identification(b report.IdentificationBlock) {
	w.heading(1, title(b.BlockHeader, "Identification"))

	c := w.data.Client
	rows := fieldRows(
		"Client", c.Name,
		"Document", c.Document,
		"Address", joinNonEmpty(", ", c.Address, c.City, c.State),
		"Contact", c.Contact,
		"E-mail", c.Email,
		"Phone", c.Phone,
	)
	if len(rows) == 0 {
		rows = [][]string{{"Client", orDash(c.ID)}}
	}
	w.table(report.Table{Title: "Client", Columns: []string{"Field", "Value"}, Rows: rows})

	if b.ShowCompany {
		co := w.data.Company
		rows := fieldRows(
			"Company", co.Name,
			"Document", co.Document,
			"Address", co.Address,
			"Phone", co.Phone,
			"E-mail", co.Email,
		)
		if len(rows) > 0 {
			w.table(report.Table{Title: "Service provider", Columns: []string{"Field", "Value"}, Rows: rows})
		}
	}

	w.paragraph(report.StyleNormal, "Reporting period: "+formatPeriod(w.data.Period))
	if b.ShowGenerationInfo {
		w.paragraph(report.StyleCaption, "Generated on "+formatDateTime(w.data.GeneratedAt))
	}
}

// fieldRows pairs labels with values, dropping empty values.
func fieldRows(pairs ...string) [][]string {
	var rows [][]string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			rows = append(rows, []string{pairs[i], pairs[i+1]})
		}
	}
	return rows
}

func (w *writer) scope(b report.ScopeBlock) {
	w.heading(1, title(b.BlockHeader, "Scope"))

	text := b.Text
	if text == "" {
		text = fmt.Sprintf("This report presents the monitoring carried out for %s from %s, covering the systems listed below.",
			orDash(w.data.Client.Name), formatPeriod(w.data.Period))
	}
	w.paragraph(report.StyleNormal, text)

	if len(w.data.Systems) == 0 {
		w.noData("No systems in scope.")
		return
	}
	for _, s := range w.data.Systems {
		w.paragraph(report.StyleBullet, systemLabel(s))
		if !b.ShowStages {
			continue
		}
		for _, st := range s.Stages {
			w.paragraph(report.StyleBullet, s.Name+" / "+systemLabel(st))
		}
	}
}

func systemLabel(s report.SystemInfo) string {
	if s.Type == "" {
		return s.Name
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Type)
}

var systemColumns = []string{"Name", "Type", "Status", "Description"}

func systemRow(s report.SystemInfo) []string {
	return []string{s.Name, orDash(s.Type), orDash(s.Status), orDash(s.Description)}
}

func (w *writer) systems(b report.SystemsBlock) {
	w.heading(1, title(b.BlockHeader, "Systems"))
	if len(w.data.Systems) == 0 {
		w.noData("No systems registered for this client.")
		return
	}

	rows := make([][]string, 0, len(w.data.Systems))
	for _, s := range w.data.Systems {
		rows = append(rows, systemRow(s))
	}
	w.table(report.Table{Columns: systemColumns, Rows: rows})

	if b.ShowStages {
		for _, s := range w.data.Systems {
			if len(s.Stages) == 0 {
				continue
			}
			w.heading(2, "Stages of "+s.Name)
			stages := make([][]string, 0, len(s.Stages))
			for _, st := range s.Stages {
				stages = append(stages, systemRow(st))
			}
			w.table(report.Table{Columns: systemColumns, Rows: stages})
		}
	}

	if b.IncludePhotos {
		for _, s := range w.data.Systems {
			w.photos(s.Photos, s.Name)
			for _, st := range s.Stages {
				w.photos(st.Photos, st.Name)
			}
		}
	}
}

func (w *writer) conclusion(b report.ConclusionBlock) {
	w.heading(1, title(b.BlockHeader, "Conclusion"))
	sum := w.data.Summary

	if b.ShowSummary {
		w.table(report.Table{
			Title:   "Summary",
			Columns: []string{"Indicator", "Value"},
			Rows: [][]string{
				{"Systems monitored", strconv.Itoa(sum.TotalSystems)},
				{"Measurements", strconv.Itoa(sum.TotalMeasurements)},
				{"Out-of-range measurements", strconv.Itoa(sum.OutOfRange)},
				{"Inspections", strconv.Itoa(sum.Inspections)},
				{"Occurrences", strconv.Itoa(sum.Incidents)},
				{"Open occurrences", strconv.Itoa(sum.OpenIncidents)},
			},
		})
	}

	if b.ShowAlerts && (sum.OutOfRange > 0 || sum.OpenIncidents > 0) {
		w.paragraph(report.StyleAlert, fmt.Sprintf(
			"Attention: %d out-of-range measurement(s) and %d open occurrence(s) require follow-up.",
			sum.OutOfRange, sum.OpenIncidents))
	}

	if w.data.Conclusion == "" {
		w.noData("No conclusion provided.")
		return
	}
	w.paragraph(report.StyleNormal, w.data.Conclusion)
}

func (w *writer) signature(b report.SignatureBlock) {
	w.heading(1, title(b.BlockHeader, "Signature"))

	sig := w.data.Signature
	if sig == nil || sig.Name == "" {
		w.noData("No signatory provided.")
	} else {
		w.paragraph(report.StyleSignature, "______________________________")
		w.paragraph(report.StyleSignature, sig.Name)
		if sig.Role != "" {
			w.paragraph(report.StyleSignature, sig.Role)
		}
		if sig.Registration != "" {
			w.paragraph(report.StyleSignature, "Registration: "+sig.Registration)
		}
	}

	if b.ShowDate {
		w.paragraph(report.StyleCaption, "Date: "+formatDate(w.data.GeneratedAt))
	}
}

func (w *writer) attachments(b report.AttachmentsBlock) {
	w.heading(1, title(b.BlockHeader, "Attachments"))
	if b.Text == "" {
		w.noData("No attachments.")
		return
	}
	w.paragraph(report.StyleNormal, b.Text)
}
