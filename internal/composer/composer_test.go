package composer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-reports/internal/report"
)

func fp(v float64) *float64 { return &v }

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func hdr(t report.BlockType, order int) report.BlockHeader {
	return report.BlockHeader{Type: t, Enabled: true, Order: order}
}

func newComposer() *Composer {
	return New(Config{Logger: zerolog.Nop()})
}

func emptyData() *report.ReportData {
	data := report.NewReportData(report.ClientInfo{ID: "c1", Name: "Club"}, report.Period{Start: day(1), End: day(31)})
	data.GeneratedAt = time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	return data
}

func headings(doc *report.Document) []string {
	var out []string
	for _, s := range doc.Sections {
		if h, ok := s.(report.Heading); ok && h.Level == 1 {
			out = append(out, h.Text)
		}
	}
	return out
}

func ofKind[T report.Section](sections []report.Section) []T {
	var out []T
	for _, s := range sections {
		if v, ok := s.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestCompose_BlockOrdering(t *testing.T) {
	cfg, _, err := report.ParseConfig([]byte(`{"blocks":[
		{"type":"conclusion","order":2,"enabled":true},
		{"type":"identification","order":1,"enabled":true},
		{"type":"scope","order":5,"enabled":false}
	]}`))
	require.NoError(t, err)

	doc, warnings := newComposer().Compose(emptyData(), cfg, Assets{})
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"Identification", "Conclusion"}, headings(doc))

	first, ok := doc.Sections[0].(report.Heading)
	require.True(t, ok)
	assert.Equal(t, "Identification", first.Text)
}

func TestCompose_AnalysesWithoutLogs(t *testing.T) {
	cfg := report.ReportConfig{Blocks: []report.Block{
		report.AnalysesBlock{BlockHeader: hdr(report.BlockAnalyses, 1), ShowFieldOverview: true},
	}}

	doc, _ := newComposer().Compose(emptyData(), cfg, Assets{})
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, report.Heading{Level: 1, Text: "Analyses"}, doc.Sections[0])
	p, ok := doc.Sections[1].(report.Paragraph)
	require.True(t, ok)
	assert.Equal(t, report.StyleNoData, p.Style)
}

func TestCompose_EveryBlockDegradesGracefully(t *testing.T) {
	cfg := report.DefaultConfig()
	cfg.Blocks = append(cfg.Blocks, report.AttachmentsBlock{BlockHeader: hdr(report.BlockAttachments, 10)})

	doc, warnings := newComposer().Compose(emptyData(), cfg, Assets{})
	assert.Empty(t, warnings)
	assert.Equal(t, []string{
		"Identification", "Scope", "Systems", "Analyses", "Inspections",
		"Occurrences", "Conclusion", "Signature", "Attachments",
	}, headings(doc))
	assert.NotEmpty(t, ofKind[report.Paragraph](doc.Sections))
}

func TestCompose_DisabledBlockWithInvalidOption(t *testing.T) {
	cfg, warnings, err := report.ParseConfig([]byte(`{"blocks":[
		{"type":"identification","order":1,"enabled":true},
		{"type":"scope","order":9,"enabled":false,"showStages":"no"}
	]}`))
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	doc, _ := newComposer().Compose(emptyData(), cfg, Assets{})
	assert.Equal(t, []string{"Identification"}, headings(doc))
}

func TestCompose_UnknownBlockIgnored(t *testing.T) {
	cfg := report.ReportConfig{Blocks: []report.Block{
		report.UnknownBlock{BlockHeader: hdr("gallery", 1)},
		report.SignatureBlock{BlockHeader: hdr(report.BlockSignature, 2)},
	}}

	doc, warnings := newComposer().Compose(emptyData(), cfg, Assets{})
	assert.Equal(t, []string{"Signature"}, headings(doc))
	require.Len(t, warnings, 1)
	assert.Equal(t, report.ConfigurationDefect, warnings[0].Kind)
	assert.Equal(t, "gallery", warnings[0].Subject)
}

func TestCompose_TitleOverride(t *testing.T) {
	h := hdr(report.BlockAttachments, 1)
	h.Title = "Annexes"
	cfg := report.ReportConfig{Blocks: []report.Block{report.AttachmentsBlock{BlockHeader: h, Text: "Lab certificates on file."}}}

	doc, _ := newComposer().Compose(emptyData(), cfg, Assets{})
	assert.Equal(t, []string{"Annexes"}, headings(doc))
	assert.Equal(t, report.Paragraph{Text: "Lab certificates on file.", Style: report.StyleNormal}, doc.Sections[1])
}

func logsOverDays(n int) []report.MeasurementLog {
	point := report.MonitoringPoint{ID: "pt-ph", ParameterName: "pH", MinValue: fp(7.2), MaxValue: fp(7.8)}
	var logs []report.MeasurementLog
	for i := 0; i < n; i++ {
		logs = append(logs, report.MeasurementLog{
			ID:         "l",
			Date:       day(1).AddDate(0, 0, i),
			SystemName: "Pool",
			RecordType: report.RecordField,
			Entries: []report.MeasurementEntry{{
				MonitoringPoint: point,
				Value:           fp(7.0 + float64(i)/100),
				IsOutOfRange:    i == n-1,
			}},
		})
	}
	return logs
}

func TestPivotTable_DateCap(t *testing.T) {
	table, truncated, anyOut := pivotTable(logsOverDays(20), report.DefaultDetailedDateLimit)

	assert.Equal(t, 13, truncated)
	assert.True(t, anyOut)
	require.Len(t, table.Columns, 8)
	assert.Equal(t, []string{"Parameter", "14/01", "15/01", "16/01", "17/01", "18/01", "19/01", "20/01"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Pool - pH", table.Rows[0][0])
	assert.Equal(t, "7.19*", table.Rows[0][7])
	assert.Equal(t, []int{0}, table.HighlightRows)
}

func TestPivotTable_AveragesAndGaps(t *testing.T) {
	a := report.MonitoringPoint{ID: "a", ParameterName: "Chlorine", Unit: "mg/L"}
	b := report.MonitoringPoint{ID: "b", ParameterName: "Turbidity"}
	logs := []report.MeasurementLog{
		{Date: day(1), SystemName: "Pool", Entries: []report.MeasurementEntry{{MonitoringPoint: a, Value: fp(1)}, {MonitoringPoint: b, Value: fp(0.5)}}},
		{Date: day(1).Add(8 * time.Hour), SystemName: "Pool", Entries: []report.MeasurementEntry{{MonitoringPoint: a, Value: fp(2)}}},
		{Date: day(2), SystemName: "Pool", Entries: []report.MeasurementEntry{{MonitoringPoint: a, Value: nil}}},
	}

	table, truncated, anyOut := pivotTable(logs, 7)
	assert.Zero(t, truncated)
	assert.False(t, anyOut)
	assert.Equal(t, [][]string{
		{"Pool - Chlorine (mg/L)", "1.5", "-"},
		{"Pool - Turbidity", "0.5", "-"},
	}, table.Rows)
}

func TestCompose_AnalysesLayout(t *testing.T) {
	data := emptyData()
	data.MeasurementLogs = logsOverDays(3)

	cfg := report.ReportConfig{Blocks: []report.Block{report.AnalysesBlock{
		BlockHeader:            hdr(report.BlockAnalyses, 1),
		ShowFieldOverview:      true,
		ShowFieldDetailed:      true,
		ShowLaboratoryOverview: true,
		IncludeCharts:          true,
		ChartKind:              report.ChartBar,
	}}}
	assets := Assets{FieldCharts: []report.ChartImage{{MonitoringPointID: "pt-ph", Title: "pH", Data: []byte{0x89, 'P', 'N', 'G'}}}}

	doc, _ := newComposer().Compose(data, cfg, assets)

	var kinds []report.SectionKind
	for _, s := range doc.Sections {
		kinds = append(kinds, s.Kind())
	}
	assert.Equal(t, []report.SectionKind{
		report.KindHeading,   // Analyses
		report.KindHeading,   // Field measurements
		report.KindTable,     // overview
		report.KindImage,     // chart
		report.KindTable,     // pivot
		report.KindParagraph, // out of range caption
		report.KindHeading,   // Laboratory analyses
		report.KindParagraph, // no data
	}, kinds)

	overview := doc.Sections[2].(report.Table)
	assert.Len(t, overview.Rows, 3)
	assert.Equal(t, []int{2}, overview.HighlightRows)
	assert.Equal(t, "7.2 - 7.8", overview.Rows[0][5])
}

func TestCompose_ChartsOmittedWhenNotRequested(t *testing.T) {
	data := emptyData()
	data.MeasurementLogs = logsOverDays(2)
	cfg := report.ReportConfig{Blocks: []report.Block{report.AnalysesBlock{
		BlockHeader:       hdr(report.BlockAnalyses, 1),
		ShowFieldOverview: true,
	}}}
	assets := Assets{FieldCharts: []report.ChartImage{{Data: []byte("png")}}}

	doc, _ := newComposer().Compose(data, cfg, assets)
	assert.Empty(t, ofKind[report.Image](doc.Sections))
}

func TestCompose_SystemsPhotos(t *testing.T) {
	data := emptyData()
	data.Systems = []report.SystemInfo{{
		ID:     "s1",
		Name:   "Pool",
		Photos: []report.Photo{{URL: "https://img/1.jpg"}, {URL: "https://img/broken.jpg"}},
		Stages: []report.SystemInfo{{ID: "s2", Name: "Filter", Photos: []report.Photo{{URL: "https://img/2.jpg", Caption: "Backwash"}}}},
	}}
	assets := Assets{Photos: map[string]Asset{
		"https://img/1.jpg": {Data: []byte("a"), ContentType: "image/jpeg"},
		"https://img/2.jpg": {Data: []byte("b"), ContentType: "image/jpeg"},
	}}
	cfg := report.ReportConfig{Blocks: []report.Block{report.SystemsBlock{BlockHeader: hdr(report.BlockSystems, 1), ShowStages: true, IncludePhotos: true}}}

	doc, _ := newComposer().Compose(data, cfg, assets)

	images := ofKind[report.Image](doc.Sections)
	require.Len(t, images, 2)
	assert.Equal(t, "Pool", images[0].Caption)
	assert.Equal(t, "Backwash", images[1].Caption)
	assert.Len(t, ofKind[report.Table](doc.Sections), 2)
}

func inspectionsFixture() []report.Inspection {
	return []report.Inspection{
		{ID: "i1", InspectedAt: day(3), SystemName: "Pool", Items: []report.ChecklistItem{{Description: "Fence", Compliant: true}}},
		{ID: "i2", InspectedAt: day(9), SystemName: "Tower", Items: []report.ChecklistItem{
			{Description: "Drift eliminator", Compliant: false, Notes: "cracked"},
			{Description: "Basin", Compliant: true},
		}},
	}
}

func TestCompose_Inspections(t *testing.T) {
	data := emptyData()
	data.Inspections = inspectionsFixture()

	t.Run("overview", func(t *testing.T) {
		cfg := report.ReportConfig{Blocks: []report.Block{report.InspectionsBlock{BlockHeader: hdr(report.BlockInspections, 1), ShowInspectionOverview: true}}}
		doc, _ := newComposer().Compose(data, cfg, Assets{})
		tables := ofKind[report.Table](doc.Sections)
		require.Len(t, tables, 1)
		assert.Equal(t, []string{"09/01/2025", "Tower", "-", "-", "1", "1"}, tables[0].Rows[1])
		assert.Equal(t, []int{1}, tables[0].HighlightRows)
	})

	t.Run("only non-conformities detailed", func(t *testing.T) {
		cfg := report.ReportConfig{Blocks: []report.Block{report.InspectionsBlock{
			BlockHeader:                  hdr(report.BlockInspections, 1),
			ShowInspectionDetailed:       true,
			HighlightOnlyNonConformities: true,
		}}}
		doc, _ := newComposer().Compose(data, cfg, Assets{})
		tables := ofKind[report.Table](doc.Sections)
		require.Len(t, tables, 1)
		assert.Equal(t, []string{"Drift eliminator", "Non-conforming", "cracked"}, tables[0].Rows[0])
		assert.Equal(t, []int{0}, tables[0].HighlightRows)
	})

	t.Run("all compliant", func(t *testing.T) {
		d := emptyData()
		d.Inspections = inspectionsFixture()[:1]
		cfg := report.ReportConfig{Blocks: []report.Block{report.InspectionsBlock{
			BlockHeader:                  hdr(report.BlockInspections, 1),
			ShowInspectionOverview:       true,
			HighlightOnlyNonConformities: true,
		}}}
		doc, _ := newComposer().Compose(d, cfg, Assets{})
		require.Len(t, doc.Sections, 2)
		assert.Equal(t, report.StyleNoData, doc.Sections[1].(report.Paragraph).Style)
	})
}

func incidentsFixture() []report.Incident {
	resolved := day(5).Add(14 * time.Hour)
	var list []report.Incident
	for i, p := range []report.Priority{
		report.PriorityLow, report.PriorityHigh, report.PriorityMedium, report.PriorityHigh,
		report.PriorityLow, report.PriorityLow, report.PriorityMedium,
	} {
		in := report.Incident{ID: string(rune('a' + i)), Title: "Incident " + string(rune('A'+i)), Priority: p, Status: "open", CreatedAt: day(i + 1)}
		if i == 1 {
			in.Status = "resolved"
			in.ResolvedAt = &resolved
		}
		list = append(list, in)
	}
	return list
}

func TestFilterIncidents(t *testing.T) {
	list := incidentsFixture()
	assert.Len(t, FilterIncidents(list, report.PriorityFilterAll), 7)
	assert.Len(t, FilterIncidents(list, report.PriorityFilterHighest), 2)
	assert.Len(t, FilterIncidents(list, "medium"), 2)
	assert.Empty(t, FilterIncidents(list, "critical"))
	assert.Len(t, FilterIncidents([]report.Incident{{Priority: "unset"}}, report.PriorityFilterHighest), 1)
}

func TestCompose_OccurrencesTimeline(t *testing.T) {
	data := emptyData()
	data.Incidents = incidentsFixture()
	cfg := report.ReportConfig{Blocks: []report.Block{report.OccurrencesBlock{
		BlockHeader:    hdr(report.BlockOccurrences, 1),
		ShowTimeline:   true,
		PriorityFilter: report.PriorityFilterAll,
	}}}

	doc, _ := newComposer().Compose(data, cfg, Assets{})
	bullets := ofKind[report.Paragraph](doc.Sections)
	require.Len(t, bullets, 5)
	assert.Contains(t, bullets[0].Text, "Incident G")
	assert.Contains(t, bullets[4].Text, "Incident C")
}

func TestCompose_OccurrencesHighestDetailed(t *testing.T) {
	data := emptyData()
	data.Incidents = incidentsFixture()
	data.Incidents[3].Comments = []report.Comment{{Author: "Ana", Text: "Pump replaced", CreatedAt: day(6)}}
	cfg := report.ReportConfig{Blocks: []report.Block{report.OccurrencesBlock{
		BlockHeader:            hdr(report.BlockOccurrences, 1),
		ShowOccurrenceOverview: true,
		ShowOccurrenceDetailed: true,
		PriorityFilter:         report.PriorityFilterHighest,
	}}}

	doc, _ := newComposer().Compose(data, cfg, Assets{})
	tables := ofKind[report.Table](doc.Sections)
	require.Len(t, tables, 3)
	assert.Len(t, tables[0].Rows, 2)
	assert.Equal(t, []int{1}, tables[0].HighlightRows)
	assert.Equal(t, "05/01/2025 14:00", tables[0].Rows[0][5])

	var texts []string
	for _, p := range ofKind[report.Paragraph](doc.Sections) {
		texts = append(texts, p.Text)
	}
	assert.Contains(t, texts, "06/01/2025 00:00 Ana: Pump replaced")
}

func TestCompose_ConclusionAlert(t *testing.T) {
	data := emptyData()
	data.Summary = report.Summary{TotalMeasurements: 10, OutOfRange: 2}
	cfg := report.ReportConfig{Blocks: []report.Block{report.ConclusionBlock{BlockHeader: hdr(report.BlockConclusion, 1), ShowSummary: true, ShowAlerts: true}}}

	doc, _ := newComposer().Compose(data, cfg, Assets{})
	paragraphs := ofKind[report.Paragraph](doc.Sections)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, report.StyleAlert, paragraphs[0].Style)
	assert.Equal(t, report.Paragraph{Text: "No conclusion provided.", Style: report.StyleNoData}, paragraphs[1])

	data.Summary = report.Summary{TotalMeasurements: 10}
	data.Conclusion = "All parameters within range."
	doc, _ = newComposer().Compose(data, cfg, Assets{})
	paragraphs = ofKind[report.Paragraph](doc.Sections)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, report.StyleNormal, paragraphs[0].Style)
}

func TestCompose_Signature(t *testing.T) {
	data := emptyData()
	data.Signature = &report.Signature{Name: "Dr. Lima", Role: "Chemist", Registration: "CRQ 123"}
	cfg := report.ReportConfig{Blocks: []report.Block{report.SignatureBlock{BlockHeader: hdr(report.BlockSignature, 1), ShowDate: true}}}

	doc, _ := newComposer().Compose(data, cfg, Assets{})
	paragraphs := ofKind[report.Paragraph](doc.Sections)
	require.Len(t, paragraphs, 5)
	assert.Equal(t, "Dr. Lima", paragraphs[1].Text)
	assert.Equal(t, "Registration: CRQ 123", paragraphs[3].Text)
	assert.Equal(t, "Date: 01/02/2025", paragraphs[4].Text)
}

func TestCompose_Branding(t *testing.T) {
	data := emptyData()
	data.Company = report.CompanyInfo{Name: "AquaTech"}
	cfg := report.ReportConfig{Branding: report.Branding{ShowLogo: true, LogoPosition: "middle", HeaderText: "Report", ShowFooter: true}}

	doc, warnings := newComposer().Compose(data, cfg, Assets{Logo: &Asset{Data: []byte("logo")}})
	require.Len(t, warnings, 1)
	assert.Equal(t, report.LogoLeft, doc.Header.LogoPosition)
	assert.Equal(t, []byte("logo"), doc.Header.Logo)
	assert.Equal(t, "AquaTech | Club", doc.Footer.Text)
	assert.Empty(t, doc.Sections)
	assert.Equal(t, "middle", string(cfg.Branding.LogoPosition))
}
