// Package composer turns assembled report data and a report template into an
// ordered list of document sections.
package composer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"facility-reports/internal/report"
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"

	timelineLimit = 5
)

// Asset is a fetched binary keyed by its source URL in Assets.
type Asset struct {
	Data        []byte
	ContentType string
}

// Assets holds everything the caller resolved before composition. Photos
// missing from the map are left out of the document.
type Assets struct {
	Photos           map[string]Asset
	Logo             *Asset
	FieldCharts      []report.ChartImage
	LaboratoryCharts []report.ChartImage
}

type Composer struct {
	logger zerolog.Logger
}

type Config struct {
	Logger zerolog.Logger
}

func New(cfg Config) *Composer {
	return &Composer{logger: cfg.Logger}
}

// Compose walks the enabled blocks once in ascending order. Unknown block
// types and invalid options are reported as warnings and never stop
// composition.
func (c *Composer) Compose(data *report.ReportData, cfg report.ReportConfig, assets Assets) (*report.Document, []report.Warning) {
	if data == nil {
		data = report.NewReportData(report.ClientInfo{}, report.Period{})
	}
	cfg.Blocks = append([]report.Block(nil), cfg.Blocks...)
	warnings := cfg.Normalize()

	doc := &report.Document{
		Header:      header(cfg.Branding, assets),
		Footer:      footer(data, cfg.Branding),
		Sections:    []report.Section{},
		GeneratedAt: data.GeneratedAt,
	}

	for _, b := range cfg.EnabledBlocks() {
		w := &writer{data: data, assets: assets}
		switch v := b.(type) {
		case report.IdentificationBlock:
			w.identification(v)
		case report.ScopeBlock:
			w.scope(v)
		case report.SystemsBlock:
			w.systems(v)
		case report.AnalysesBlock:
			w.analyses(v)
		case report.InspectionsBlock:
			w.inspections(v)
		case report.OccurrencesBlock:
			w.occurrences(v)
		case report.ConclusionBlock:
			w.conclusion(v)
		case report.SignatureBlock:
			w.signature(v)
		case report.AttachmentsBlock:
			w.attachments(v)
		default:
			h := b.Header()
			c.logger.Warn().Str("block_type", string(h.Type)).Msg("unknown block type ignored")
			warnings = append(warnings, report.Warning{
				Kind:    report.ConfigurationDefect,
				Subject: string(h.Type),
				Message: "unknown block type ignored",
			})
		}
		doc.Sections = append(doc.Sections, w.sections...)
	}

	c.logger.Debug().Int("sections", len(doc.Sections)).Int("warnings", len(warnings)).Msg("document composed")
	return doc, warnings
}

func header(b report.Branding, assets Assets) report.DocumentHeader {
	h := report.DocumentHeader{Text: b.HeaderText, LogoPosition: b.LogoPosition}
	if b.ShowLogo && assets.Logo != nil {
		h.Logo = assets.Logo.Data
	}
	return h
}

func footer(data *report.ReportData, b report.Branding) report.DocumentFooter {
	f := report.DocumentFooter{Show: b.ShowFooter, Text: b.FooterText}
	if f.Show && f.Text == "" {
		f.Text = joinNonEmpty(" | ", data.Company.Name, data.Client.Name)
	}
	return f
}

// writer accumulates the sections of one block.
type writer struct {
	data     *report.ReportData
	assets   Assets
	sections []report.Section
}

func (w *writer) heading(level int, text string) {
	w.sections = append(w.sections, report.Heading{Level: level, Text: text})
}

func (w *writer) paragraph(style report.ParagraphStyle, text string) {
	w.sections = append(w.sections, report.Paragraph{Text: text, Style: style})
}

func (w *writer) noData(text string) {
	w.paragraph(report.StyleNoData, text)
}

func (w *writer) table(t report.Table) {
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	w.sections = append(w.sections, t)
}

// photos embeds the photos that were fetched. fallback captions photos
// without their own caption.
func (w *writer) photos(photos []report.Photo, fallback string) {
	for _, p := range photos {
		a, ok := w.assets.Photos[p.URL]
		if !ok || len(a.Data) == 0 {
			continue
		}
		caption := p.Caption
		if caption == "" {
			caption = fallback
		}
		w.sections = append(w.sections, report.Image{Data: a.Data, ContentType: a.ContentType, Caption: caption, Source: p.URL})
	}
}

func (w *writer) chart(img report.ChartImage) {
	if len(img.Data) == 0 {
		return
	}
	w.sections = append(w.sections, report.Image{Data: img.Data, ContentType: "image/png", Caption: img.Title})
}

func title(h report.BlockHeader, fallback string) string {
	if t := strings.TrimSpace(h.Title); t != "" {
		return t
	}
	return fallback
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateTimeLayout)
}

func formatPeriod(p report.Period) string {
	return fmt.Sprintf("%s to %s", formatDate(p.Start), formatDate(p.End))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatNumber(*v)
}

func formatRange(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return formatNumber(*min) + " - " + formatNumber(*max)
	case min != nil:
		return ">= " + formatNumber(*min)
	case max != nil:
		return "<= " + formatNumber(*max)
	}
	return "-"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
