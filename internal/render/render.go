// Package render writes composed documents for terminals and files.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"facility-reports/internal/report"
)

// Text writes doc as plain text. Tables are drawn with tablewriter and
// images are replaced by a one-line placeholder.
func Text(w io.Writer, doc *report.Document) error {
	if doc.Header.Text != "" {
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", doc.Header.Text, strings.Repeat("=", len([]rune(doc.Header.Text)))); err != nil {
			return err
		}
	}
	if len(doc.Header.Logo) > 0 {
		if _, err := fmt.Fprintf(w, "[logo, %s]\n\n", doc.Header.LogoPosition); err != nil {
			return err
		}
	}

	for _, s := range doc.Sections {
		var err error
		switch v := s.(type) {
		case report.Heading:
			err = heading(w, v)
		case report.Paragraph:
			err = paragraph(w, v)
		case report.Table:
			err = table(w, v)
		case report.Image:
			_, err = fmt.Fprintf(w, "[image: %s (%s, %d bytes)]\n\n", orUntitled(v.Caption), v.ContentType, len(v.Data))
		}
		if err != nil {
			return err
		}
	}

	if doc.Footer.Show && doc.Footer.Text != "" {
		if _, err := fmt.Fprintf(w, "---\n%s\n", doc.Footer.Text); err != nil {
			return err
		}
	}
	return nil
}

func heading(w io.Writer, h report.Heading) error {
	level := h.Level
	if level < 1 {
		level = 1
	}
	_, err := fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), h.Text)
	return err
}

func paragraph(w io.Writer, p report.Paragraph) error {
	var line string
	switch p.Style {
	case report.StyleBullet:
		line = "  - " + p.Text
	case report.StyleAlert:
		line = "(!) " + p.Text
	case report.StyleCaption:
		line = "  " + p.Text
	case report.StyleNoData:
		line = "  (" + p.Text + ")"
	default:
		line = p.Text
	}
	_, err := fmt.Fprintf(w, "%s\n\n", line)
	return err
}

func table(w io.Writer, t report.Table) error {
	if t.Title != "" {
		if _, err := fmt.Fprintf(w, "%s\n", t.Title); err != nil {
			return err
		}
	}

	highlight := make(map[int]bool, len(t.HighlightRows))
	for _, i := range t.HighlightRows {
		highlight[i] = true
	}
	rows := make([][]string, 0, len(t.Rows))
	for i, r := range t.Rows {
		row := append([]string(nil), r...)
		if highlight[i] && len(row) > 0 {
			row[0] = "! " + row[0]
		}
		rows = append(rows, row)
	}

	tbl := tablewriter.NewWriter(w)
	defer func() { _ = tbl.Close() }()
	tbl.Header(t.Columns)
	tbl.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := tbl.Bulk(rows); err != nil {
		return err
	}
	if err := tbl.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCharts saves images as PNG files under dir and returns their paths.
// Files are named <prefix>-<n>-<monitoring point>.png.
func WriteCharts(dir, prefix string, images []report.ChartImage) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create charts directory: %w", err)
	}
	paths := make([]string, 0, len(images))
	for i, img := range images {
		name := fmt.Sprintf("%s-%02d-%s.png", prefix, i+1, slug(img.MonitoringPointID))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write chart %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "chart"
	}
	return b.String()
}

func orUntitled(s string) string {
	if s == "" {
		return "untitled"
	}
	return s
}
