package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"facility-reports/internal/report"
	"facility-reports/internal/storage"
)

type TemplateStore interface {
	Template(ctx context.Context, id string) (*storage.ReportTemplate, error)
}

// ParseTemplate decodes body as YAML when format is "yaml" or "yml" and as
// JSON otherwise.
func ParseTemplate(format string, body []byte) (report.ReportConfig, []report.Warning, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return report.ParseConfigYAML(body)
	default:
		return report.ParseConfig(body)
	}
}

// LoadTemplate resolves a stored template by ID. Missing templates return
// an error wrapping report.ErrNotFound.
func LoadTemplate(ctx context.Context, store TemplateStore, id string) (report.ReportConfig, []report.Warning, error) {
	t, err := store.Template(ctx, id)
	if err != nil {
		return report.ReportConfig{}, nil, fmt.Errorf("load template %s: %w", id, err)
	}
	return ParseTemplate(t.Format, []byte(t.Body))
}

// ReadTemplateFile decodes a template file, picking the format from its extension.
func ReadTemplateFile(path string) (report.ReportConfig, []report.Warning, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return report.ReportConfig{}, nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplate(filepath.Ext(path), body)
}
