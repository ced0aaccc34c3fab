package report

import (
	"fmt"
	"sync"
)

// WarningKind classifies a failure that was absorbed instead of aborting a report.
type WarningKind string

const (
	AssetFetchFailure   WarningKind = "asset_fetch_failure"
	ChartRenderFailure  WarningKind = "chart_render_failure"
	ConfigurationDefect WarningKind = "configuration_defect"
	HistoryFailure      WarningKind = "history_failure"
	PublishFailure      WarningKind = "publish_failure"
)

type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Subject, w.Message)
}

// Diagnostics collects warnings from concurrent tasks.
type Diagnostics struct {
	mu       sync.Mutex
	warnings []Warning
}

func (d *Diagnostics) Add(w ...Warning) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warnings = append(d.warnings, w...)
}

func (d *Diagnostics) Addf(kind WarningKind, subject, format string, args ...any) {
	d.Add(Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns a copy of the collected warnings, never nil.
func (d *Diagnostics) Warnings() []Warning {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Warning, len(d.warnings))
	copy(out, d.warnings)
	return out
}

// Count returns the number of warnings of the given kind.
func (d *Diagnostics) Count(kind WarningKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, w := range d.warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
