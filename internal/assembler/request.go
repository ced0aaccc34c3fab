package assembler

import (
	"errors"
	"fmt"
	"strings"

	"facility-reports/internal/report"
)

// ErrInvalidRequest is matched by every request validation failure.
var ErrInvalidRequest = errors.New("invalid report request")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Request describes one report to assemble. SystemIDs and
// MonitoringPointIDs are optional narrowing filters.
type Request struct {
	ClientID           string
	Period             report.Period
	SystemIDs          []string
	MonitoringPointIDs []string
	Granularity        report.Granularity
	Config             report.ReportConfig
	Conclusion         string
	Signature          *report.Signature
}

// Validate checks the preconditions that must hold before any store is queried.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return &ValidationError{Field: "client_id", Reason: "is required"}
	}
	if r.Period.Start.IsZero() {
		return &ValidationError{Field: "period.start", Reason: "is required"}
	}
	if r.Period.End.IsZero() {
		return &ValidationError{Field: "period.end", Reason: "is required"}
	}
	if report.Date(r.Period.End).Before(report.Date(r.Period.Start)) {
		return &ValidationError{Field: "period.end", Reason: "is before period.start"}
	}
	switch r.Period.Type {
	case "", report.PeriodDaily, report.PeriodWeekly, report.PeriodMonthly, report.PeriodCustom:
	default:
		return &ValidationError{Field: "period.type", Reason: fmt.Sprintf("unknown value %q", r.Period.Type)}
	}
	if r.Granularity != "" {
		if _, ok := report.ValidGranularities[r.Granularity]; !ok {
			return &ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown value %q", r.Granularity)}
		}
	}
	return nil
}

// GranularityFor picks the chart resolution for a period: the nominal type
// when it names one, otherwise by span (up to 14 days daily, up to 90 weekly,
// monthly beyond).
func GranularityFor(p report.Period) report.Granularity {
	switch p.Type {
	case report.PeriodDaily:
		return report.Daily
	case report.PeriodWeekly:
		return report.Weekly
	case report.PeriodMonthly:
		return report.Monthly
	}
	switch days := p.Days(); {
	case days <= 14:
		return report.Daily
	case days <= 90:
		return report.Weekly
	default:
		return report.Monthly
	}
}
