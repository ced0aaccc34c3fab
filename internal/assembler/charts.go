package assembler

import (
	"facility-reports/internal/aggregate"
	"facility-reports/internal/chart"
	"facility-reports/internal/report"
)

// SelectPoints returns the explicitly requested points in request order, or the
// first limit points when none were requested. Requested IDs not found among
// points are dropped.
func SelectPoints(points []report.MonitoringPoint, ids []string, limit int) []report.MonitoringPoint {
	if len(ids) == 0 {
		if len(points) > limit {
			points = points[:limit]
		}
		return append([]report.MonitoringPoint(nil), points...)
	}

	byID := make(map[string]report.MonitoringPoint, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}
	var out []report.MonitoringPoint
	seen := make(map[string]struct{})
	for _, id := range ids {
		p, ok := byID[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}

// chartColor returns the color set on the first enabled analyses block.
func chartColor(cfg report.ReportConfig) string {
	for _, b := range cfg.EnabledBlocks() {
		if a, ok := b.(report.AnalysesBlock); ok {
			return a.ChartColor
		}
	}
	return ""
}

type seriesBuilder struct {
	period      report.Period
	granularity report.Granularity
	locale      aggregate.Locale
	color       string
	systemNames map[string]string
}

// build returns one dense series per point that has entries in logs.
func (b seriesBuilder) build(points []report.MonitoringPoint, logs []report.MeasurementLog) []report.ChartSeries {
	entries := make(map[string][]aggregate.Entry)
	for _, l := range logs {
		for _, e := range l.Entries {
			id := e.MonitoringPoint.ID
			entries[id] = append(entries[id], aggregate.Entry{Date: l.Date, Value: e.Value, IsOutOfRange: e.IsOutOfRange})
		}
	}

	out := []report.ChartSeries{}
	for _, p := range points {
		pe, ok := entries[p.ID]
		if !ok {
			continue
		}
		color := b.color
		if color == "" {
			color = chart.PaletteColor(len(out))
		}
		out = append(out, report.ChartSeries{
			MonitoringPointID: p.ID,
			SystemName:        b.systemNames[p.SystemID],
			ParameterName:     parameterName(p),
			Unit:              p.Unit,
			MinValue:          p.MinValue,
			MaxValue:          p.MaxValue,
			Granularity:       b.granularity,
			Points:            aggregate.AggregateDense(pe, b.granularity, b.period, b.locale),
			Color:             color,
		})
	}
	return out
}

func parameterName(p report.MonitoringPoint) string {
	if p.ParameterName != "" {
		return p.ParameterName
	}
	return p.Name
}
