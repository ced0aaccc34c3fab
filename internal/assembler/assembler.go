// Package assembler gathers everything a report needs from the system,
// measurement, inspection and incident stores into one ReportData.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"facility-reports/internal/aggregate"
	"facility-reports/internal/report"
)

// DefaultPointLimit is how many monitoring points are charted when the caller
// does not pick any. The fallback takes the first points in store order and is
// not a curated selection.
const DefaultPointLimit = 5

type SystemStore interface {
	Client(ctx context.Context, clientID string) (report.ClientInfo, error)
	// RootSystems returns the client's systems without a parent, each with its
	// stages. A non-empty ids narrows the result to those roots.
	RootSystems(ctx context.Context, clientID string, ids []string) ([]report.SystemInfo, error)
	// MonitoringPoints returns the points of the given systems in a stable order.
	MonitoringPoints(ctx context.Context, systemIDs []string) ([]report.MonitoringPoint, error)
}

type MeasurementStore interface {
	MeasurementLogs(ctx context.Context, q report.LogQuery) ([]report.MeasurementLog, error)
}

type InspectionStore interface {
	Inspections(ctx context.Context, q report.EventQuery) ([]report.Inspection, error)
}

type IncidentStore interface {
	Incidents(ctx context.Context, q report.EventQuery) ([]report.Incident, error)
}

type Config struct {
	Systems      SystemStore
	Measurements MeasurementStore
	Inspections  InspectionStore
	Incidents    IncidentStore
	Company      report.CompanyInfo
	PointLimit   int
	Locale       aggregate.Locale
	Logger       zerolog.Logger
	Now          func() time.Time
}

type Assembler struct {
	systems      SystemStore
	measurements MeasurementStore
	inspections  InspectionStore
	incidents    IncidentStore
	company      report.CompanyInfo
	pointLimit   int
	locale       aggregate.Locale
	logger       zerolog.Logger
	now          func() time.Time
}

func New(cfg Config) *Assembler {
	if cfg.PointLimit <= 0 {
		cfg.PointLimit = DefaultPointLimit
	}
	if !aggregate.ValidLocale(cfg.Locale) {
		cfg.Locale = aggregate.DefaultLocale
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Assembler{
		systems:      cfg.Systems,
		measurements: cfg.Measurements,
		inspections:  cfg.Inspections,
		incidents:    cfg.Incidents,
		company:      cfg.Company,
		pointLimit:   cfg.PointLimit,
		locale:       cfg.Locale,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// Result is the assembled snapshot. Charts is nil unless an enabled block
// asked for charts.
type Result struct {
	Data        *report.ReportData
	Charts      *report.ChartData
	Granularity report.Granularity
	PointIDs    []string
}

// Assemble validates req and fetches the report sources concurrently. A
// client without systems yields empty data, store failures abort.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := a.systems.Client(ctx, req.ClientID)
	switch {
	case errors.Is(err, report.ErrNotFound):
		client = report.ClientInfo{ID: req.ClientID}
	case err != nil:
		return nil, fmt.Errorf("load client %s: %w", req.ClientID, err)
	}

	data := report.NewReportData(client, req.Period)
	data.Company = a.company
	data.Conclusion = req.Conclusion
	data.Signature = req.Signature
	data.GeneratedAt = a.now()

	res := &Result{Data: data, Granularity: req.Granularity}
	if res.Granularity == "" {
		res.Granularity = GranularityFor(req.Period)
	}
	if req.Config.ChartsRequested() {
		res.Charts = &report.ChartData{FieldCharts: []report.ChartSeries{}, LaboratoryCharts: []report.ChartSeries{}}
	}

	roots, err := a.systems.RootSystems(ctx, req.ClientID, req.SystemIDs)
	if err != nil {
		return nil, fmt.Errorf("load systems: %w", err)
	}
	if roots != nil {
		data.Systems = roots
	}
	systemIDs := EffectiveSystemIDs(roots)
	if len(systemIDs) == 0 {
		a.logger.Debug().Str("client_id", req.ClientID).Msg("no systems for client, assembling empty report")
		return res, nil
	}

	var points []report.MonitoringPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logs, err := a.measurements.MeasurementLogs(gctx, report.LogQuery{
			ClientID:  req.ClientID,
			SystemIDs: systemIDs,
			Dates:     report.MeasurementDateRange(req.Period),
		})
		if err != nil {
			return fmt.Errorf("load measurement logs: %w", err)
		}
		sortLogs(logs)
		if logs != nil {
			data.MeasurementLogs = logs
		}
		return nil
	})
	g.Go(func() error {
		inspections, err := a.inspections.Inspections(gctx, report.EventQuery{
			ClientID:  req.ClientID,
			SystemIDs: systemIDs,
			Window:    report.DayBoundedRange(req.Period),
		})
		if err != nil {
			return fmt.Errorf("load inspections: %w", err)
		}
		sort.SliceStable(inspections, func(i, j int) bool {
			return inspections[i].InspectedAt.Before(inspections[j].InspectedAt)
		})
		if inspections != nil {
			data.Inspections = inspections
		}
		return nil
	})
	g.Go(func() error {
		incidents, err := a.incidents.Incidents(gctx, report.EventQuery{
			ClientID:  req.ClientID,
			SystemIDs: systemIDs,
			Window:    report.DayBoundedRange(req.Period),
		})
		if err != nil {
			return fmt.Errorf("load incidents: %w", err)
		}
		sort.SliceStable(incidents, func(i, j int) bool {
			return incidents[i].CreatedAt.Before(incidents[j].CreatedAt)
		})
		if incidents != nil {
			data.Incidents = incidents
		}
		return nil
	})
	if res.Charts != nil {
		g.Go(func() error {
			var err error
			points, err = a.systems.MonitoringPoints(gctx, systemIDs)
			if err != nil {
				return fmt.Errorf("load monitoring points: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.Summary = Summarize(data)

	if res.Charts != nil {
		selected := SelectPoints(points, req.MonitoringPointIDs, a.pointLimit)
		res.PointIDs = make([]string, 0, len(selected))
		for _, p := range selected {
			res.PointIDs = append(res.PointIDs, p.ID)
		}
		b := seriesBuilder{
			period:      req.Period,
			granularity: res.Granularity,
			locale:      a.locale,
			color:       chartColor(req.Config),
			systemNames: systemNames(roots),
		}
		res.Charts.FieldCharts = b.build(selected, data.LogsOfType(report.RecordField))
		res.Charts.LaboratoryCharts = b.build(selected, data.LogsOfType(report.RecordLaboratory))
	}

	a.logger.Debug().
		Str("client_id", req.ClientID).
		Int("systems", data.Summary.TotalSystems).
		Int("measurements", data.Summary.TotalMeasurements).
		Int("inspections", data.Summary.Inspections).
		Int("incidents", data.Summary.Incidents).
		Msg("report data assembled")
	return res, nil
}

// EffectiveSystemIDs returns the root IDs followed by their stage IDs.
func EffectiveSystemIDs(roots []report.SystemInfo) []string {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, r := range roots {
		add(r.ID)
	}
	for _, r := range roots {
		for _, s := range r.Stages {
			add(s.ID)
		}
	}
	return ids
}

// Summarize computes the counters of data.
func Summarize(data *report.ReportData) report.Summary {
	s := report.Summary{
		TotalSystems: data.SystemCount(),
		Inspections:  len(data.Inspections),
		Incidents:    len(data.Incidents),
	}
	for _, l := range data.MeasurementLogs {
		s.TotalMeasurements += len(l.Entries)
		for _, e := range l.Entries {
			if e.IsOutOfRange {
				s.OutOfRange++
			}
		}
	}
	for _, i := range data.Incidents {
		if i.IsOpen() {
			s.OpenIncidents++
		}
	}
	return s
}

func sortLogs(logs []report.MeasurementLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].Date.Equal(logs[j].Date) {
			return logs[i].Date.Before(logs[j].Date)
		}
		return logs[i].SystemName < logs[j].SystemName
	})
}

func systemNames(roots []report.SystemInfo) map[string]string {
	names := make(map[string]string)
	for _, r := range roots {
		names[r.ID] = r.Name
		for _, s := range r.Stages {
			names[s.ID] = s.Name
		}
	}
	return names
}
