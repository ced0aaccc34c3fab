// Package compiler runs the whole report pipeline: assemble the data, render
// charts and fetch photos, compose the document, then record and announce it.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"facility-reports/internal/assembler"
	"facility-reports/internal/assets"
	"facility-reports/internal/composer"
	"facility-reports/internal/mqtt"
	"facility-reports/internal/report"
	"facility-reports/internal/storage"
)

type Assembler interface {
	Assemble(ctx context.Context, req assembler.Request) (*assembler.Result, error)
}

type ChartRenderer interface {
	Kind() report.ChartKind
	RenderAll(ctx context.Context, series []report.ChartSeries, kind report.ChartKind) ([]report.ChartImage, []report.Warning)
}

type AssetFetcher interface {
	FetchAll(ctx context.Context, urls []string) (map[string]assets.Asset, []report.Warning)
}

type HistoryStore interface {
	SaveHistory(ctx context.Context, h *storage.ReportHistory) error
}

type EventPublisher interface {
	PublishReportGenerated(ev mqtt.ReportEvent) error
}

type Compiler struct {
	assembler Assembler
	renderer  ChartRenderer
	fetcher   AssetFetcher
	composer  *composer.Composer
	history   HistoryStore
	publisher EventPublisher
	logger    zerolog.Logger
	newID     func() string

	mu         sync.RWMutex
	inFlight   int
	lastReport time.Time
}

// CompilerConfig wires the pipeline stages. Renderer, Fetcher, History and
// Publisher are optional; a nil stage is skipped.
type CompilerConfig struct {
	Assembler Assembler
	Renderer  ChartRenderer
	Fetcher   AssetFetcher
	Composer  *composer.Composer
	History   HistoryStore
	Publisher EventPublisher
	Logger    zerolog.Logger
	NewID     func() string
}

func NewCompiler(cfg CompilerConfig) *Compiler {
	if cfg.Composer == nil {
		cfg.Composer = composer.New(composer.Config{Logger: cfg.Logger})
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Compiler{
		assembler: cfg.Assembler,
		renderer:  cfg.Renderer,
		fetcher:   cfg.Fetcher,
		composer:  cfg.Composer,
		history:   cfg.History,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		newID:     cfg.NewID,
	}
}

// Request is an assembler request plus what the caller knows about its origin.
// ConfigWarnings carries the defects found while parsing the template.
type Request struct {
	assembler.Request
	Name           string
	TemplateID     string
	ConfigWarnings []report.Warning
}

// Images are the rendered charts, in series order.
type Images struct {
	Field      []report.ChartImage `json:"field"`
	Laboratory []report.ChartImage `json:"laboratory"`
}

// Compilation is the outcome of one Compile call. Warnings lists every
// failure that was absorbed on the way.
type Compilation struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Granularity report.Granularity `json:"granularity"`
	PointIDs    []string           `json:"monitoring_point_ids"`
	Data        *report.ReportData `json:"data"`
	Charts      *report.ChartData  `json:"charts,omitempty"`
	Images      Images             `json:"-"`
	Document    *report.Document   `json:"document"`
	Warnings    []report.Warning   `json:"warnings"`
}

// Compile produces one report. Only an invalid request or a store failure
// returns an error; everything after assembly degrades into warnings.
func (c *Compiler) Compile(ctx context.Context, req Request) (*Compilation, error) {
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	start := time.Now()
	res, err := c.assembler.Assemble(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	diag := &report.Diagnostics{}
	diag.Add(req.ConfigWarnings...)

	cfg := normalized(req.Config)
	comp := &Compilation{
		ID:          c.newID(),
		Name:        req.Name,
		Granularity: res.Granularity,
		PointIDs:    res.PointIDs,
		Data:        res.Data,
		Charts:      res.Charts,
	}
	if comp.Name == "" {
		comp.Name = DefaultName(res.Data)
	}

	var photos map[string]assets.Asset
	var logo *composer.Asset
	var wg conc.WaitGroup
	if res.Charts != nil && c.renderer != nil {
		kind := chartKind(cfg, c.renderer.Kind())
		wg.Go(func() {
			images, warnings := c.renderer.RenderAll(ctx, res.Charts.FieldCharts, kind)
			comp.Images.Field = images
			diag.Add(warnings...)
		})
		wg.Go(func() {
			images, warnings := c.renderer.RenderAll(ctx, res.Charts.LaboratoryCharts, kind)
			comp.Images.Laboratory = images
			diag.Add(warnings...)
		})
	}
	if c.fetcher != nil {
		urls := PhotoURLs(res.Data, cfg)
		logoURL := ""
		if cfg.Branding.ShowLogo && res.Data.Company.LogoURL != "" {
			logoURL = res.Data.Company.LogoURL
			urls = append(urls, logoURL)
		}
		if len(urls) > 0 {
			wg.Go(func() {
				found, warnings := c.fetcher.FetchAll(ctx, urls)
				diag.Add(warnings...)
				photos = found
				if a, ok := found[logoURL]; ok && logoURL != "" {
					logo = &composer.Asset{Data: a.Data, ContentType: a.ContentType}
				}
			})
		}
	}
	wg.Wait()

	doc, warnings := c.composer.Compose(res.Data, req.Config, composer.Assets{
		Photos:           composerAssets(photos),
		Logo:             logo,
		FieldCharts:      comp.Images.Field,
		LaboratoryCharts: comp.Images.Laboratory,
	})
	diag.Add(warnings...)
	comp.Document = doc

	c.record(ctx, comp, req, diag)
	c.announce(comp, req, diag)
	comp.Warnings = diag.Warnings()

	c.mu.Lock()
	c.lastReport = res.Data.GeneratedAt
	c.mu.Unlock()

	c.logger.Info().
		Str("report_id", comp.ID).
		Str("client_id", req.ClientID).
		Int("sections", len(doc.Sections)).
		Int("warnings", len(comp.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("report compiled")
	return comp, nil
}

// InFlight returns the number of compilations currently running.
func (c *Compiler) InFlight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight
}

// LastCompiledAt returns the generation time of the latest compiled report.
func (c *Compiler) LastCompiledAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReport
}

func (c *Compiler) record(ctx context.Context, comp *Compilation, req Request, diag *report.Diagnostics) {
	if c.history == nil {
		return
	}
	h, err := historyRecord(comp, req, len(diag.Warnings()))
	if err == nil {
		err = c.history.SaveHistory(ctx, h)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("report_id", comp.ID).Msg("report history not saved")
		diag.Add(report.Warning{Kind: report.HistoryFailure, Subject: comp.ID, Message: err.Error()})
	}
}

func (c *Compiler) announce(comp *Compilation, req Request, diag *report.Diagnostics) {
	if c.publisher == nil {
		return
	}
	ev := mqtt.ReportEvent{
		ID:          comp.ID,
		ClientID:    req.ClientID,
		Name:        comp.Name,
		Period:      req.Period,
		Granularity: comp.Granularity,
		SystemIDs:   systemIDs(comp.Data),
		PointIDs:    comp.PointIDs,
		TemplateID:  req.TemplateID,
		Summary:     comp.Data.Summary,
		Sections:    len(comp.Document.Sections),
		Warnings:    len(diag.Warnings()),
		GeneratedAt: comp.Data.GeneratedAt,
	}
	if err := c.publisher.PublishReportGenerated(ev); err != nil {
		c.logger.Warn().Err(err).Str("report_id", comp.ID).Msg("report event not published")
		diag.Add(report.Warning{Kind: report.PublishFailure, Subject: comp.ID, Message: err.Error()})
	}
}

type filters struct {
	SystemIDs   []string           `json:"system_ids"`
	PointIDs    []string           `json:"monitoring_point_ids"`
	Granularity report.Granularity `json:"granularity"`
}

func historyRecord(comp *Compilation, req Request, warnings int) (*storage.ReportHistory, error) {
	f, err := json.Marshal(filters{
		SystemIDs:   systemIDs(comp.Data),
		PointIDs:    comp.PointIDs,
		Granularity: comp.Granularity,
	})
	if err != nil {
		return nil, fmt.Errorf("encode report filters: %w", err)
	}
	s := comp.Data.Summary
	return &storage.ReportHistory{
		ID:                comp.ID,
		ClientID:          req.ClientID,
		Name:              comp.Name,
		PeriodStart:       report.Date(req.Period.Start),
		PeriodEnd:         report.Date(req.Period.End),
		PeriodType:        string(req.Period.Type),
		Filters:           f,
		TemplateID:        req.TemplateID,
		Sections:          len(comp.Document.Sections),
		TotalMeasurements: s.TotalMeasurements,
		OutOfRange:        s.OutOfRange,
		Inspections:       s.Inspections,
		Incidents:         s.Incidents,
		Warnings:          warnings,
		GeneratedAt:       comp.Data.GeneratedAt,
	}, nil
}

// DefaultName names a report after its client and period.
func DefaultName(data *report.ReportData) string {
	client := data.Client.Name
	if client == "" {
		client = data.Client.ID
	}
	return fmt.Sprintf("%s %s - %s", client,
		data.Period.Start.Format("02/01/2006"), data.Period.End.Format("02/01/2006"))
}

func systemIDs(data *report.ReportData) []string {
	ids := assembler.EffectiveSystemIDs(data.Systems)
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func normalized(cfg report.ReportConfig) report.ReportConfig {
	cfg.Blocks = append([]report.Block(nil), cfg.Blocks...)
	cfg.Normalize()
	return cfg
}

// chartKind returns the kind set on the first enabled analyses block that
// includes charts.
func chartKind(cfg report.ReportConfig, fallback report.ChartKind) report.ChartKind {
	for _, b := range cfg.EnabledBlocks() {
		if a, ok := b.(report.AnalysesBlock); ok && a.IncludeCharts {
			return a.ChartKind
		}
	}
	return fallback
}

func composerAssets(found map[string]assets.Asset) map[string]composer.Asset {
	out := make(map[string]composer.Asset, len(found))
	for u, a := range found {
		out[u] = composer.Asset{Data: a.Data, ContentType: a.ContentType}
	}
	return out
}
