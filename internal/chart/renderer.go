package chart

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"facility-reports/internal/report"
)

type Renderer struct {
	opts           Options
	maxConcurrency int
	timeout        time.Duration
	logger         zerolog.Logger
}

type RendererConfig struct {
	Options        Options
	MaxConcurrency int
	Timeout        time.Duration
	Logger         zerolog.Logger
}

func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Renderer{
		opts:           cfg.Options.withDefaults(),
		maxConcurrency: cfg.MaxConcurrency,
		timeout:        cfg.Timeout,
		logger:         cfg.Logger,
	}
}

// Kind returns the chart kind used when a caller does not pick one.
func (r *Renderer) Kind() report.ChartKind {
	return r.opts.Kind
}

type rendered struct {
	index int
	image report.ChartImage
	err   error
}

// RenderAll renders every series concurrently. A series that fails or times
// out is left out of the result and reported as a warning; the remaining
// images keep the input order.
func (r *Renderer) RenderAll(ctx context.Context, series []report.ChartSeries, kind report.ChartKind) ([]report.ChartImage, []report.Warning) {
	p := pool.NewWithResults[rendered]().WithMaxGoroutines(r.maxConcurrency)
	for i, s := range series {
		p.Go(func() rendered {
			data, err := r.renderWithTimeout(ctx, s, kind)
			return rendered{
				index: i,
				image: report.ChartImage{MonitoringPointID: s.MonitoringPointID, Title: Title(s), Data: data},
				err:   err,
			}
		})
	}
	results := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })

	images := make([]report.ChartImage, 0, len(results))
	var warnings []report.Warning
	for _, res := range results {
		if res.err != nil {
			r.logger.Warn().Err(res.err).Str("monitoring_point", res.image.MonitoringPointID).Msg("chart omitted")
			warnings = append(warnings, report.Warning{
				Kind:    report.ChartRenderFailure,
				Subject: res.image.MonitoringPointID,
				Message: res.err.Error(),
			})
			continue
		}
		images = append(images, res.image)
	}
	return images, warnings
}

func (r *Renderer) renderWithTimeout(ctx context.Context, s report.ChartSeries, kind report.ChartKind) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := Render(s, kind, r.opts)
		done <- outcome{data, err}
	}()

	select {
	case o := <-done:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
