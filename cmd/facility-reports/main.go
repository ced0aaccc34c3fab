package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"facility-reports/config"
	"facility-reports/internal/aggregate"
	"facility-reports/internal/api"
	"facility-reports/internal/assembler"
	"facility-reports/internal/assets"
	"facility-reports/internal/chart"
	"facility-reports/internal/compiler"
	"facility-reports/internal/composer"
	"facility-reports/internal/logging"
	"facility-reports/internal/mqtt"
	"facility-reports/internal/render"
	"facility-reports/internal/report"
	"facility-reports/internal/storage"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "facility-reports",
		Short:         "Technical report compiler for monitored facilities",
		Long:          "Compiles measurement, inspection and incident records into configurable technical reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(templateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, logging.New(cfg.Log, os.Stderr), nil
}

// pipeline holds the components shared by serve and compile.
type pipeline struct {
	db        *storage.Database
	assembler *assembler.Assembler
	compiler  *compiler.Compiler
	publisher *mqtt.Publisher
}

func newPipeline(cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.Database.Path).Msg("database opened")

	asm := assembler.New(assembler.Config{
		Systems:      db,
		Measurements: db,
		Inspections:  db,
		Incidents:    db,
		Company:      cfg.Company.Company(),
		PointLimit:   cfg.Report.DefaultPointLimit,
		Locale:       aggregate.Locale(cfg.Report.Locale),
		Logger:       logger.With().Str("component", "assembler").Logger(),
	})

	renderer := chart.NewRenderer(chart.RendererConfig{
		Options: chart.Options{
			Width:  cfg.Charts.Width,
			Height: cfg.Charts.Height,
			Kind:   report.ChartKind(cfg.Charts.Kind),
		},
		MaxConcurrency: cfg.Charts.MaxConcurrency,
		Timeout:        cfg.Charts.Timeout,
		Logger:         logger.With().Str("component", "chart").Logger(),
	})

	fetcher := assets.NewClient(assets.ClientConfig{
		Timeout:        cfg.Assets.Timeout,
		Retries:        cfg.Assets.Retries,
		RetryWait:      cfg.Assets.RetryWait,
		MaxConcurrency: cfg.Assets.MaxConcurrency,
		MaxBytes:       cfg.Assets.MaxBytes,
		Logger:         logger.With().Str("component", "assets").Logger(),
	})

	publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Enabled:     cfg.MQTT.Enabled,
		Logger:      logger.With().Str("component", "mqtt").Logger(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("MQTT connection failed, report events disabled")
		publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false})
	}

	comp := compiler.NewCompiler(compiler.CompilerConfig{
		Assembler: asm,
		Renderer:  renderer,
		Fetcher:   fetcher,
		Composer:  composer.New(composer.Config{Logger: logger.With().Str("component", "composer").Logger()}),
		History:   db,
		Publisher: publisher,
		Logger:    logger.With().Str("component", "compiler").Logger(),
	})

	return &pipeline{db: db, assembler: asm, compiler: comp, publisher: publisher}, nil
}

func (p *pipeline) Close() {
	p.publisher.Close()
	_ = p.db.Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the report API",
		Long:  "Start the HTTP API that compiles reports on demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.API.Enabled {
				return errors.New("api is disabled in the configuration")
			}

			p, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			server := api.NewServer(api.ServerConfig{
				Port:          cfg.API.Port,
				Compiler:      p.compiler,
				Assembler:     p.assembler,
				Store:         p.db,
				MQTTConnected: p.publisher.IsConnected,
				Logger:        logger.With().Str("component", "api").Logger(),
			})

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errChan <- err
				}
			}()

			logger.Info().Msg("Facility reports started. Press Ctrl+C to stop.")

			select {
			case <-sigChan:
			case err := <-errChan:
				return fmt.Errorf("API server error: %w", err)
			}

			logger.Info().Msg("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return server.Stop(ctx)
		},
	}
}

type compileOptions struct {
	clientID     string
	from, to     string
	periodType   string
	systems      []string
	points       []string
	granularity  string
	templateFile string
	templateID   string
	name         string
	conclusion   string
	format       string
	chartsDir    string
	out          string
}

func compileCmd() *cobra.Command {
	var o compileOptions
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile one report",
		Long:  "Compile a report for a client and period and write it as text or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if o.format != "text" && o.format != "json" {
				return fmt.Errorf("unknown format %q, use text or json", o.format)
			}

			p, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			req, err := o.request(cmd.Context(), p.db, cfg.Report.TemplatePath)
			if err != nil {
				return err
			}

			comp, err := p.compiler.Compile(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to compile report: %w", err)
			}

			w := cmd.OutOrStdout()
			if o.out != "" {
				f, err := os.Create(o.out)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeCompilation(w, comp, o.format); err != nil {
				return err
			}

			if o.chartsDir != "" {
				for prefix, images := range map[string][]report.ChartImage{"field": comp.Images.Field, "laboratory": comp.Images.Laboratory} {
					paths, err := render.WriteCharts(o.chartsDir, prefix, images)
					if err != nil {
						return err
					}
					for _, path := range paths {
						logger.Info().Str("path", path).Msg("chart written")
					}
				}
			}

			for _, warning := range comp.Warnings {
				logger.Warn().Str("kind", string(warning.Kind)).Str("subject", warning.Subject).Msg(warning.Message)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.clientID, "client", "", "client ID")
	flags.StringVar(&o.from, "from", "", "first day of the period (YYYY-MM-DD)")
	flags.StringVar(&o.to, "to", "", "last day of the period (YYYY-MM-DD)")
	flags.StringVar(&o.periodType, "type", "", "period type: daily, weekly, monthly or custom")
	flags.StringSliceVar(&o.systems, "systems", nil, "root system IDs to include")
	flags.StringSliceVar(&o.points, "points", nil, "monitoring point IDs to chart")
	flags.StringVar(&o.granularity, "granularity", "", "chart granularity: daily, weekly or monthly")
	flags.StringVar(&o.templateFile, "template", "", "template file (.json, .yaml)")
	flags.StringVar(&o.templateID, "template-id", "", "stored template ID")
	flags.StringVar(&o.name, "name", "", "report name")
	flags.StringVar(&o.conclusion, "conclusion", "", "conclusion text")
	flags.StringVar(&o.format, "format", "text", "output format: text or json")
	flags.StringVar(&o.chartsDir, "charts-dir", "", "directory to write chart PNGs to")
	flags.StringVarP(&o.out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (o compileOptions) request(ctx context.Context, store compiler.TemplateStore, defaultTemplate string) (compiler.Request, error) {
	from, err := time.Parse("2006-01-02", o.from)
	if err != nil {
		return compiler.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.Parse("2006-01-02", o.to)
	if err != nil {
		return compiler.Request{}, fmt.Errorf("invalid --to: %w", err)
	}

	var cfg report.ReportConfig
	var warnings []report.Warning
	templateFile := o.templateFile
	if templateFile == "" && o.templateID == "" {
		templateFile = defaultTemplate
	}
	switch {
	case o.templateID != "":
		cfg, warnings, err = compiler.LoadTemplate(ctx, store, o.templateID)
	case templateFile != "":
		cfg, warnings, err = compiler.ReadTemplateFile(templateFile)
	default:
		cfg = report.DefaultConfig()
	}
	if err != nil {
		return compiler.Request{}, err
	}

	return compiler.Request{
		Request: assembler.Request{
			ClientID:           o.clientID,
			Period:             report.Period{Start: from, End: to, Type: report.PeriodType(o.periodType)},
			SystemIDs:          o.systems,
			MonitoringPointIDs: o.points,
			Granularity:        report.Granularity(o.granularity),
			Config:             cfg,
			Conclusion:         strings.TrimSpace(o.conclusion),
		},
		Name:           o.name,
		TemplateID:     o.templateID,
		ConfigWarnings: warnings,
	}, nil
}

func writeCompilation(w io.Writer, comp *compiler.Compilation, format string) error {
	if format == "json" {
		return render.JSON(w, comp)
	}
	if _, err := fmt.Fprintf(w, "%s (%s)\n\n", comp.Name, comp.ID); err != nil {
		return err
	}
	return render.Text(w, comp.Document)
}

func seedCmd() *cobra.Command {
	var opts storage.SeedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data",
		Long:  "Create a demo client with systems, readings, inspections, incidents and the default template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Seed(cmd.Context(), db, opts); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
			logger.Info().Str("client_id", opts.ClientID).Int("days", opts.Days).Str("path", cfg.Database.Path).Msg("demo data loaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ClientID, "client", "demo", "client ID to create")
	cmd.Flags().IntVar(&opts.Days, "days", 60, "days of readings to generate")
	return cmd
}

func templateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print the default report template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTemplate(cmd.OutOrStdout(), report.DefaultConfig(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}

func writeTemplate(w io.Writer, cfg report.ReportConfig, format string) error {
	switch format {
	case "json":
		return render.JSON(w, cfg)
	case "yaml", "yml":
		js, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(js, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q, use json or yaml", format)
	}
}
