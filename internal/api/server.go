package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"facility-reports/internal/assembler"
	"facility-reports/internal/compiler"
	"facility-reports/internal/report"
	"facility-reports/internal/storage"
)

type ReportCompiler interface {
	Compile(ctx context.Context, req compiler.Request) (*compiler.Compilation, error)
	InFlight() int
	LastCompiledAt() time.Time
}

type ChartAssembler interface {
	Assemble(ctx context.Context, req assembler.Request) (*assembler.Result, error)
}

type Store interface {
	compiler.TemplateStore
	Templates(ctx context.Context, clientID string) ([]storage.ReportTemplate, error)
	SaveTemplate(ctx context.Context, t *storage.ReportTemplate) error
	History(ctx context.Context, clientID string, limit int) ([]storage.ReportHistory, error)
}

type Server struct {
	router    *gin.Engine
	server    *http.Server
	compiler  ReportCompiler
	assembler ChartAssembler
	store     Store
	connected func() bool
	port      int
	logger    zerolog.Logger
}

type ServerConfig struct {
	Port      int
	Compiler  ReportCompiler
	Assembler ChartAssembler
	Store     Store
	// MQTTConnected reports the broker state on /health. Optional.
	MQTTConnected func() bool
	Logger        zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:    router,
		compiler:  cfg.Compiler,
		assembler: cfg.Assembler,
		store:     cfg.Store,
		connected: cfg.MQTTConnected,
		port:      cfg.Port,
		logger:    cfg.Logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthHandler)

	// API routes
	api := s.router.Group("/api/v1")
	{
		api.POST("/reports", s.compileHandler)
		api.GET("/reports/history", s.historyHandler)
		api.POST("/charts", s.chartsHandler)

		api.GET("/templates", s.templatesHandler)
		api.GET("/templates/default", s.defaultTemplateHandler)
		api.POST("/templates", s.saveTemplateHandler)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Int("port", s.port).Msg("API server starting")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	mqttConnected := false
	if s.connected != nil {
		mqttConnected = s.connected()
	}

	var lastCompiled *time.Time
	if t := s.compiler.LastCompiledAt(); !t.IsZero() {
		lastCompiled = &t
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"compiling":        s.compiler.InFlight(),
		"last_compiled_at": lastCompiled,
		"mqtt_connected":   mqttConnected,
		"timestamp":        time.Now(),
	})
}

// PeriodRequest carries dates as YYYY-MM-DD or RFC 3339.
type PeriodRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

type ChartsRequest struct {
	ClientID           string        `json:"client_id"`
	Period             PeriodRequest `json:"period"`
	SystemIDs          []string      `json:"system_ids"`
	MonitoringPointIDs []string      `json:"monitoring_point_ids"`
	Granularity        string        `json:"granularity"`
}

// CompileRequest selects the template either inline (Config) or by
// TemplateID. With neither, the default template is used.
type CompileRequest struct {
	ChartsRequest
	Name       string            `json:"name"`
	TemplateID string            `json:"template_id"`
	Config     json.RawMessage   `json:"config"`
	Conclusion string            `json:"conclusion"`
	Signature  *report.Signature `json:"signature"`
}

func (r ChartsRequest) assemblerRequest() (assembler.Request, error) {
	start, err := parseDate(r.Period.Start)
	if err != nil {
		return assembler.Request{}, &assembler.ValidationError{Field: "period.start", Reason: err.Error()}
	}
	end, err := parseDate(r.Period.End)
	if err != nil {
		return assembler.Request{}, &assembler.ValidationError{Field: "period.end", Reason: err.Error()}
	}
	return assembler.Request{
		ClientID:           r.ClientID,
		Period:             report.Period{Start: start, End: end, Type: report.PeriodType(r.Period.Type)},
		SystemIDs:          r.SystemIDs,
		MonitoringPointIDs: r.MonitoringPointIDs,
		Granularity:        report.Granularity(r.Granularity),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func (s *Server) compileHandler(c *gin.Context) {
	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	areq, err := req.assemblerRequest()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	var warnings []report.Warning
	switch {
	case len(req.Config) > 0 && string(req.Config) != "null":
		areq.Config, warnings, err = report.ParseConfig(req.Config)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case req.TemplateID != "":
		areq.Config, warnings, err = compiler.LoadTemplate(ctx, s.store, req.TemplateID)
		if err != nil {
			s.writeError(c, err)
			return
		}
	default:
		areq.Config = report.DefaultConfig()
	}

	comp, err := s.compiler.Compile(ctx, compiler.Request{
		Request:        withConclusion(areq, req.Conclusion, req.Signature),
		Name:           req.Name,
		TemplateID:     req.TemplateID,
		ConfigWarnings: warnings,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comp)
}

func withConclusion(r assembler.Request, conclusion string, sig *report.Signature) assembler.Request {
	r.Conclusion = strings.TrimSpace(conclusion)
	r.Signature = sig
	return r
}

func (s *Server) chartsHandler(c *gin.Context) {
	var req ChartsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	areq, err := req.assemblerRequest()
	if err != nil {
		s.writeError(c, err)
		return
	}
	areq.Config = report.ReportConfig{Blocks: []report.Block{
		report.AnalysesBlock{
			BlockHeader:   report.BlockHeader{Type: report.BlockAnalyses, Enabled: true, Order: 1},
			IncludeCharts: true,
		},
	}}

	res, err := s.assembler.Assemble(c.Request.Context(), areq)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"granularity":          res.Granularity,
		"monitoring_point_ids": res.PointIDs,
		"field_charts":         res.Charts.FieldCharts,
		"laboratory_charts":    res.Charts.LaboratoryCharts,
	})
}

func (s *Server) historyHandler(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	list, err := s.store.History(c.Request.Context(), clientID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) templatesHandler(c *gin.Context) {
	list, err := s.store.Templates(c.Request.Context(), c.Query("client_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) defaultTemplateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, report.DefaultConfig())
}

type TemplateRequest struct {
	ID       string `json:"id" binding:"required"`
	ClientID string `json:"client_id"`
	Name     string `json:"name" binding:"required"`
	Format   string `json:"format"`
	Body     string `json:"body" binding:"required"`
}

// saveTemplateHandler stores a template after checking that it decodes. The
// defects found are returned so the author can fix them.
func (s *Server) saveTemplateHandler(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	_, warnings, err := compiler.ParseTemplate(req.Format, []byte(req.Body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t := &storage.ReportTemplate{ID: req.ID, ClientID: req.ClientID, Name: req.Name, Format: req.Format, Body: req.Body}
	if err := s.store.SaveTemplate(c.Request.Context(), t); err != nil {
		s.writeError(c, err)
		return
	}
	if warnings == nil {
		warnings = []report.Warning{}
	}
	c.JSON(http.StatusOK, gin.H{"template": t, "warnings": warnings})
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assembler.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, report.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
