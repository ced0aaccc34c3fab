package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"facility-reports/internal/assembler"
	"facility-reports/internal/report"
)

type Database struct {
	db *gorm.DB
}

var (
	_ assembler.SystemStore      = (*Database)(nil)
	_ assembler.MeasurementStore = (*Database)(nil)
	_ assembler.InspectionStore  = (*Database)(nil)
	_ assembler.IncidentStore    = (*Database)(nil)
)

// NewDatabase opens (creating if needed) the sqlite database at path and
// migrates the schema. ":memory:" opens a private in-memory database.
func NewDatabase(path string) (*Database, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Client(ctx context.Context, clientID string) (report.ClientInfo, error) {
	var c Client
	if err := d.db.WithContext(ctx).First(&c, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report.ClientInfo{}, report.ErrNotFound
		}
		return report.ClientInfo{}, err
	}
	return clientInfo(c), nil
}

func (d *Database) RootSystems(ctx context.Context, clientID string, ids []string) ([]report.SystemInfo, error) {
	q := d.db.WithContext(ctx).
		Preload("Photos", orderByPosition).
		Where("client_id = ? AND parent_id IS NULL", clientID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}

	var roots []System
	if err := q.Order("name, id").Find(&roots).Error; err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return []report.SystemInfo{}, nil
	}

	rootIDs := make([]string, 0, len(roots))
	for _, r := range roots {
		rootIDs = append(rootIDs, r.ID)
	}
	var stages []System
	if err := d.db.WithContext(ctx).
		Preload("Photos", orderByPosition).
		Where("parent_id IN ?", rootIDs).
		Order("name, id").
		Find(&stages).Error; err != nil {
		return nil, err
	}

	byParent := make(map[string][]report.SystemInfo)
	for _, s := range stages {
		byParent[*s.ParentID] = append(byParent[*s.ParentID], systemInfo(s))
	}
	out := make([]report.SystemInfo, 0, len(roots))
	for _, r := range roots {
		info := systemInfo(r)
		info.Stages = byParent[r.ID]
		out = append(out, info)
	}
	return out, nil
}

func (d *Database) MonitoringPoints(ctx context.Context, systemIDs []string) ([]report.MonitoringPoint, error) {
	if len(systemIDs) == 0 {
		return []report.MonitoringPoint{}, nil
	}
	var points []MonitoringPoint
	if err := d.db.WithContext(ctx).
		Where("system_id IN ?", systemIDs).
		Order("system_id, position, id").
		Find(&points).Error; err != nil {
		return nil, err
	}

	// Keep the caller's system order, then store order within a system.
	rank := make(map[string]int, len(systemIDs))
	for i, id := range systemIDs {
		rank[id] = i
	}
	grouped := make([][]report.MonitoringPoint, len(systemIDs))
	for _, p := range points {
		grouped[rank[p.SystemID]] = append(grouped[rank[p.SystemID]], monitoringPoint(p))
	}
	out := make([]report.MonitoringPoint, 0, len(points))
	for _, g := range grouped {
		out = append(out, g...)
	}
	return out, nil
}

// MeasurementLogs matches logs by bare calendar date.
func (d *Database) MeasurementLogs(ctx context.Context, q report.LogQuery) ([]report.MeasurementLog, error) {
	if len(q.SystemIDs) == 0 {
		return []report.MeasurementLog{}, nil
	}
	tx := d.db.WithContext(ctx).
		Preload("System").
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Entries.MonitoringPoint").
		Where("client_id = ? AND system_id IN ?", q.ClientID, q.SystemIDs).
		Where("date BETWEEN ? AND ?", report.Date(q.Dates.From), report.Date(q.Dates.To))
	if q.RecordType != "" {
		tx = tx.Where("record_type = ?", string(q.RecordType))
	}

	var logs []MeasurementLog
	if err := tx.Order("date, id").Find(&logs).Error; err != nil {
		return nil, err
	}
	out := make([]report.MeasurementLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, measurementLog(l))
	}
	return out, nil
}

// Inspections matches inspections by timestamp within the window.
func (d *Database) Inspections(ctx context.Context, q report.EventQuery) ([]report.Inspection, error) {
	if len(q.SystemIDs) == 0 {
		return []report.Inspection{}, nil
	}
	var rows []Inspection
	if err := d.db.WithContext(ctx).
		Preload("System").
		Preload("Photos", orderByPosition).
		Preload("Items", orderByPosition).
		Preload("Items.Photos", orderByPosition).
		Where("client_id = ? AND system_id IN ?", q.ClientID, q.SystemIDs).
		Where("inspected_at BETWEEN ? AND ?", q.Window.From.UTC(), q.Window.To.UTC()).
		Order("inspected_at, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]report.Inspection, 0, len(rows))
	for _, r := range rows {
		out = append(out, inspection(r))
	}
	return out, nil
}

// Incidents matches incidents opened within the window.
func (d *Database) Incidents(ctx context.Context, q report.EventQuery) ([]report.Incident, error) {
	if len(q.SystemIDs) == 0 {
		return []report.Incident{}, nil
	}
	var rows []Incident
	if err := d.db.WithContext(ctx).
		Preload("System").
		Preload("Photos", orderByPosition).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("client_id = ? AND system_id IN ?", q.ClientID, q.SystemIDs).
		Where("created_at BETWEEN ? AND ?", q.Window.From.UTC(), q.Window.To.UTC()).
		Order("created_at, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]report.Incident, 0, len(rows))
	for _, r := range rows {
		out = append(out, incident(r))
	}
	return out, nil
}

// Create inserts any model of this package together with its associations.
func (d *Database) Create(ctx context.Context, value any) error {
	return d.db.WithContext(ctx).Create(value).Error
}

func (d *Database) SaveTemplate(ctx context.Context, t *ReportTemplate) error {
	return d.db.WithContext(ctx).Save(t).Error
}

func (d *Database) Template(ctx context.Context, id string) (*ReportTemplate, error) {
	var t ReportTemplate
	if err := d.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, report.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Templates lists the client's templates plus the shared ones.
func (d *Database) Templates(ctx context.Context, clientID string) ([]ReportTemplate, error) {
	var list []ReportTemplate
	err := d.db.WithContext(ctx).
		Where("client_id = ? OR client_id = ''", clientID).
		Order("name, id").
		Find(&list).Error
	return list, err
}

func (d *Database) SaveHistory(ctx context.Context, h *ReportHistory) error {
	return d.db.WithContext(ctx).Create(h).Error
}

// History returns the client's most recent reports first.
func (d *Database) History(ctx context.Context, clientID string, limit int) ([]ReportHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []ReportHistory
	err := d.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("generated_at desc, id").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position, id")
}
