package storage

import (
	"encoding/json"
	"time"
)

type Client struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Document  string
	Address   string
	City      string
	State     string
	Contact   string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Photo belongs to a system, inspection, checklist item or incident.
type Photo struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   string `gorm:"index:idx_photo_owner"`
	OwnerType string `gorm:"index:idx_photo_owner"`
	Position  int
	URL       string
	Caption   string
}

// System is a monitored unit. Systems with a ParentID are stages.
type System struct {
	ID          string  `gorm:"primaryKey"`
	ClientID    string  `gorm:"index"`
	ParentID    *string `gorm:"index"`
	Name        string
	Type        string
	Status      string
	Description string
	Photos      []Photo `gorm:"polymorphic:Owner"`
	CreatedAt   time.Time
}

type MonitoringPoint struct {
	ID            string `gorm:"primaryKey"`
	SystemID      string `gorm:"index"`
	Position      int
	Name          string
	ParameterName string
	Unit          string
	MinValue      *float64
	MaxValue      *float64
}

// MeasurementLog groups entries collected on one calendar date, stored as
// UTC midnight.
type MeasurementLog struct {
	ID          string    `gorm:"primaryKey"`
	ClientID    string    `gorm:"index:idx_log_scope"`
	SystemID    string    `gorm:"index:idx_log_scope"`
	System      System    `gorm:"foreignKey:SystemID"`
	Date        time.Time `gorm:"index:idx_log_scope"`
	RecordType  string
	CollectedBy string
	Notes       string
	Entries     []MeasurementEntry `gorm:"foreignKey:LogID"`
}

type MeasurementEntry struct {
	ID                uint            `gorm:"primaryKey"`
	LogID             string          `gorm:"index"`
	MonitoringPointID string          `gorm:"index"`
	MonitoringPoint   MonitoringPoint `gorm:"foreignKey:MonitoringPointID"`
	Value             *float64
	IsOutOfRange      bool
}

type Inspection struct {
	ID          string    `gorm:"primaryKey"`
	ClientID    string    `gorm:"index:idx_inspection_scope"`
	SystemID    string    `gorm:"index:idx_inspection_scope"`
	System      System    `gorm:"foreignKey:SystemID"`
	InspectedAt time.Time `gorm:"index:idx_inspection_scope"`
	Inspector   string
	Status      string
	Notes       string
	Items       []ChecklistItem `gorm:"foreignKey:InspectionID"`
	Photos      []Photo         `gorm:"polymorphic:Owner"`
}

type ChecklistItem struct {
	ID           string `gorm:"primaryKey"`
	InspectionID string `gorm:"index"`
	Position     int
	Description  string
	Compliant    bool
	Notes        string
	Photos       []Photo `gorm:"polymorphic:Owner"`
}

type Incident struct {
	ID          string `gorm:"primaryKey"`
	ClientID    string `gorm:"index:idx_incident_scope"`
	SystemID    string `gorm:"index:idx_incident_scope"`
	System      System `gorm:"foreignKey:SystemID"`
	Title       string
	Description string
	Priority    string
	Status      string
	CreatedAt   time.Time `gorm:"index:idx_incident_scope"`
	ResolvedAt  *time.Time
	Comments    []IncidentComment `gorm:"foreignKey:IncidentID"`
	Photos      []Photo           `gorm:"polymorphic:Owner"`
}

type IncidentComment struct {
	ID         uint   `gorm:"primaryKey"`
	IncidentID string `gorm:"index"`
	Author     string
	Text       string
	CreatedAt  time.Time
}

// ReportTemplate stores a report configuration as JSON or YAML. An empty
// ClientID makes the template available to every client.
type ReportTemplate struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ClientID  string    `gorm:"index" json:"client_id,omitempty"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportHistory records one compiled report.
type ReportHistory struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	ClientID          string          `gorm:"index" json:"client_id"`
	Name              string          `json:"name"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	PeriodType        string          `json:"period_type,omitempty"`
	Filters           json.RawMessage `json:"filters"`
	TemplateID        string          `json:"template_id,omitempty"`
	Sections          int             `json:"sections"`
	TotalMeasurements int             `json:"total_measurements"`
	OutOfRange        int             `json:"out_of_range"`
	Inspections       int             `json:"inspections"`
	Incidents         int             `json:"incidents"`
	Warnings          int             `json:"warnings"`
	GeneratedAt       time.Time       `gorm:"index" json:"generated_at"`
}

func allModels() []any {
	return []any{
		&Client{}, &Photo{}, &System{}, &MonitoringPoint{},
		&MeasurementLog{}, &MeasurementEntry{},
		&Inspection{}, &ChecklistItem{},
		&Incident{}, &IncidentComment{},
		&ReportTemplate{}, &ReportHistory{},
	}
}
