// Package report holds the data model shared by the report compilation pipeline.
package report

import "time"

type RecordType string

const (
	RecordField      RecordType = "field"
	RecordLaboratory RecordType = "laboratory"
)

// PeriodType is the nominal period a report covers.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodCustom  PeriodType = "custom"
)

// Period is an inclusive calendar window. Start and End are calendar dates;
// any time-of-day component is ignored.
type Period struct {
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
	Type  PeriodType `json:"type,omitempty"`
}

// Days returns the number of calendar days between Start and End.
func (p Period) Days() int {
	return int(Date(p.End).Sub(Date(p.Start)).Hours() / 24)
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type ClientInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Contact  string `json:"contact,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// CompanyInfo identifies the service provider issuing the report.
type CompanyInfo struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`
}

type Photo struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SystemInfo is a monitored system. Root systems carry their stages.
type SystemInfo struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	Description string       `json:"description,omitempty"`
	ParentID    string       `json:"parent_id,omitempty"`
	Stages      []SystemInfo `json:"stages,omitempty"`
	Photos      []Photo      `json:"photos,omitempty"`
}

// MonitoringPoint is a measured parameter on a system. MinValue and MaxValue
// bound the acceptable range; either may be nil.
type MonitoringPoint struct {
	ID            string   `json:"id"`
	SystemID      string   `json:"system_id"`
	Name          string   `json:"name"`
	ParameterName string   `json:"parameter_name"`
	Unit          string   `json:"unit"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
}

type MeasurementEntry struct {
	MonitoringPoint MonitoringPoint `json:"monitoring_point"`
	Value           *float64        `json:"value"`
	IsOutOfRange    bool            `json:"is_out_of_range"`
}

// MeasurementLog groups the entries recorded for one system on one date.
type MeasurementLog struct {
	ID          string             `json:"id"`
	Date        time.Time          `json:"date"`
	SystemID    string             `json:"system_id"`
	SystemName  string             `json:"system_name"`
	RecordType  RecordType         `json:"record_type"`
	CollectedBy string             `json:"collected_by,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Entries     []MeasurementEntry `json:"entries"`
}

type ChecklistItem struct {
	Description string  `json:"description"`
	Compliant   bool    `json:"compliant"`
	Notes       string  `json:"notes,omitempty"`
	Photos      []Photo `json:"photos,omitempty"`
}

type Inspection struct {
	ID          string          `json:"id"`
	InspectedAt time.Time       `json:"inspected_at"`
	SystemID    string          `json:"system_id"`
	SystemName  string          `json:"system_name"`
	Inspector   string          `json:"inspector"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	Items       []ChecklistItem `json:"items"`
	Photos      []Photo         `json:"photos,omitempty"`
}

// CompliantCount returns the number of compliant checklist items.
func (i Inspection) CompliantCount() int {
	n := 0
	for _, item := range i.Items {
		if item.Compliant {
			n++
		}
	}
	return n
}

// NonConformityCount returns the number of non-compliant checklist items.
func (i Inspection) NonConformityCount() int {
	return len(i.Items) - i.CompliantCount()
}

type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Incident struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      string     `json:"status"`
	SystemID    string     `json:"system_id"`
	SystemName  string     `json:"system_name"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	Photos      []Photo    `json:"photos,omitempty"`
}

// IsOpen reports whether the incident still needs follow-up.
func (i Incident) IsOpen() bool {
	switch i.Status {
	case "resolved", "closed", "cancelled":
		return false
	}
	return true
}

// Priority ranks incidents; higher Rank means more urgent.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities, unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

type Summary struct {
	TotalSystems      int `json:"total_systems"`
	TotalMeasurements int `json:"total_measurements"`
	OutOfRange        int `json:"out_of_range"`
	Inspections       int `json:"inspections"`
	Incidents         int `json:"incidents"`
	OpenIncidents     int `json:"open_incidents"`
}

type Signature struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Registration string `json:"registration,omitempty"`
}

// ReportData is the fused snapshot a report is composed from.
type ReportData struct {
	Client          ClientInfo       `json:"client"`
	Company         CompanyInfo      `json:"company"`
	Period          Period           `json:"period"`
	Systems         []SystemInfo     `json:"systems"`
	MeasurementLogs []MeasurementLog `json:"measurement_logs"`
	Inspections     []Inspection     `json:"inspections"`
	Incidents       []Incident       `json:"incidents"`
	Summary         Summary          `json:"summary"`
	Conclusion      string           `json:"conclusion,omitempty"`
	Signature       *Signature       `json:"signature,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// NewReportData returns a ReportData with empty, non-nil collections.
func NewReportData(client ClientInfo, period Period) *ReportData {
	return &ReportData{
		Client:          client,
		Period:          period,
		Systems:         []SystemInfo{},
		MeasurementLogs: []MeasurementLog{},
		Inspections:     []Inspection{},
		Incidents:       []Incident{},
	}
}

// LogsOfType returns the measurement logs of the given record type, in input order.
func (d *ReportData) LogsOfType(t RecordType) []MeasurementLog {
	var out []MeasurementLog
	for _, l := range d.MeasurementLogs {
		if l.RecordType == t {
			out = append(out, l)
		}
	}
	return out
}

// SystemCount counts root systems plus their stages.
func (d *ReportData) SystemCount() int {
	n := 0
	for _, s := range d.Systems {
		n += 1 + len(s.Stages)
	}
	return n
}
