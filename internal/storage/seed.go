package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"facility-reports/internal/report"
)

// ErrAlreadySeeded is returned by Seed when the demo client exists.
var ErrAlreadySeeded = errors.New("demo data already present")

// DefaultTemplateID identifies the shared template Seed stores.
const DefaultTemplateID = "default"

type SeedOptions struct {
	ClientID string
	Days     int
	Now      time.Time
}

// seedID derives a stable ID so reseeding a fresh database yields the same rows.
func seedID(clientID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("facility-reports/"+clientID+"/"+name)).String()
}

type seedPoint struct {
	key, name, param, unit string
	min, max               *float64
	base, swing            float64
	lab                    bool
}

func floatPtr(v float64) *float64 { return &v }

// Seed inserts a demo client with a pool (two stages) and a cooling tower,
// daily field readings, weekly laboratory analyses, inspections, incidents
// and the shared default template.
func Seed(ctx context.Context, d *Database, opts SeedOptions) error {
	if opts.ClientID == "" {
		opts.ClientID = "demo"
	}
	if opts.Days <= 0 {
		opts.Days = 60
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	today := report.Date(opts.Now)
	id := func(name string) string { return seedID(opts.ClientID, name) }

	if _, err := d.Client(ctx, opts.ClientID); err == nil {
		return ErrAlreadySeeded
	} else if !errors.Is(err, report.ErrNotFound) {
		return err
	}

	pool, tower := id("system/pool"), id("system/tower")
	systems := []System{
		{
			ID: pool, ClientID: opts.ClientID, Name: "Main pool", Type: "pool", Status: "active",
			Description: "Semi-olympic outdoor pool, 600 m3",
			Photos:      []Photo{{URL: "https://assets.example.com/demo/pool.jpg", Caption: "Main pool, north side"}},
		},
		{ID: id("system/filter"), ClientID: opts.ClientID, ParentID: &pool, Name: "Sand filter", Type: "filtration", Status: "active"},
		{ID: id("system/dosing"), ClientID: opts.ClientID, ParentID: &pool, Name: "Chlorine dosing", Type: "dosing", Status: "active"},
		{ID: tower, ClientID: opts.ClientID, Name: "Cooling tower CT-1", Type: "cooling_tower", Status: "active", Description: "Induced draft, 250 TR"},
	}

	points := map[string][]seedPoint{
		pool: {
			{key: "ph", name: "Pool pH", param: "pH", min: floatPtr(7.2), max: floatPtr(7.8), base: 7.5, swing: 0.4},
			{key: "chlorine", name: "Free chlorine", param: "Free chlorine", unit: "mg/L", min: floatPtr(1), max: floatPtr(3), base: 2, swing: 1.2},
			{key: "turbidity", name: "Turbidity", param: "Turbidity", unit: "NTU", max: floatPtr(0.5), base: 0.3, swing: 0.25, lab: true},
		},
		tower: {
			{key: "conductivity", name: "Conductivity", param: "Conductivity", unit: "uS/cm", max: floatPtr(1500), base: 1200, swing: 400},
			{key: "temperature", name: "Basin temperature", param: "Temperature", unit: "C", base: 28, swing: 3},
			{key: "bacteria", name: "Heterotrophic count", param: "HPC", unit: "CFU/mL", max: floatPtr(10000), base: 6000, swing: 5000, lab: true},
		},
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client := Client{
			ID: opts.ClientID, Name: "Sunset Country Club", Document: "12.345.678/0001-90",
			Address: "Av. Atlantica 1000", City: "Santos", State: "SP",
			Contact: "Marina Costa", Email: "facilities@sunset.example.com", Phone: "+55 13 3333-0000",
		}
		if err := tx.Create(&client).Error; err != nil {
			return fmt.Errorf("seed client: %w", err)
		}
		if err := tx.Create(&systems).Error; err != nil {
			return fmt.Errorf("seed systems: %w", err)
		}

		var logs []MeasurementLog
		for _, sys := range []string{pool, tower} {
			for i, sp := range points[sys] {
				mp := MonitoringPoint{
					ID: id("point/" + sp.key), SystemID: sys, Position: i, Name: sp.name,
					ParameterName: sp.param, Unit: sp.unit, MinValue: sp.min, MaxValue: sp.max,
				}
				if err := tx.Create(&mp).Error; err != nil {
					return fmt.Errorf("seed monitoring point: %w", err)
				}
			}
		}

		for day := opts.Days - 1; day >= 0; day-- {
			date := today.AddDate(0, 0, -day)
			for _, sys := range []string{pool, tower} {
				field := MeasurementLog{ID: id(fmt.Sprintf("log/%s/field/%d", sys, day)), ClientID: opts.ClientID, SystemID: sys, Date: date, RecordType: string(report.RecordField), CollectedBy: "Operator"}
				lab := MeasurementLog{ID: id(fmt.Sprintf("log/%s/lab/%d", sys, day)), ClientID: opts.ClientID, SystemID: sys, Date: date, RecordType: string(report.RecordLaboratory), CollectedBy: "Lab"}
				for _, sp := range points[sys] {
					if sp.lab && day%7 != 0 {
						continue
					}
					v := sp.base + sp.swing*math.Sin(float64(day)*0.9+float64(len(sp.key)))
					v = math.Round(v*100) / 100
					e := MeasurementEntry{MonitoringPointID: id("point/" + sp.key), Value: floatPtr(v), IsOutOfRange: outOfRange(v, sp.min, sp.max)}
					if sp.lab {
						lab.Entries = append(lab.Entries, e)
					} else {
						field.Entries = append(field.Entries, e)
					}
				}
				for _, l := range []MeasurementLog{field, lab} {
					if len(l.Entries) > 0 {
						logs = append(logs, l)
					}
				}
			}
		}
		if err := tx.CreateInBatches(&logs, 100).Error; err != nil {
			return fmt.Errorf("seed measurement logs: %w", err)
		}

		var inspections []Inspection
		for n, day := 0, opts.Days-3; day >= 0; n, day = n+1, day-14 {
			at := today.AddDate(0, 0, -day).Add(10 * time.Hour)
			sys, name := pool, "pool"
			if n%2 == 1 {
				sys, name = tower, "tower"
			}
			insp := Inspection{
				ID: id(fmt.Sprintf("inspection/%s/%d", name, day)), ClientID: opts.ClientID, SystemID: sys,
				InspectedAt: at, Inspector: "Carlos Mendes", Status: "completed",
			}
			for i, desc := range []string{"Safety signage in place", "Equipment room clean", "Chemical storage ventilated", "Logbook up to date"} {
				item := ChecklistItem{ID: id(fmt.Sprintf("item/%s/%d/%d", name, day, i)), Position: i, Description: desc, Compliant: (n+i)%5 != 3}
				if !item.Compliant {
					item.Notes = "Corrective action requested"
				}
				insp.Items = append(insp.Items, item)
			}
			inspections = append(inspections, insp)
		}
		if len(inspections) > 0 {
			if err := tx.Create(&inspections).Error; err != nil {
				return fmt.Errorf("seed inspections: %w", err)
			}
		}

		resolved := today.AddDate(0, 0, -8).Add(16 * time.Hour)
		incidents := []Incident{
			{
				ID: id("incident/pump"), ClientID: opts.ClientID, SystemID: pool, Title: "Recirculation pump noise",
				Description: "Bearing noise reported by the morning shift.", Priority: string(report.PriorityHigh), Status: "resolved",
				CreatedAt: today.AddDate(0, 0, -10).Add(8 * time.Hour), ResolvedAt: &resolved,
				Comments: []IncidentComment{{Author: "Carlos Mendes", Text: "Bearing replaced, pump back in service.", CreatedAt: resolved}},
			},
			{
				ID: id("incident/drift"), ClientID: opts.ClientID, SystemID: tower, Title: "Drift eliminator damaged",
				Priority: string(report.PriorityMedium), Status: "open", CreatedAt: today.AddDate(0, 0, -4).Add(11 * time.Hour),
			},
			{
				ID: id("incident/dosing"), ClientID: opts.ClientID, SystemID: id("system/dosing"), Title: "Dosing pump alarm",
				Priority: string(report.PriorityLow), Status: "in_progress", CreatedAt: today.AddDate(0, 0, -1).Add(7 * time.Hour),
			},
		}
		if err := tx.Create(&incidents).Error; err != nil {
			return fmt.Errorf("seed incidents: %w", err)
		}

		body, err := json.MarshalIndent(report.DefaultConfig(), "", "  ")
		if err != nil {
			return err
		}
		tmpl := ReportTemplate{ID: DefaultTemplateID, Name: "Default technical report", Format: "json", Body: string(body)}
		if err := tx.Save(&tmpl).Error; err != nil {
			return fmt.Errorf("seed template: %w", err)
		}
		return nil
	})
}

func outOfRange(v float64, min, max *float64) bool {
	return (min != nil && v < *min) || (max != nil && v > *max)
}
