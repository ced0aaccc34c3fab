package compiler

import (
	"facility-reports/internal/assets"
	"facility-reports/internal/report"
)

// PhotoURLs lists the distinct photo URLs the enabled blocks of cfg may
// embed, in document order.
func PhotoURLs(data *report.ReportData, cfg report.ReportConfig) []string {
	var urls []string
	add := func(photos []report.Photo) {
		for _, p := range photos {
			urls = append(urls, p.URL)
		}
	}

	for _, b := range cfg.EnabledBlocks() {
		switch v := b.(type) {
		case report.SystemsBlock:
			if !v.IncludePhotos {
				continue
			}
			for _, s := range data.Systems {
				add(s.Photos)
				for _, st := range s.Stages {
					add(st.Photos)
				}
			}
		case report.InspectionsBlock:
			if !v.IncludePhotos || !v.ShowInspectionDetailed {
				continue
			}
			for _, in := range data.Inspections {
				add(in.Photos)
				for _, item := range in.Items {
					add(item.Photos)
				}
			}
		case report.OccurrencesBlock:
			if !v.IncludePhotos || !v.ShowOccurrenceDetailed {
				continue
			}
			for _, in := range data.Incidents {
				add(in.Photos)
			}
		}
	}
	return assets.Unique(urls)
}
