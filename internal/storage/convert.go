package storage

import "facility-reports/internal/report"

func clientInfo(c Client) report.ClientInfo {
	return report.ClientInfo{
		ID:       c.ID,
		Name:     c.Name,
		Document: c.Document,
		Address:  c.Address,
		City:     c.City,
		State:    c.State,
		Contact:  c.Contact,
		Email:    c.Email,
		Phone:    c.Phone,
	}
}

func photos(list []Photo) []report.Photo {
	if len(list) == 0 {
		return nil
	}
	out := make([]report.Photo, 0, len(list))
	for _, p := range list {
		out = append(out, report.Photo{URL: p.URL, Caption: p.Caption})
	}
	return out
}

func systemInfo(s System) report.SystemInfo {
	info := report.SystemInfo{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Status:      s.Status,
		Description: s.Description,
		Photos:      photos(s.Photos),
	}
	if s.ParentID != nil {
		info.ParentID = *s.ParentID
	}
	return info
}

func monitoringPoint(p MonitoringPoint) report.MonitoringPoint {
	return report.MonitoringPoint{
		ID:            p.ID,
		SystemID:      p.SystemID,
		Name:          p.Name,
		ParameterName: p.ParameterName,
		Unit:          p.Unit,
		MinValue:      p.MinValue,
		MaxValue:      p.MaxValue,
	}
}

func measurementLog(l MeasurementLog) report.MeasurementLog {
	out := report.MeasurementLog{
		ID:          l.ID,
		Date:        report.Date(l.Date),
		SystemID:    l.SystemID,
		SystemName:  l.System.Name,
		RecordType:  report.RecordType(l.RecordType),
		CollectedBy: l.CollectedBy,
		Notes:       l.Notes,
		Entries:     make([]report.MeasurementEntry, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		point := monitoringPoint(e.MonitoringPoint)
		if point.ID == "" {
			point.ID = e.MonitoringPointID
		}
		out.Entries = append(out.Entries, report.MeasurementEntry{
			MonitoringPoint: point,
			Value:           e.Value,
			IsOutOfRange:    e.IsOutOfRange,
		})
	}
	return out
}

func inspection(i Inspection) report.Inspection {
	out := report.Inspection{
		ID:          i.ID,
		InspectedAt: i.InspectedAt,
		SystemID:    i.SystemID,
		SystemName:  i.System.Name,
		Inspector:   i.Inspector,
		Status:      i.Status,
		Notes:       i.Notes,
		Items:       make([]report.ChecklistItem, 0, len(i.Items)),
		Photos:      photos(i.Photos),
	}
	for _, item := range i.Items {
		out.Items = append(out.Items, report.ChecklistItem{
			Description: item.Description,
			Compliant:   item.Compliant,
			Notes:       item.Notes,
			Photos:      photos(item.Photos),
		})
	}
	return out
}

func incident(i Incident) report.Incident {
	out := report.Incident{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Priority:    report.Priority(i.Priority),
		Status:      i.Status,
		SystemID:    i.SystemID,
		SystemName:  i.System.Name,
		CreatedAt:   i.CreatedAt,
		ResolvedAt:  i.ResolvedAt,
		Photos:      photos(i.Photos),
	}
	for _, c := range i.Comments {
		out.Comments = append(out.Comments, report.Comment{Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return out
}
