package report

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// DateRange is an inclusive range of calendar dates. Measurement logs are
// stored with a bare date and are queried with it.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the calendar date of t lies in the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(r.From) && !d.After(r.To)
}

// TimeRange is an inclusive range of instants.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// MeasurementDateRange returns the calendar dates covered by p.
func MeasurementDateRange(p Period) DateRange {
	return DateRange{From: Date(p.Start), To: Date(p.End)}
}

// DayBoundedRange returns p as timestamps from 00:00:00.000 on the first day
// to 23:59:59.999 on the last day. Inspections and incidents are queried with
// it so records late on the last day are kept.
func DayBoundedRange(p Period) TimeRange {
	return TimeRange{
		From: Date(p.Start),
		To:   Date(p.End).Add(24*time.Hour - time.Millisecond),
	}
}

// LogQuery selects measurement logs. An empty RecordType matches both types.
type LogQuery struct {
	ClientID   string
	SystemIDs  []string
	Dates      DateRange
	RecordType RecordType
}

// EventQuery selects inspections or incidents.
type EventQuery struct {
	ClientID  string
	SystemIDs []string
	Window    TimeRange
}
