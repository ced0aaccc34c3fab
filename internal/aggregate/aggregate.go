// Package aggregate buckets time-stamped samples into daily, weekly or monthly
// series for charting.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"facility-reports/internal/report"
)

// Entry is one raw sample. A zero Date marks a sample with a missing date;
// a nil Value marks a sample without a numeric reading.
type Entry struct {
	Date         time.Time
	Value        *float64
	IsOutOfRange bool
}

type bucket struct {
	key   string
	label string
	sum   float64
	count int
	out   bool
}

func (b *bucket) add(e Entry) {
	if e.Value != nil && !math.IsNaN(*e.Value) && !math.IsInf(*e.Value, 0) {
		b.sum += *e.Value
		b.count++
	}
	if e.IsOutOfRange {
		b.out = true
	}
}

func (b *bucket) point() report.AggregatedPoint {
	p := report.AggregatedPoint{BucketKey: b.key, Label: b.label, IsOutOfRange: b.out}
	if b.count > 0 {
		v := b.sum / float64(b.count)
		p.Value = &v
	}
	return p
}

// Aggregate groups entries by bucket and returns one point per bucket present
// in the input, sorted by bucket key. Empty calendar periods between samples
// are not emitted. Entries without a date are skipped.
func Aggregate(entries []Entry, g report.Granularity, loc Locale) []report.AggregatedPoint {
	buckets := collect(entries, g, loc)

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]report.AggregatedPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, buckets[k].point())
	}
	return points
}

// AggregateDense emits every bucket spanned by period, in order, with a nil
// value for buckets without samples. Entries outside the period are ignored.
func AggregateDense(entries []Entry, g report.Granularity, period report.Period, loc Locale) []report.AggregatedPoint {
	buckets := collect(entries, g, loc)
	spanned := spannedBuckets(period, g, loc)

	points := make([]report.AggregatedPoint, 0, len(spanned))
	for _, empty := range spanned {
		if b, ok := buckets[empty.key]; ok {
			points = append(points, b.point())
			continue
		}
		points = append(points, empty.point())
	}
	return points
}

// spannedBuckets lists the buckets spanned by period, in ascending key order.
func spannedBuckets(period report.Period, g report.Granularity, loc Locale) []bucket {
	start, end := report.Date(period.Start), report.Date(period.End)
	if period.Start.IsZero() || period.End.IsZero() || end.Before(start) {
		return nil
	}

	var out []bucket
	seen := make(map[string]struct{})
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key, label := Key(d, g, loc)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, bucket{key: key, label: label})
	}
	return out
}

// BucketCount returns how many buckets period spans at granularity g.
func BucketCount(period report.Period, g report.Granularity) int {
	return len(spannedBuckets(period, g, DefaultLocale))
}

func collect(entries []Entry, g report.Granularity, loc Locale) map[string]*bucket {
	buckets := make(map[string]*bucket)
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		key, label := Key(e.Date, g, loc)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, label: label}
			buckets[key] = b
		}
		b.add(e)
	}
	return buckets
}

// Key derives the sortable bucket key and display label of a date.
// Unknown granularities bucket daily.
func Key(date time.Time, g report.Granularity, loc Locale) (string, string) {
	d := report.Date(date)
	switch g {
	case report.Weekly:
		week := WeekNumber(d)
		return fmt.Sprintf("%04d-W%02d", d.Year(), week), fmt.Sprintf("Wk %d", week)
	case report.Monthly:
		return d.Format("2006-01"), loc.MonthAbbrev(d.Month()) + "/" + d.Format("06")
	default:
		return d.Format("2006-01-02"), d.Format("02/01")
	}
}

// WeekNumber returns ceil((days since Jan 1 + weekday of Jan 1 + 1) / 7),
// with Sunday as weekday 0. Weeks never cross into the next year.
func WeekNumber(date time.Time) int {
	d := report.Date(date)
	jan1 := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(jan1).Hours() / 24)
	x := days + int(jan1.Weekday()) + 1
	return (x + 6) / 7
}
