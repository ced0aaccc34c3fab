package report

// Granularity is the time-bucketing resolution of a chart series.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ValidGranularities lists all supported granularities.
var ValidGranularities = map[Granularity]struct{}{
	Daily:   {},
	Weekly:  {},
	Monthly: {},
}

// ChartKind is the visual form of a rendered series.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartArea ChartKind = "area"
)

// ValidChartKinds lists all supported chart kinds.
var ValidChartKinds = map[ChartKind]struct{}{
	ChartBar:  {},
	ChartLine: {},
	ChartArea: {},
}

// AggregatedPoint is one bucket of an aggregated series. Value is nil when
// the bucket had no numeric samples.
type AggregatedPoint struct {
	BucketKey    string   `json:"bucket_key"`
	Label        string   `json:"label"`
	Value        *float64 `json:"value"`
	IsOutOfRange bool     `json:"is_out_of_range"`
}

// ChartSeries is one monitoring point's aggregated history plus display metadata.
type ChartSeries struct {
	MonitoringPointID string            `json:"monitoring_point_id"`
	SystemName        string            `json:"system_name,omitempty"`
	ParameterName     string            `json:"parameter_name"`
	Unit              string            `json:"unit"`
	MinValue          *float64          `json:"min_value,omitempty"`
	MaxValue          *float64          `json:"max_value,omitempty"`
	Granularity       Granularity       `json:"granularity"`
	Points            []AggregatedPoint `json:"points"`
	Color             string            `json:"color"`
}

// NonNullCount returns how many points carry a value.
func (s ChartSeries) NonNullCount() int {
	n := 0
	for _, p := range s.Points {
		if p.Value != nil {
			n++
		}
	}
	return n
}

// ChartData is the chart payload produced alongside ReportData.
type ChartData struct {
	FieldCharts      []ChartSeries `json:"field_charts"`
	LaboratoryCharts []ChartSeries `json:"laboratory_charts"`
}

// IsEmpty reports whether no series were produced.
func (c *ChartData) IsEmpty() bool {
	return c == nil || (len(c.FieldCharts) == 0 && len(c.LaboratoryCharts) == 0)
}

// ChartImage is a rendered series ready to embed in a document.
type ChartImage struct {
	MonitoringPointID string `json:"monitoring_point_id"`
	Title             string `json:"title"`
	Data              []byte `json:"data"`
}
