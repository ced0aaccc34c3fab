package assembler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"facility-reports/internal/aggregate"
	"facility-reports/internal/report"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Client(ctx context.Context, clientID string) (report.ClientInfo, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(report.ClientInfo), args.Error(1)
}

func (m *mockStore) RootSystems(ctx context.Context, clientID string, ids []string) ([]report.SystemInfo, error) {
	args := m.Called(ctx, clientID, ids)
	return args.Get(0).([]report.SystemInfo), args.Error(1)
}

func (m *mockStore) MonitoringPoints(ctx context.Context, systemIDs []string) ([]report.MonitoringPoint, error) {
	args := m.Called(ctx, systemIDs)
	return args.Get(0).([]report.MonitoringPoint), args.Error(1)
}

func (m *mockStore) MeasurementLogs(ctx context.Context, q report.LogQuery) ([]report.MeasurementLog, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]report.MeasurementLog), args.Error(1)
}

func (m *mockStore) Inspections(ctx context.Context, q report.EventQuery) ([]report.Inspection, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]report.Inspection), args.Error(1)
}

func (m *mockStore) Incidents(ctx context.Context, q report.EventQuery) ([]report.Incident, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]report.Incident), args.Error(1)
}

func fp(v float64) *float64 { return &v }

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

var (
	ph       = report.MonitoringPoint{ID: "pt-ph", SystemID: "sys-pool", Name: "Pool pH", ParameterName: "pH", MinValue: fp(7.2), MaxValue: fp(7.8)}
	chlorine = report.MonitoringPoint{ID: "pt-cl", SystemID: "sys-filter", Name: "Free chlorine", ParameterName: "Chlorine", Unit: "mg/L", MaxValue: fp(3)}
	turbid   = report.MonitoringPoint{ID: "pt-tb", SystemID: "sys-pool", ParameterName: "Turbidity", Unit: "NTU"}
)

func fixtureRoots() []report.SystemInfo {
	return []report.SystemInfo{{
		ID:   "sys-pool",
		Name: "Main pool",
		Stages: []report.SystemInfo{
			{ID: "sys-filter", Name: "Sand filter", ParentID: "sys-pool"},
		},
	}}
}

func setupFixture(t *testing.T) (*mockStore, *Assembler) {
	t.Helper()
	store := &mockStore{}
	a := New(Config{
		Systems:      store,
		Measurements: store,
		Inspections:  store,
		Incidents:    store,
		Company:      report.CompanyInfo{Name: "AquaTech"},
		Locale:       aggregate.LocaleEn,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) },
	})
	return store, a
}

func baseRequest() Request {
	return Request{
		ClientID: "client-1",
		Period:   report.Period{Start: day(1), End: day(10), Type: report.PeriodCustom},
		Config:   report.DefaultConfig(),
	}
}

func TestAssemble(t *testing.T) {
	store, a := setupFixture(t)
	ctx := context.Background()
	req := baseRequest()
	systemIDs := []string{"sys-pool", "sys-filter"}

	store.On("Client", mock.Anything, "client-1").Return(report.ClientInfo{ID: "client-1", Name: "Club"}, nil)
	store.On("RootSystems", mock.Anything, "client-1", []string(nil)).Return(fixtureRoots(), nil)
	store.On("MonitoringPoints", mock.Anything, systemIDs).Return([]report.MonitoringPoint{ph, chlorine, turbid}, nil)
	store.On("MeasurementLogs", mock.Anything, report.LogQuery{
		ClientID:  "client-1",
		SystemIDs: systemIDs,
		Dates:     report.DateRange{From: day(1), To: day(10)},
	}).Return([]report.MeasurementLog{
		{ID: "l2", Date: day(3), SystemID: "sys-pool", RecordType: report.RecordField, Entries: []report.MeasurementEntry{
			{MonitoringPoint: ph, Value: fp(8.1), IsOutOfRange: true},
		}},
		{ID: "l1", Date: day(1), SystemID: "sys-pool", RecordType: report.RecordField, Entries: []report.MeasurementEntry{
			{MonitoringPoint: ph, Value: fp(7.4)},
			{MonitoringPoint: chlorine, Value: fp(1.5)},
		}},
		{ID: "l3", Date: day(2), SystemID: "sys-filter", RecordType: report.RecordLaboratory, Entries: []report.MeasurementEntry{
			{MonitoringPoint: chlorine, Value: fp(1.2)},
		}},
	}, nil)
	window := report.TimeRange{From: day(1), To: day(11).Add(-time.Millisecond)}
	store.On("Inspections", mock.Anything, report.EventQuery{ClientID: "client-1", SystemIDs: systemIDs, Window: window}).
		Return([]report.Inspection{{ID: "i1", InspectedAt: day(4)}}, nil)
	store.On("Incidents", mock.Anything, report.EventQuery{ClientID: "client-1", SystemIDs: systemIDs, Window: window}).
		Return([]report.Incident{{ID: "o1", Status: "open"}, {ID: "o2", Status: "resolved"}}, nil)

	res, err := a.Assemble(ctx, req)
	require.NoError(t, err)
	store.AssertExpectations(t)

	data := res.Data
	assert.Equal(t, "Club", data.Client.Name)
	assert.Equal(t, "AquaTech", data.Company.Name)
	assert.Equal(t, []string{"l1", "l3", "l2"}, []string{data.MeasurementLogs[0].ID, data.MeasurementLogs[1].ID, data.MeasurementLogs[2].ID})
	assert.Equal(t, report.Summary{
		TotalSystems:      2,
		TotalMeasurements: 4,
		OutOfRange:        1,
		Inspections:       1,
		Incidents:         2,
		OpenIncidents:     1,
	}, data.Summary)

	assert.Equal(t, report.Daily, res.Granularity)
	require.NotNil(t, res.Charts)
	require.Len(t, res.Charts.FieldCharts, 2)
	require.Len(t, res.Charts.LaboratoryCharts, 1)
	assert.Equal(t, []string{"pt-ph", "pt-cl", "pt-tb"}, res.PointIDs)

	phSeries := res.Charts.FieldCharts[0]
	assert.Equal(t, "pt-ph", phSeries.MonitoringPointID)
	assert.Equal(t, "Main pool", phSeries.SystemName)
	assert.Len(t, phSeries.Points, 10)
	assert.InDelta(t, 7.4, *phSeries.Points[0].Value, 1e-9)
	assert.Nil(t, phSeries.Points[1].Value)
	assert.True(t, phSeries.Points[2].IsOutOfRange)
	assert.NotEqual(t, phSeries.Color, res.Charts.FieldCharts[1].Color)

	lab := res.Charts.LaboratoryCharts[0]
	assert.Equal(t, "pt-cl", lab.MonitoringPointID)
	assert.Equal(t, "Sand filter", lab.SystemName)
}

func TestAssemble_NoSystems(t *testing.T) {
	store, a := setupFixture(t)
	store.On("Client", mock.Anything, "client-1").Return(report.ClientInfo{}, report.ErrNotFound)
	store.On("RootSystems", mock.Anything, "client-1", []string(nil)).Return([]report.SystemInfo(nil), nil)

	res, err := a.Assemble(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, "client-1", res.Data.Client.ID)
	assert.NotNil(t, res.Data.Systems)
	assert.Empty(t, res.Data.MeasurementLogs)
	assert.NotNil(t, res.Data.Inspections)
	assert.Equal(t, report.Summary{}, res.Data.Summary)
	require.NotNil(t, res.Charts)
	assert.True(t, res.Charts.IsEmpty())
	store.AssertNotCalled(t, "MeasurementLogs", mock.Anything, mock.Anything)
}

func TestAssemble_NoChartsRequested(t *testing.T) {
	store, a := setupFixture(t)
	req := baseRequest()
	req.Config = report.ReportConfig{Blocks: []report.Block{
		report.AnalysesBlock{BlockHeader: report.BlockHeader{Type: report.BlockAnalyses, Enabled: true}},
	}}
	req.SystemIDs = []string{"sys-pool"}

	store.On("Client", mock.Anything, "client-1").Return(report.ClientInfo{ID: "client-1"}, nil)
	store.On("RootSystems", mock.Anything, "client-1", []string{"sys-pool"}).Return(fixtureRoots(), nil)
	store.On("MeasurementLogs", mock.Anything, mock.Anything).Return([]report.MeasurementLog(nil), nil)
	store.On("Inspections", mock.Anything, mock.Anything).Return([]report.Inspection(nil), nil)
	store.On("Incidents", mock.Anything, mock.Anything).Return([]report.Incident(nil), nil)

	res, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res.Charts)
	assert.NotNil(t, res.Data.MeasurementLogs)
	store.AssertNotCalled(t, "MonitoringPoints", mock.Anything, mock.Anything)
}

func TestAssemble_StoreFailureAborts(t *testing.T) {
	store, a := setupFixture(t)
	boom := errors.New("disk I/O error")

	store.On("Client", mock.Anything, "client-1").Return(report.ClientInfo{ID: "client-1"}, nil)
	store.On("RootSystems", mock.Anything, "client-1", []string(nil)).Return(fixtureRoots(), nil)
	store.On("MonitoringPoints", mock.Anything, mock.Anything).Return([]report.MonitoringPoint(nil), nil)
	store.On("MeasurementLogs", mock.Anything, mock.Anything).Return([]report.MeasurementLog(nil), nil)
	store.On("Inspections", mock.Anything, mock.Anything).Return([]report.Inspection(nil), boom)
	store.On("Incidents", mock.Anything, mock.Anything).Return([]report.Incident(nil), nil)

	_, err := a.Assemble(context.Background(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}

func TestAssemble_InvalidRequestFailsBeforeFetching(t *testing.T) {
	store, a := setupFixture(t)
	req := baseRequest()
	req.ClientID = " "

	_, err := a.Assemble(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	store.AssertNotCalled(t, "Client", mock.Anything, mock.Anything)
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *Request)
		field string
	}{
		{"valid", func(r *Request) {}, ""},
		{"missing client", func(r *Request) { r.ClientID = "" }, "client_id"},
		{"missing start", func(r *Request) { r.Period.Start = time.Time{} }, "period.start"},
		{"missing end", func(r *Request) { r.Period.End = time.Time{} }, "period.end"},
		{"reversed", func(r *Request) { r.Period.Start = day(20) }, "period.end"},
		{"bad type", func(r *Request) { r.Period.Type = "yearly" }, "period.type"},
		{"bad granularity", func(r *Request) { r.Granularity = "hourly" }, "granularity"},
		{"same day", func(r *Request) { r.Period.End = r.Period.Start.Add(5 * time.Hour) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.edit(&req)
			err := req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestGranularityFor(t *testing.T) {
	tests := []struct {
		period report.Period
		want   report.Granularity
	}{
		{report.Period{Start: day(1), End: day(31), Type: report.PeriodDaily}, report.Daily},
		{report.Period{Start: day(1), End: day(2), Type: report.PeriodMonthly}, report.Monthly},
		{report.Period{Start: day(1), End: day(15)}, report.Daily},
		{report.Period{Start: day(1), End: day(16), Type: report.PeriodCustom}, report.Weekly},
		{report.Period{Start: day(1), End: day(1).AddDate(0, 0, 90)}, report.Weekly},
		{report.Period{Start: day(1), End: day(1).AddDate(0, 0, 91)}, report.Monthly},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GranularityFor(tt.period), "%s..%s", tt.period.Start.Format("01-02"), tt.period.End.Format("01-02"))
	}
}

func TestSelectPoints(t *testing.T) {
	all := []report.MonitoringPoint{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}, {ID: "f"}}

	assert.Len(t, SelectPoints(all, nil, DefaultPointLimit), 5)
	assert.Equal(t, "e", SelectPoints(all, nil, DefaultPointLimit)[4].ID)

	picked := SelectPoints(all, []string{"f", "zz", "b", "f"}, DefaultPointLimit)
	require.Len(t, picked, 2)
	assert.Equal(t, "f", picked[0].ID)
	assert.Equal(t, "b", picked[1].ID)
}

func TestEffectiveSystemIDs(t *testing.T) {
	roots := fixtureRoots()
	roots = append(roots, report.SystemInfo{ID: "sys-tower"})
	assert.Equal(t, []string{"sys-pool", "sys-tower", "sys-filter"}, EffectiveSystemIDs(roots))
	assert.Empty(t, EffectiveSystemIDs(nil))
}
