package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockTypes(blocks []Block) []BlockType {
	out := make([]BlockType, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Header().Type)
	}
	return out
}

func TestParseConfig_OrderAndEnabled(t *testing.T) {
	cfg, warnings, err := ParseConfig([]byte(`{"blocks":[
		{"type":"conclusion","order":2,"enabled":true},
		{"type":"identification","order":1,"enabled":true},
		{"type":"scope","order":5,"enabled":false}
	]}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, []BlockType{BlockIdentification, BlockConclusion}, blockTypes(cfg.EnabledBlocks()))
}

func TestParseConfig_MissingOptionsUseDefaults(t *testing.T) {
	cfg, warnings, err := ParseConfig([]byte(`{"blocks":[{"type":"analyses","order":3,"showFieldDetailed":false}]}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, cfg.Blocks, 1)

	a, ok := cfg.Blocks[0].(AnalysesBlock)
	require.True(t, ok)
	assert.True(t, a.Enabled)
	assert.Equal(t, 3, a.Order)
	assert.True(t, a.ShowFieldOverview)
	assert.False(t, a.ShowFieldDetailed)
	assert.True(t, a.IncludeCharts)
	assert.Equal(t, ChartLine, a.ChartKind)
	assert.Equal(t, DefaultDetailedDateLimit, a.DetailedDateLimit)
}

func TestParseConfig_OrderDefaultsToPosition(t *testing.T) {
	cfg, _, err := ParseConfig([]byte(`{"blocks":[{"type":"signature"},{"type":"scope"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Blocks[0].Header().Order)
	assert.Equal(t, 2, cfg.Blocks[1].Header().Order)
}

func TestParseConfig_UnknownTypeIsKept(t *testing.T) {
	cfg, warnings, err := ParseConfig([]byte(`{"blocks":[{"type":"gallery","order":1},{"type":"scope","order":2}]}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	enabled := cfg.EnabledBlocks()
	require.Len(t, enabled, 2)
	_, unknown := enabled[0].(UnknownBlock)
	assert.True(t, unknown)
	assert.Equal(t, BlockType("gallery"), enabled[0].Header().Type)
}

func TestParseConfig_Defects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, cfg ReportConfig)
		defects int
	}{
		{
			name:    "block without type",
			input:   `{"blocks":[{"order":1},{"type":"scope"}]}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				assert.Equal(t, []BlockType{BlockScope}, blockTypes(cfg.Blocks))
			},
		},
		{
			name:    "wrongly typed option",
			input:   `{"blocks":[{"type":"systems","order":4,"includePhotos":"yes"}]}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				s := cfg.Blocks[0].(SystemsBlock)
				assert.True(t, s.IncludePhotos)
				assert.Equal(t, 4, s.Order)
			},
		},
		{
			name:    "wrongly typed option on a disabled block",
			input:   `{"blocks":[{"type":"identification","order":1},{"type":"scope","order":9,"enabled":false,"showStages":"no","text":"Pools only"}]}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				require.Len(t, cfg.Blocks, 2)
				s := cfg.Blocks[1].(ScopeBlock)
				assert.Equal(t, BlockHeader{Type: BlockScope, Enabled: false, Order: 9}, s.BlockHeader)
				assert.True(t, s.ShowStages)
				assert.Equal(t, "Pools only", s.Text)
				assert.Equal(t, []BlockType{BlockIdentification}, blockTypes(cfg.EnabledBlocks()))
			},
		},
		{
			name:    "unknown chart type",
			input:   `{"blocks":[{"type":"analyses","chartType":"pie","detailedDateLimit":0}]}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				a := cfg.Blocks[0].(AnalysesBlock)
				assert.Equal(t, ChartLine, a.ChartKind)
				assert.Equal(t, DefaultDetailedDateLimit, a.DetailedDateLimit)
			},
		},
		{
			name:    "unknown priority filter",
			input:   `{"blocks":[{"type":"occurrences","priorityFilter":"urgent"}]}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				assert.Equal(t, PriorityFilterAll, cfg.Blocks[0].(OccurrencesBlock).PriorityFilter)
			},
		},
		{
			name:    "concrete priority filter",
			input:   `{"blocks":[{"type":"occurrences","priorityFilter":"high"}]}`,
			defects: 0,
			check: func(t *testing.T, cfg ReportConfig) {
				assert.Equal(t, "high", cfg.Blocks[0].(OccurrencesBlock).PriorityFilter)
			},
		},
		{
			name:    "unknown logo position",
			input:   `{"blocks":[],"branding":{"showLogo":true,"logoPosition":"top"}}`,
			defects: 1,
			check: func(t *testing.T, cfg ReportConfig) {
				assert.Equal(t, LogoLeft, cfg.Branding.LogoPosition)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, warnings, err := ParseConfig([]byte(tt.input))
			require.NoError(t, err)
			assert.Len(t, warnings, tt.defects)
			for _, w := range warnings {
				assert.Equal(t, ConfigurationDefect, w.Kind)
			}
			tt.check(t, cfg)
		})
	}
}

func TestParseConfig_MalformedJSON(t *testing.T) {
	_, _, err := ParseConfig([]byte(`{"blocks":`))
	assert.Error(t, err)
}

func TestParseConfig_DefaultBrandingWhenAbsent(t *testing.T) {
	cfg, _, err := ParseConfig([]byte(`{"blocks":[]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Branding, cfg.Branding)
}

func TestParseConfigYAML(t *testing.T) {
	cfg, warnings, err := ParseConfigYAML([]byte(`
blocks:
  - type: occurrences
    order: 2
    priorityFilter: highest
    showOccurrenceDetailed: true
  - type: identification
    order: 1
branding:
  showLogo: false
  logoPosition: right
  headerText: Monthly water quality
`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []BlockType{BlockIdentification, BlockOccurrences}, blockTypes(cfg.EnabledBlocks()))

	o := cfg.Blocks[0].(OccurrencesBlock)
	assert.Equal(t, PriorityFilterHighest, o.PriorityFilter)
	assert.True(t, o.ShowOccurrenceDetailed)
	assert.True(t, o.ShowTimeline)
	assert.Equal(t, LogoRight, cfg.Branding.LogoPosition)
	assert.Equal(t, "Monthly water quality", cfg.Branding.HeaderText)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Len(t, cfg.Blocks, 9)

	enabled := cfg.EnabledBlocks()
	assert.Len(t, enabled, 8)
	assert.NotContains(t, blockTypes(enabled), BlockAttachments)
	assert.True(t, cfg.ChartsRequested())
	assert.Empty(t, cfg.Normalize())
}

func TestDefaultConfig_RoundTrip(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	require.NoError(t, err)

	cfg, warnings, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestChartsRequested(t *testing.T) {
	cfg := ReportConfig{Blocks: []Block{
		AnalysesBlock{BlockHeader: BlockHeader{Type: BlockAnalyses, Enabled: false}, IncludeCharts: true},
		AnalysesBlock{BlockHeader: BlockHeader{Type: BlockAnalyses, Enabled: true}},
	}}
	assert.False(t, cfg.ChartsRequested())
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	assert.NotNil(t, d.Warnings())

	d.Addf(AssetFetchFailure, "https://x/a.jpg", "status %d", 404)
	d.Add(Warning{Kind: ChartRenderFailure, Subject: "p1"})
	assert.Equal(t, 1, d.Count(AssetFetchFailure))
	assert.Equal(t, "asset_fetch_failure [https://x/a.jpg]: status 404", d.Warnings()[0].String())
}
