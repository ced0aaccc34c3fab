package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// BlockType names one configurable report section.
type BlockType string

const (
	BlockIdentification BlockType = "identification"
	BlockScope          BlockType = "scope"
	BlockSystems        BlockType = "systems"
	BlockAnalyses       BlockType = "analyses"
	BlockInspections    BlockType = "inspections"
	BlockOccurrences    BlockType = "occurrences"
	BlockConclusion     BlockType = "conclusion"
	BlockSignature      BlockType = "signature"
	BlockAttachments    BlockType = "attachments"
)

// Block is one entry of a report template. The set of implementations is
// closed; UnknownBlock stands in for types this build does not know.
type Block interface {
	Header() BlockHeader
	block()
}

type BlockHeader struct {
	Type    BlockType `json:"type"`
	Enabled bool      `json:"enabled"`
	Order   int       `json:"order"`
	Title   string    `json:"title,omitempty"`
}

func (h BlockHeader) Header() BlockHeader { return h }
func (BlockHeader) block()                {}

type IdentificationBlock struct {
	BlockHeader
	ShowCompany        bool `json:"showCompany"`
	ShowGenerationInfo bool `json:"showGenerationInfo"`
}

type ScopeBlock struct {
	BlockHeader
	Text       string `json:"text,omitempty"`
	ShowStages bool   `json:"showStages"`
}

type SystemsBlock struct {
	BlockHeader
	ShowStages    bool `json:"showStages"`
	IncludePhotos bool `json:"includePhotos"`
}

type AnalysesBlock struct {
	BlockHeader
	ShowFieldOverview      bool      `json:"showFieldOverview"`
	ShowFieldDetailed      bool      `json:"showFieldDetailed"`
	ShowLaboratoryOverview bool      `json:"showLaboratoryOverview"`
	ShowLaboratoryDetailed bool      `json:"showLaboratoryDetailed"`
	IncludeCharts          bool      `json:"includeCharts"`
	ChartKind              ChartKind `json:"chartType"`
	ChartColor             string    `json:"chartColor,omitempty"`
	DetailedDateLimit      int       `json:"detailedDateLimit"`
}

type InspectionsBlock struct {
	BlockHeader
	ShowInspectionOverview       bool `json:"showInspectionOverview"`
	ShowInspectionDetailed       bool `json:"showInspectionDetailed"`
	HighlightOnlyNonConformities bool `json:"highlightOnlyNonConformities"`
	IncludePhotos                bool `json:"includePhotos"`
}

// Priority filters accepted by OccurrencesBlock besides a concrete Priority.
const (
	PriorityFilterAll     = "all"
	PriorityFilterHighest = "highest"
)

type OccurrencesBlock struct {
	BlockHeader
	ShowOccurrenceOverview bool   `json:"showOccurrenceOverview"`
	ShowTimeline           bool   `json:"showTimeline"`
	ShowOccurrenceDetailed bool   `json:"showOccurrenceDetailed"`
	IncludePhotos          bool   `json:"includePhotos"`
	PriorityFilter         string `json:"priorityFilter"`
}

type ConclusionBlock struct {
	BlockHeader
	ShowSummary bool `json:"showSummary"`
	ShowAlerts  bool `json:"showAlerts"`
}

type SignatureBlock struct {
	BlockHeader
	ShowDate bool `json:"showDate"`
}

type AttachmentsBlock struct {
	BlockHeader
	Text string `json:"text,omitempty"`
}

// UnknownBlock keeps a block whose type is not recognised. It composes to nothing.
type UnknownBlock struct {
	BlockHeader
}

// DefaultDetailedDateLimit caps the date columns of detailed analysis pivots.
const DefaultDetailedDateLimit = 7

type LogoPosition string

const (
	LogoLeft   LogoPosition = "left"
	LogoCenter LogoPosition = "center"
	LogoRight  LogoPosition = "right"
)

type Branding struct {
	ShowLogo     bool         `json:"showLogo"`
	LogoPosition LogoPosition `json:"logoPosition"`
	HeaderText   string       `json:"headerText,omitempty"`
	ShowFooter   bool         `json:"showFooter"`
	FooterText   string       `json:"footerText,omitempty"`
}

// ReportConfig is an ordered list of blocks plus branding.
type ReportConfig struct {
	Blocks   []Block  `json:"blocks"`
	Branding Branding `json:"branding"`
}

// DefaultConfig is the template used when the caller supplies none.
func DefaultConfig() ReportConfig {
	blocks := make([]Block, 0, 9)
	for i, t := range []BlockType{
		BlockIdentification, BlockScope, BlockSystems, BlockAnalyses, BlockInspections,
		BlockOccurrences, BlockConclusion, BlockSignature, BlockAttachments,
	} {
		blocks = append(blocks, defaultBlock(t, i+1))
	}
	blocks[8] = withEnabled(blocks[8], false)

	return ReportConfig{
		Blocks: blocks,
		Branding: Branding{
			ShowLogo:     true,
			LogoPosition: LogoLeft,
			HeaderText:   "Technical Monitoring Report",
			ShowFooter:   true,
		},
	}
}

func defaultBlock(t BlockType, order int) Block {
	h := BlockHeader{Type: t, Enabled: true, Order: order}
	switch t {
	case BlockIdentification:
		return IdentificationBlock{BlockHeader: h, ShowCompany: true, ShowGenerationInfo: true}
	case BlockScope:
		return ScopeBlock{BlockHeader: h, ShowStages: true}
	case BlockSystems:
		return SystemsBlock{BlockHeader: h, ShowStages: true, IncludePhotos: true}
	case BlockAnalyses:
		return AnalysesBlock{
			BlockHeader:            h,
			ShowFieldOverview:      true,
			ShowFieldDetailed:      true,
			ShowLaboratoryOverview: true,
			IncludeCharts:          true,
			ChartKind:              ChartLine,
			DetailedDateLimit:      DefaultDetailedDateLimit,
		}
	case BlockInspections:
		return InspectionsBlock{BlockHeader: h, ShowInspectionOverview: true}
	case BlockOccurrences:
		return OccurrencesBlock{
			BlockHeader:            h,
			ShowOccurrenceOverview: true,
			ShowTimeline:           true,
			PriorityFilter:         PriorityFilterAll,
		}
	case BlockConclusion:
		return ConclusionBlock{BlockHeader: h, ShowSummary: true, ShowAlerts: true}
	case BlockSignature:
		return SignatureBlock{BlockHeader: h, ShowDate: true}
	case BlockAttachments:
		return AttachmentsBlock{BlockHeader: h}
	}
	return UnknownBlock{BlockHeader: h}
}

func withEnabled(b Block, enabled bool) Block {
	switch v := b.(type) {
	case IdentificationBlock:
		v.Enabled = enabled
		return v
	case ScopeBlock:
		v.Enabled = enabled
		return v
	case SystemsBlock:
		v.Enabled = enabled
		return v
	case AnalysesBlock:
		v.Enabled = enabled
		return v
	case InspectionsBlock:
		v.Enabled = enabled
		return v
	case OccurrencesBlock:
		v.Enabled = enabled
		return v
	case ConclusionBlock:
		v.Enabled = enabled
		return v
	case SignatureBlock:
		v.Enabled = enabled
		return v
	case AttachmentsBlock:
		v.Enabled = enabled
		return v
	case UnknownBlock:
		v.Enabled = enabled
		return v
	}
	return b
}

// EnabledBlocks returns enabled blocks by ascending order. Ties keep template order.
func (c ReportConfig) EnabledBlocks() []Block {
	out := make([]Block, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		if b != nil && b.Header().Enabled {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Header().Order < out[j].Header().Order
	})
	return out
}

// ChartsRequested reports whether any enabled analyses block asks for charts.
func (c ReportConfig) ChartsRequested() bool {
	for _, b := range c.EnabledBlocks() {
		if a, ok := b.(AnalysesBlock); ok && a.IncludeCharts {
			return true
		}
	}
	return false
}

// Normalize replaces invalid sub-option values with their defaults and
// reports each replacement as a configuration defect.
func (c *ReportConfig) Normalize() []Warning {
	var warnings []Warning
	for i, b := range c.Blocks {
		switch v := b.(type) {
		case AnalysesBlock:
			if _, ok := ValidChartKinds[v.ChartKind]; !ok {
				if v.ChartKind != "" {
					warnings = append(warnings, configDefect(v.Type, "unknown chartType %q, using %q", v.ChartKind, ChartLine))
				}
				v.ChartKind = ChartLine
			}
			if v.DetailedDateLimit <= 0 {
				v.DetailedDateLimit = DefaultDetailedDateLimit
			}
			c.Blocks[i] = v
		case OccurrencesBlock:
			switch {
			case v.PriorityFilter == "":
				v.PriorityFilter = PriorityFilterAll
			case v.PriorityFilter == PriorityFilterAll, v.PriorityFilter == PriorityFilterHighest:
			case Priority(v.PriorityFilter).Rank() > 0:
			default:
				warnings = append(warnings, configDefect(v.Type, "unknown priorityFilter %q, using %q", v.PriorityFilter, PriorityFilterAll))
				v.PriorityFilter = PriorityFilterAll
			}
			c.Blocks[i] = v
		}
	}
	switch c.Branding.LogoPosition {
	case LogoLeft, LogoCenter, LogoRight:
	case "":
		c.Branding.LogoPosition = LogoLeft
	default:
		warnings = append(warnings, Warning{
			Kind:    ConfigurationDefect,
			Subject: "branding",
			Message: fmt.Sprintf("unknown logoPosition %q, using %q", c.Branding.LogoPosition, LogoLeft),
		})
		c.Branding.LogoPosition = LogoLeft
	}
	return warnings
}

func configDefect(t BlockType, format string, args ...any) Warning {
	return Warning{Kind: ConfigurationDefect, Subject: string(t), Message: fmt.Sprintf(format, args...)}
}

type rawConfig struct {
	Blocks   []json.RawMessage `json:"blocks"`
	Branding *Branding         `json:"branding"`
}

// ParseConfig decodes a JSON template. Only malformed JSON at the top level is
// an error; a block that cannot be decoded falls back to its type's defaults.
func ParseConfig(data []byte) (ReportConfig, []Warning, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReportConfig{}, nil, fmt.Errorf("decode report config: %w", err)
	}

	cfg := ReportConfig{Branding: DefaultConfig().Branding}
	if raw.Branding != nil {
		cfg.Branding = *raw.Branding
	}

	var warnings []Warning
	for i, msg := range raw.Blocks {
		b, w := decodeBlock(msg, i+1)
		warnings = append(warnings, w...)
		if b != nil {
			cfg.Blocks = append(cfg.Blocks, b)
		}
	}
	warnings = append(warnings, cfg.Normalize()...)
	return cfg, warnings, nil
}

// ParseConfigYAML decodes a YAML template with the same rules as ParseConfig.
func ParseConfigYAML(data []byte) (ReportConfig, []Warning, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ReportConfig{}, nil, fmt.Errorf("decode report config: %w", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return ReportConfig{}, nil, fmt.Errorf("convert report config: %w", err)
	}
	return ParseConfig(js)
}

func decodeBlock(msg json.RawMessage, position int) (Block, []Warning) {
	var head struct {
		Type BlockType `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil || head.Type == "" {
		return nil, []Warning{{Kind: ConfigurationDefect, Subject: fmt.Sprintf("block #%d", position), Message: "block without a type ignored"}}
	}

	def := defaultBlock(head.Type, position)
	// Unmarshal keeps decoding after a type mismatch, so only the mismatched
	// options keep their defaults.
	decoded, err := decodeInto(def, msg)
	if err != nil {
		return decoded, []Warning{configDefect(head.Type, "invalid option ignored, using its default: %v", err)}
	}
	return decoded, nil
}

func decodeInto(def Block, msg json.RawMessage) (Block, error) {
	switch v := def.(type) {
	case IdentificationBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case ScopeBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case SystemsBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case AnalysesBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case InspectionsBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case OccurrencesBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case ConclusionBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case SignatureBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case AttachmentsBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	case UnknownBlock:
		err := json.Unmarshal(msg, &v)
		return v, err
	}
	return def, nil
}
