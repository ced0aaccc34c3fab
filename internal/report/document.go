package report

import (
	"encoding/json"
	"time"
)

type SectionKind string

const (
	KindHeading   SectionKind = "heading"
	KindParagraph SectionKind = "paragraph"
	KindTable     SectionKind = "table"
	KindImage     SectionKind = "image"
)

// Section is one unit of a composed document: Heading, Paragraph, Table or Image.
type Section interface {
	Kind() SectionKind
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

type ParagraphStyle string

const (
	StyleNormal    ParagraphStyle = "normal"
	StyleBullet    ParagraphStyle = "bullet"
	StyleAlert     ParagraphStyle = "alert"
	StyleCaption   ParagraphStyle = "caption"
	StyleNoData    ParagraphStyle = "no_data"
	StyleSignature ParagraphStyle = "signature"
)

type Paragraph struct {
	Text  string         `json:"text"`
	Style ParagraphStyle `json:"style"`
}

// Table is a grid of pre-formatted cells. HighlightRows indexes rows that need
// visual emphasis (out of range, non-compliant).
type Table struct {
	Title         string     `json:"title,omitempty"`
	Columns       []string   `json:"columns"`
	Rows          [][]string `json:"rows"`
	HighlightRows []int      `json:"highlight_rows,omitempty"`
}

type Image struct {
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
	Caption     string `json:"caption,omitempty"`
	Source      string `json:"source,omitempty"`
}

func (Heading) Kind() SectionKind   { return KindHeading }
func (Paragraph) Kind() SectionKind { return KindParagraph }
func (Table) Kind() SectionKind     { return KindTable }
func (Image) Kind() SectionKind     { return KindImage }

func (h Heading) MarshalJSON() ([]byte, error) {
	type alias Heading
	return json.Marshal(struct {
		Kind SectionKind `json:"kind"`
		alias
	}{KindHeading, alias(h)})
}

func (p Paragraph) MarshalJSON() ([]byte, error) {
	type alias Paragraph
	return json.Marshal(struct {
		Kind SectionKind `json:"kind"`
		alias
	}{KindParagraph, alias(p)})
}

func (t Table) MarshalJSON() ([]byte, error) {
	type alias Table
	return json.Marshal(struct {
		Kind SectionKind `json:"kind"`
		alias
	}{KindTable, alias(t)})
}

func (i Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return json.Marshal(struct {
		Kind SectionKind `json:"kind"`
		alias
	}{KindImage, alias(i)})
}

type DocumentHeader struct {
	Text         string       `json:"text,omitempty"`
	LogoPosition LogoPosition `json:"logo_position,omitempty"`
	Logo         []byte       `json:"logo,omitempty"`
}

type DocumentFooter struct {
	Show bool   `json:"show"`
	Text string `json:"text,omitempty"`
}

// Document is the composed report body plus the header and footer an
// external serializer lays out on every page.
type Document struct {
	Header      DocumentHeader `json:"header"`
	Footer      DocumentFooter `json:"footer"`
	Sections    []Section      `json:"sections"`
	GeneratedAt time.Time      `json:"generated_at"`
}
