package messages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/agent-chat/pkg/decode"
)

// ContentType tags the variant carried by a RichContent.
type ContentType string

const (
	ContentTable    ContentType = "table"
	ContentChart    ContentType = "chart"
	ContentCards    ContentType = "cards"
	ContentList     ContentType = "list"
	ContentTimeline ContentType = "timeline"
	ContentText     ContentType = "text"
)

// ContentTypes lists every variant in declaration order.
var ContentTypes = []ContentType{
	ContentTable, ContentChart, ContentCards, ContentList, ContentTimeline, ContentText,
}

// RichContent is a closed tagged union of presentation payloads.
// Exactly one variant pointer is set and it matches Type.
//
// On the wire it is encoded as {"type": ..., "summary": ..., "data": {...}}.
type RichContent struct {
	Type     ContentType
	Summary  string
	Table    *Table
	Chart    *Chart
	Cards    *Cards
	List     *List
	Timeline *Timeline
	Text     *Text
}

type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type Chart struct {
	Kind   string   `json:"kind"`
	Series []Series `json:"series"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type Cards struct {
	Cards []Card `json:"cards"`
}

type Card struct {
	Title    string            `json:"title"`
	Subtitle string            `json:"subtitle,omitempty"`
	Body     string            `json:"body,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

type List struct {
	Ordered bool     `json:"ordered,omitempty"`
	Items   []string `json:"items"`
}

type Timeline struct {
	Events []TimelineEvent `json:"events"`
}

type TimelineEvent struct {
	Label  string `json:"label"`
	Date   string `json:"date"`
	Detail string `json:"detail,omitempty"`
}

type Text struct {
	Text string `json:"text"`
}

var chartKinds = map[string]bool{"bar": true, "line": true, "pie": true, "area": true}

// NewText builds a text variant.
func NewText(text, summary string) *RichContent {
	return &RichContent{Type: ContentText, Summary: summary, Text: &Text{Text: text}}
}

// ParseRich decodes a loosely typed agent payload into a validated RichContent.
func ParseRich(contentType ContentType, data map[string]any, summary string) (*RichContent, error) {
	rc := &RichContent{Type: contentType, Summary: summary}

	var err error
	switch contentType {
	case ContentTable:
		rc.Table, err = decodeVariant[Table](data)
	case ContentChart:
		rc.Chart, err = decodeVariant[Chart](data)
	case ContentCards:
		rc.Cards, err = decodeVariant[Cards](data)
	case ContentList:
		rc.List, err = decodeVariant[List](data)
	case ContentTimeline:
		rc.Timeline, err = decodeVariant[Timeline](data)
	case ContentText:
		rc.Text, err = decodeVariant[Text](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRich, contentType, err)
	}

	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

func decodeVariant[T any](data map[string]any) (*T, error) {
	v, err := decode.FromMap[T](data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate enforces the required fields of the active variant.
func (rc *RichContent) Validate() error {
	if err := rc.checkTag(); err != nil {
		return err
	}

	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidRich, rc.Type, fmt.Sprintf(format, args...))
	}

	switch rc.Type {
	case ContentTable:
		if len(rc.Table.Columns) == 0 {
			return invalid("columns required")
		}
		for i, row := range rc.Table.Rows {
			if len(row) != len(rc.Table.Columns) {
				return invalid("row %d has %d cells, want %d", i, len(row), len(rc.Table.Columns))
			}
		}
	case ContentChart:
		if !chartKinds[rc.Chart.Kind] {
			return invalid("kind %q must be bar, line, pie, or area", rc.Chart.Kind)
		}
		if len(rc.Chart.Series) == 0 {
			return invalid("series required")
		}
		for i, s := range rc.Chart.Series {
			if s.Name == "" {
				return invalid("series %d name required", i)
			}
			if len(s.Points) == 0 {
				return invalid("series %q has no points", s.Name)
			}
		}
	case ContentCards:
		if len(rc.Cards.Cards) == 0 {
			return invalid("cards required")
		}
		for i, c := range rc.Cards.Cards {
			if strings.TrimSpace(c.Title) == "" {
				return invalid("card %d title required", i)
			}
		}
	case ContentList:
		if len(rc.List.Items) == 0 {
			return invalid("items required")
		}
	case ContentTimeline:
		if len(rc.Timeline.Events) == 0 {
			return invalid("events required")
		}
		for i, e := range rc.Timeline.Events {
			if e.Label == "" || e.Date == "" {
				return invalid("event %d requires label and date", i)
			}
		}
	case ContentText:
		if strings.TrimSpace(rc.Text.Text) == "" {
			return invalid("text required")
		}
	}
	return nil
}

// checkTag verifies exactly one variant is set and it matches Type.
func (rc *RichContent) checkTag() error {
	set := map[ContentType]bool{
		ContentTable:    rc.Table != nil,
		ContentChart:    rc.Chart != nil,
		ContentCards:    rc.Cards != nil,
		ContentList:     rc.List != nil,
		ContentTimeline: rc.Timeline != nil,
		ContentText:     rc.Text != nil,
	}

	active, known := set[rc.Type]
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownContentType, rc.Type)
	}
	if !active {
		return fmt.Errorf("%w: %s payload missing", ErrInvalidRich, rc.Type)
	}
	for t, ok := range set {
		if ok && t != rc.Type {
			return fmt.Errorf("%w: %s carries %s payload", ErrInvalidRich, rc.Type, t)
		}
	}
	return nil
}

// Data returns the active variant.
func (rc *RichContent) Data() any {
	switch rc.Type {
	case ContentTable:
		return rc.Table
	case ContentChart:
		return rc.Chart
	case ContentCards:
		return rc.Cards
	case ContentList:
		return rc.List
	case ContentTimeline:
		return rc.Timeline
	case ContentText:
		return rc.Text
	default:
		return nil
	}
}

type richWire struct {
	Type    ContentType     `json:"type"`
	Summary string          `json:"summary,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (rc RichContent) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(rc.Data())
	if err != nil {
		return nil, err
	}
	return json.Marshal(richWire{Type: rc.Type, Summary: rc.Summary, Data: data})
}

func (rc *RichContent) UnmarshalJSON(b []byte) error {
	var w richWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	out := RichContent{Type: w.Type, Summary: w.Summary}

	var err error
	switch w.Type {
	case ContentTable:
		out.Table, err = unmarshalVariant[Table](w.Data)
	case ContentChart:
		out.Chart, err = unmarshalVariant[Chart](w.Data)
	case ContentCards:
		out.Cards, err = unmarshalVariant[Cards](w.Data)
	case ContentList:
		out.List, err = unmarshalVariant[List](w.Data)
	case ContentTimeline:
		out.Timeline, err = unmarshalVariant[Timeline](w.Data)
	case ContentText:
		out.Text, err = unmarshalVariant[Text](w.Data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContentType, w.Type)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRich, w.Type, err)
	}

	*rc = out
	return nil
}

func unmarshalVariant[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return &v, nil
}
