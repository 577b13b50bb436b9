package pagedata

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// CanvasHeight is either a pixel value or "auto".
type CanvasHeight struct {
	Auto  bool
	Value float64
}

func AutoHeight() CanvasHeight { return CanvasHeight{Auto: true} }

func Height(v float64) CanvasHeight { return CanvasHeight{Value: v} }

// Px is the height used by growth rules; "auto" counts as 0.
func (h CanvasHeight) Px() float64 {
	if h.Auto {
		return 0
	}
	return h.Value
}

func (h CanvasHeight) MarshalJSON() ([]byte, error) {
	if h.Auto {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.FormatFloat(h.Value, 'f', -1, 64)), nil
}

func (h *CanvasHeight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*h = CanvasHeight{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" || s == "auto" {
			*h = AutoHeight()
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*h = AutoHeight()
			return nil
		}
		*h = Height(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*h = Height(v)
	return nil
}

type Canvas struct {
	Width      int          `json:"width"`
	Height     CanvasHeight `json:"height"`
	Background string       `json:"background,omitempty"`
}

type Meta struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the page data edited in a session.
type Document struct {
	Canvas        Canvas     `json:"canvas"`
	Elements      []*Element `json:"elements"`
	Meta          Meta       `json:"meta"`
	VisiblePopups []string   `json:"visiblePopups,omitempty"`
}

// NewDocument returns an empty desktop page.
func NewDocument(now time.Time) *Document {
	return &Document{
		Canvas:   Canvas{Width: Desktop.CanvasWidth(), Height: Height(0), Background: "#ffffff"},
		Elements: []*Element{},
		Meta:     Meta{CreatedAt: now, UpdatedAt: now},
	}
}

// Decode reads a page document from JSON. An empty payload yields an empty
// page.
func Decode(data []byte, now time.Time) (*Document, error) {
	doc := NewDocument(now)
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Canvas.Width == 0 {
		doc.Canvas.Width = Desktop.CanvasWidth()
	}
	if doc.Elements == nil {
		doc.Elements = []*Element{}
	}
	return doc, nil
}

// ViewMode is the breakpoint the canvas is currently sized for.
func (d *Document) ViewMode() Breakpoint {
	return BreakpointForWidth(d.Canvas.Width)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Canvas:   d.Canvas,
		Meta:     d.Meta,
		Elements: make([]*Element, len(d.Elements)),
	}
	for i, el := range d.Elements {
		out.Elements[i] = el.Clone()
	}
	if d.VisiblePopups != nil {
		out.VisiblePopups = append([]string(nil), d.VisiblePopups...)
	}
	return out
}

// Find returns the element with id anywhere in the tree.
func (d *Document) Find(id string) *Element {
	return findIn(d.Elements, id)
}

// Contains reports whether id exists anywhere in the tree.
func (d *Document) Contains(id string) bool {
	return d.Find(id) != nil
}

// Lookup resolves ref to an element.
func (d *Document) Lookup(ref ElementRef) *Element {
	parent := d.Find(ref.ID)
	if parent == nil || ref.ChildID == "" {
		return parent
	}
	for _, c := range parent.Children {
		if c.ID == ref.ChildID {
			return c
		}
	}
	return nil
}

func (d *Document) indexOf(id string) int {
	for i, el := range d.Elements {
		if el.ID == id {
			return i
		}
	}
	return -1
}

// SectionCount counts top-level sections.
func (d *Document) SectionCount() int {
	n := 0
	for _, el := range d.Elements {
		if el.Type == TypeSection {
			n++
		}
	}
	return n
}

// ElementRef addresses an element, or one of its children when ChildID is set.
type ElementRef struct {
	ID      string `json:"id" validate:"required"`
	ChildID string `json:"childId,omitempty"`
}
