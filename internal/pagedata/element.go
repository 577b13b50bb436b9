package pagedata

import (
	"encoding/json"
	"fmt"
)

type ElementType string

const (
	TypeSection   ElementType = "section"
	TypePopup     ElementType = "popup"
	TypeModal     ElementType = "modal"
	TypeHeading   ElementType = "heading"
	TypeParagraph ElementType = "paragraph"
	TypeButton    ElementType = "button"
	TypeIcon      ElementType = "icon"
	TypeImage     ElementType = "image"
	TypeGallery   ElementType = "gallery"
	TypeGroup     ElementType = "group"
	TypeLine      ElementType = "line"
	TypeVideo     ElementType = "video"
	TypeForm      ElementType = "form"
)

var knownTypes = map[ElementType]bool{
	TypeSection: true, TypePopup: true, TypeModal: true, TypeHeading: true,
	TypeParagraph: true, TypeButton: true, TypeIcon: true, TypeImage: true,
	TypeGallery: true, TypeGroup: true, TypeLine: true, TypeVideo: true, TypeForm: true,
}

func (t ElementType) Valid() bool { return knownTypes[t] }

// IsOverlay reports whether elements of this type float above the page
// and keep a breakpoint-stable position.
func (t ElementType) IsOverlay() bool { return t == TypePopup || t == TypeModal }

// IsContainer reports whether the type may hold children.
func (t ElementType) IsContainer() bool {
	return t == TypeSection || t == TypeGroup || t.IsOverlay()
}

// Position is an element origin. Z of 0 means "not set".
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z int     `json:"z,omitempty"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var defaultSizes = map[ElementType]Size{
	TypeSection:   {Width: 1200, Height: 400},
	TypePopup:     {Width: 600, Height: 400},
	TypeModal:     {Width: 600, Height: 400},
	TypeHeading:   {Width: 400, Height: 60},
	TypeParagraph: {Width: 400, Height: 100},
	TypeButton:    {Width: 160, Height: 48},
	TypeIcon:      {Width: 48, Height: 48},
	TypeImage:     {Width: 300, Height: 200},
	TypeGallery:   {Width: 600, Height: 400},
	TypeGroup:     {Width: 300, Height: 200},
	TypeLine:      {Width: 300, Height: 2},
	TypeVideo:     {Width: 560, Height: 315},
	TypeForm:      {Width: 400, Height: 300},
}

// DefaultSize is the size given to a new element that carries none.
func DefaultSize(t ElementType) Size {
	if s, ok := defaultSizes[t]; ok {
		return s
	}
	return Size{Width: 200, Height: 100}
}

// Styles is a CSS-like declaration block keyed by camelCase property name.
type Styles map[string]any

func (s Styles) Clone() Styles {
	if s == nil {
		return nil
	}
	out := make(Styles, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Element is a node of the page tree.
//
// Position and Size hold one entry per breakpoint. ResponsiveStyles and
// ResponsiveData hold per-breakpoint overrides that cascade desktop, tablet,
// mobile; Styles is the legacy flat block and is folded into the desktop
// bucket on normalization. ComponentData keeps the keys shared by every
// breakpoint.
type Element struct {
	ID               string                       `json:"id"`
	Type             ElementType                  `json:"type"`
	Position         map[Breakpoint]Position      `json:"position"`
	Size             map[Breakpoint]Size          `json:"size"`
	Styles           Styles                       `json:"styles,omitempty"`
	ResponsiveStyles map[Breakpoint]Styles        `json:"responsiveStyles,omitempty"`
	ComponentData    ComponentData                `json:"componentData,omitempty"`
	ResponsiveData   map[Breakpoint]ComponentData `json:"responsiveData,omitempty"`
	Visible          bool                         `json:"visible"`
	Locked           bool                         `json:"locked"`
	Children         []*Element                   `json:"children,omitempty"`
}

// NewElement returns a visible, unlocked element with empty buckets.
func NewElement(id string, t ElementType) *Element {
	return &Element{
		ID:       id,
		Type:     t,
		Position: map[Breakpoint]Position{},
		Size:     map[Breakpoint]Size{},
		Visible:  true,
	}
}

// Clone returns a deep copy of the element and its subtree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		ID:            e.ID,
		Type:          e.Type,
		Styles:        e.Styles.Clone(),
		ComponentData: e.ComponentData.Clone(),
		Visible:       e.Visible,
		Locked:        e.Locked,
	}
	if e.Position != nil {
		out.Position = make(map[Breakpoint]Position, len(e.Position))
		for bp, p := range e.Position {
			out.Position[bp] = p
		}
	}
	if e.Size != nil {
		out.Size = make(map[Breakpoint]Size, len(e.Size))
		for bp, s := range e.Size {
			out.Size[bp] = s
		}
	}
	if e.ResponsiveStyles != nil {
		out.ResponsiveStyles = make(map[Breakpoint]Styles, len(e.ResponsiveStyles))
		for bp, s := range e.ResponsiveStyles {
			out.ResponsiveStyles[bp] = s.Clone()
		}
	}
	if e.ResponsiveData != nil {
		out.ResponsiveData = make(map[Breakpoint]ComponentData, len(e.ResponsiveData))
		for bp, cd := range e.ResponsiveData {
			out.ResponsiveData[bp] = cd.Clone()
		}
	}
	if e.Children != nil {
		out.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// SizeAt resolves the size at bp through the override cascade, falling
// back to the type default.
func (e *Element) SizeAt(bp Breakpoint) Size {
	chain := cascade(bp)
	for i := len(chain) - 1; i >= 0; i-- {
		if s, ok := e.Size[chain[i]]; ok {
			return s
		}
	}
	return DefaultSize(e.Type)
}

// PositionAt resolves the position at bp through the override cascade.
func (e *Element) PositionAt(bp Breakpoint) Position {
	chain := cascade(bp)
	for i := len(chain) - 1; i >= 0; i-- {
		if p, ok := e.Position[chain[i]]; ok {
			return p
		}
	}
	return Position{}
}

// Find returns the element with id inside this subtree, e included.
func (e *Element) Find(id string) *Element {
	if e == nil {
		return nil
	}
	if e.ID == id {
		return e
	}
	return findIn(e.Children, id)
}

// Walk visits e and every descendant depth first.
func (e *Element) Walk(fn func(*Element)) {
	if e == nil {
		return
	}
	fn(e)
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

func (e *Element) ensureMaps() {
	if e.Position == nil {
		e.Position = map[Breakpoint]Position{}
	}
	if e.Size == nil {
		e.Size = map[Breakpoint]Size{}
	}
	if e.ResponsiveStyles == nil {
		e.ResponsiveStyles = map[Breakpoint]Styles{}
	}
	if e.ResponsiveData == nil {
		e.ResponsiveData = map[Breakpoint]ComponentData{}
	}
	if e.ComponentData == nil {
		e.ComponentData = ComponentData{}
	}
}

func findIn(elements []*Element, id string) *Element {
	for _, el := range elements {
		if found := el.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// UnmarshalJSON accepts both the normalized per-breakpoint shape and the
// legacy flat one (single size/position/styles record, tabletSize and
// mobileSize side fields). Missing "visible" means visible.
func (e *Element) UnmarshalJSON(data []byte) error {
	type alias Element
	var raw struct {
		alias
		Position   json.RawMessage `json:"position"`
		Size       json.RawMessage `json:"size"`
		Styles     json.RawMessage `json:"styles"`
		Visible    *bool           `json:"visible"`
		TabletSize *Size           `json:"tabletSize"`
		MobileSize *Size           `json:"mobileSize"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Element(raw.alias)
	e.Visible = raw.Visible == nil || *raw.Visible

	var err error
	if e.Position, err = decodeBuckets[Position](raw.Position); err != nil {
		return fmt.Errorf("element %s position: %w", e.ID, err)
	}
	if e.Size, err = decodeBuckets[Size](raw.Size); err != nil {
		return fmt.Errorf("element %s size: %w", e.ID, err)
	}
	if raw.TabletSize != nil {
		e.Size[Tablet] = *raw.TabletSize
	}
	if raw.MobileSize != nil {
		e.Size[Mobile] = *raw.MobileSize
	}
	if err := e.decodeStyles(raw.Styles); err != nil {
		return fmt.Errorf("element %s styles: %w", e.ID, err)
	}
	return nil
}

// decodeBuckets reads either {"desktop": {...}, ...} or a single flat
// record, which is filed under desktop.
func decodeBuckets[T any](raw json.RawMessage) (map[Breakpoint]T, error) {
	out := map[Breakpoint]T{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, err
	}
	if !hasBreakpointKey(keyed) {
		var flat T
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, err
		}
		out[Desktop] = flat
		return out, nil
	}
	for k, v := range keyed {
		bp := Breakpoint(k)
		if !bp.Valid() {
			continue
		}
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, err
		}
		out[bp] = item
	}
	return out, nil
}

func (e *Element) decodeStyles(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return err
	}
	if !hasBreakpointKey(keyed) {
		return json.Unmarshal(raw, &e.Styles)
	}
	if e.ResponsiveStyles == nil {
		e.ResponsiveStyles = map[Breakpoint]Styles{}
	}
	for k, v := range keyed {
		bp := Breakpoint(k)
		if !bp.Valid() {
			continue
		}
		var s Styles
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if existing, ok := e.ResponsiveStyles[bp]; ok {
			for name, val := range existing {
				if s == nil {
					s = Styles{}
				}
				s[name] = val
			}
		}
		e.ResponsiveStyles[bp] = s
	}
	return nil
}

func hasBreakpointKey(m map[string]json.RawMessage) bool {
	for k := range m {
		if Breakpoint(k).Valid() {
			return true
		}
	}
	return false
}
