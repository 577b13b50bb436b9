package pagedata

import "reflect"

// Resolved is the projection of an element at one breakpoint.
type Resolved struct {
	Size          Size          `json:"size"`
	Position      Position      `json:"position"`
	Styles        Styles        `json:"styles"`
	ComponentData ComponentData `json:"componentData"`
}

// GetResponsiveValues merges the desktop base with the tablet and mobile
// overrides that apply to view. It never mutates el and always returns
// fresh maps.
func GetResponsiveValues(el *Element, view Breakpoint) Resolved {
	r := Resolved{
		Size:          el.SizeAt(view),
		Position:      el.PositionAt(view),
		Styles:        Styles{},
		ComponentData: ComponentData{},
	}
	for k, v := range el.Styles {
		r.Styles[k] = cloneValue(v)
	}
	for k, v := range el.ComponentData {
		r.ComponentData[k] = cloneValue(v)
	}
	for _, bp := range cascade(view) {
		for k, v := range el.ResponsiveStyles[bp] {
			r.Styles[k] = cloneValue(v)
		}
		for k, v := range el.ResponsiveData[bp] {
			r.ComponentData[k] = cloneValue(v)
		}
	}
	return r
}

// InitializeResponsiveData brings an element loaded in the flat legacy
// shape into the per-breakpoint shape. Already normalized elements are
// returned as is, so the function is a fixed point.
func InitializeResponsiveData(el *Element) *Element {
	if el == nil || !needsInit(el) {
		return el
	}
	out := el.Clone()
	initTree(out)
	return out
}

func isNormalized(el *Element) bool {
	if _, ok := el.Size[Desktop]; !ok {
		return false
	}
	if _, ok := el.ResponsiveStyles[Desktop]; !ok {
		return false
	}
	for _, bp := range Breakpoints {
		if _, ok := el.Position[bp]; !ok {
			return false
		}
	}
	return true
}

func needsInit(el *Element) bool {
	if !isNormalized(el) {
		return true
	}
	for _, c := range el.Children {
		if needsInit(c) {
			return true
		}
	}
	return false
}

func initTree(el *Element) {
	if !isNormalized(el) {
		initElement(el)
	}
	for _, c := range el.Children {
		initTree(c)
	}
}

func initElement(el *Element) {
	el.ensureMaps()

	if _, ok := el.Size[Desktop]; !ok {
		el.Size[Desktop] = DefaultSize(el.Type)
	}

	z := defaultZ
	if el.Type.IsOverlay() {
		z = overlayZ
	}
	base := el.Position[Desktop]
	for _, bp := range Breakpoints {
		p, ok := el.Position[bp]
		if !ok {
			p = base
		}
		p.Z = zOr(p.Z, z)
		if el.Type == TypeSection {
			p.X = 0
		}
		el.Position[bp] = p
	}

	desktop := Styles{}
	for k, v := range el.Styles {
		desktop[k] = v
	}
	for k, v := range el.ResponsiveStyles[Desktop] {
		desktop[k] = v
	}
	el.ResponsiveStyles[Desktop] = desktop
	el.Styles = nil

	global, responsive := el.ComponentData.Split()
	el.ComponentData = global
	if len(responsive) > 0 {
		rd := el.ResponsiveData[Desktop]
		if rd == nil {
			rd = ComponentData{}
		}
		for k, v := range responsive {
			if _, set := rd[k]; !set {
				rd[k] = v
			}
		}
		el.ResponsiveData[Desktop] = rd
	}
}

// SyncElementBetweenModes treats changed as ground truth and rewrites the
// other two breakpoints of el and its subtree from it.
func SyncElementBetweenModes(el *Element, changed Breakpoint) *Element {
	if el == nil {
		return nil
	}
	out := el.Clone()
	syncTree(out, changed)
	return out
}

type bucket struct {
	size     Size
	position Position
	styles   Styles
	data     ComponentData
}

func syncTree(el *Element, from Breakpoint) {
	el.ensureMaps()
	src := GetResponsiveValues(el, from)
	el.Size[from] = src.Size
	el.Position[from] = src.Position

	// Every target is derived before any is written: overlays read their
	// desktop width while scaling.
	targets := map[Breakpoint]bucket{}
	for _, bp := range Breakpoints {
		if bp == from {
			continue
		}
		size := ScaleSize(el, from, bp)
		targets[bp] = bucket{
			size:     size,
			position: ScalePosition(el, from, bp, size),
			styles:   ScaleStyles(src.Styles, from, bp),
			data:     responsivePart(src.ComponentData, ScaleComponentData(src.ComponentData, bp)),
		}
	}
	for bp, b := range targets {
		el.Size[bp] = b.size
		el.Position[bp] = b.position
		el.ResponsiveStyles[bp] = b.styles
		if len(b.data) > 0 {
			el.ResponsiveData[bp] = b.data
		} else {
			delete(el.ResponsiveData, bp)
		}
	}

	for _, c := range el.Children {
		syncTree(c, from)
	}
}

// responsivePart keeps the keys that belong in a per-breakpoint bucket:
// responsive keys and anything the scaler changed.
func responsivePart(src, scaled ComponentData) ComponentData {
	out := ComponentData{}
	for k, v := range scaled {
		old, had := src[k]
		if responsiveKeys[k] || !had || !reflect.DeepEqual(old, v) {
			out[k] = v
		}
	}
	return out
}
