package pagedata

// PositionPatch holds the coordinates to overwrite. Nil fields are kept.
type PositionPatch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *int     `json:"z,omitempty"`
}

type SizePatch struct {
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

type CanvasPatch struct {
	Background *string `json:"background,omitempty"`
}

// edit runs fn on the element ref points at inside a copy of doc.
func (o *Ops) edit(doc *Document, op string, ref ElementRef, fn func(el *Element)) *Document {
	if doc.Lookup(ref) == nil {
		return miss(doc, op, "id", ref.ID, "child", ref.ChildID)
	}
	out := doc.Clone()
	el := out.Lookup(ref)
	el.ensureMaps()
	fn(el)
	return o.touch(out)
}

func (o *Ops) UpdatePosition(doc *Document, ref ElementRef, mode Breakpoint, patch PositionPatch) *Document {
	return o.edit(doc, "updatePosition", ref, func(el *Element) {
		p := el.PositionAt(mode)
		if patch.X != nil {
			p.X = *patch.X
		}
		if patch.Y != nil {
			p.Y = *patch.Y
		}
		if patch.Z != nil {
			p.Z = *patch.Z
		}
		if el.Type == TypeSection {
			p.X = 0
		}
		el.Position[mode] = p
	})
}

func (o *Ops) UpdateSize(doc *Document, ref ElementRef, mode Breakpoint, patch SizePatch) *Document {
	return o.edit(doc, "updateSize", ref, func(el *Element) {
		s := el.SizeAt(mode)
		if patch.Width != nil {
			s.Width = *patch.Width
		}
		if patch.Height != nil {
			s.Height = *patch.Height
		}
		el.Size[mode] = s
	})
}

// UpdateStyles merges patch into the style bucket of mode. A nil value
// removes the property from that bucket.
func (o *Ops) UpdateStyles(doc *Document, ref ElementRef, mode Breakpoint, patch Styles) *Document {
	return o.edit(doc, "updateStyles", ref, func(el *Element) {
		s := el.ResponsiveStyles[mode].Clone()
		if s == nil {
			s = Styles{}
		}
		for k, v := range patch {
			if v == nil {
				delete(s, k)
				continue
			}
			s[k] = cloneValue(v)
		}
		el.ResponsiveStyles[mode] = s
	})
}

// UpdateComponentData merges patch into the element. Responsive keys land
// in the bucket of mode, the rest are shared by every breakpoint unless a
// bucket visible at mode already overrides them.
func (o *Ops) UpdateComponentData(doc *Document, ref ElementRef, mode Breakpoint, patch ComponentData) *Document {
	return o.edit(doc, "updateComponentData", ref, func(el *Element) {
		rd := el.ResponsiveData[mode].Clone()
		if rd == nil {
			rd = ComponentData{}
		}
		for k, v := range patch {
			dst := el.ComponentData
			if responsiveKeys[k] || overridden(el, mode, k) {
				dst = rd
			}
			if v == nil {
				delete(dst, k)
				continue
			}
			dst[k] = cloneValue(v)
		}
		if len(rd) > 0 {
			el.ResponsiveData[mode] = rd
		} else {
			delete(el.ResponsiveData, mode)
		}
	})
}

// overridden reports whether a per-breakpoint bucket in the cascade of mode
// holds key, so a shared value would stay hidden at mode.
func overridden(el *Element, mode Breakpoint, key string) bool {
	for _, bp := range cascade(mode) {
		if _, ok := el.ResponsiveData[bp][key]; ok {
			return true
		}
	}
	return false
}

func (o *Ops) ToggleVisibility(doc *Document, ref ElementRef) *Document {
	return o.edit(doc, "toggleVisibility", ref, func(el *Element) {
		el.Visible = !el.Visible
	})
}

func (o *Ops) ToggleLock(doc *Document, ref ElementRef) *Document {
	return o.edit(doc, "toggleLock", ref, func(el *Element) {
		el.Locked = !el.Locked
	})
}

// SyncElement rewrites the other breakpoints of one element from mode.
func (o *Ops) SyncElement(doc *Document, ref ElementRef, mode Breakpoint) *Document {
	return o.edit(doc, "syncElement", ref, func(el *Element) {
		*el = *SyncElementBetweenModes(el, mode)
	})
}

// TogglePopup shows or hides an overlay in the preview.
func (o *Ops) TogglePopup(doc *Document, popupID string) *Document {
	el := doc.Find(popupID)
	if el == nil || !el.Type.IsOverlay() {
		return miss(doc, "togglePopup", "id", popupID)
	}
	out := doc.Clone()
	for i, id := range out.VisiblePopups {
		if id == popupID {
			out.VisiblePopups = append(out.VisiblePopups[:i], out.VisiblePopups[i+1:]...)
			return o.touch(out)
		}
	}
	out.VisiblePopups = append(out.VisiblePopups, popupID)
	return o.touch(out)
}

func (o *Ops) UpdateCanvas(doc *Document, patch CanvasPatch) *Document {
	out := doc.Clone()
	if patch.Background != nil {
		out.Canvas.Background = *patch.Background
	}
	return o.touch(out)
}

// ChangeViewMode resizes the canvas for mode and fills in the mode's
// buckets of elements that have never been laid out there. Stored values
// of other breakpoints are not touched.
func (o *Ops) ChangeViewMode(doc *Document, mode Breakpoint) *Document {
	if !mode.Valid() {
		return miss(doc, "changeViewMode", "mode", mode)
	}
	out := doc.Clone()
	out.Canvas.Width = mode.CanvasWidth()
	for _, top := range out.Elements {
		top.Walk(func(el *Element) {
			el.ensureMaps()
			if _, ok := el.Size[mode]; !ok {
				size := ScaleSize(el, Desktop, mode)
				el.Size[mode] = size
				el.Position[mode] = ScalePosition(el, Desktop, mode, size)
				if _, ok := el.ResponsiveStyles[mode]; !ok && mode != Desktop {
					el.ResponsiveStyles[mode] = ScaleStyles(el.ResponsiveStyles[Desktop], Desktop, mode)
				}
			}
			if el.Type == TypeSection {
				s := el.SizeAt(mode)
				s.Width = float64(mode.CanvasWidth())
				el.Size[mode] = s
				p := el.PositionAt(mode)
				p.X = 0
				el.Position[mode] = p
			}
		})
	}
	return o.touch(out)
}
