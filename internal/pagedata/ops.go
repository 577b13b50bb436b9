package pagedata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pagebuilder/pkg/logger"

	"github.com/google/uuid"
)

// Ops applies edits to page documents. Every method leaves its input
// untouched and returns a new document; the input itself is returned when
// the edit does not apply.
type Ops struct {
	Clock func() time.Time
}

func NewOps() *Ops {
	return &Ops{Clock: time.Now}
}

// Now is the time stamped on edited documents.
func (o *Ops) Now() time.Time {
	if o == nil || o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

func (o *Ops) touch(doc *Document) *Document {
	doc.Meta.UpdatedAt = o.Now()
	return doc
}

func miss(doc *Document, op string, kv ...any) *Document {
	logger.Sugar.Debugw("page edit skipped: target not found", append([]any{"op", op}, kv...)...)
	return doc
}

// idAllocator hands out ids that are unique within one document.
type idAllocator struct {
	now   time.Time
	taken map[string]bool
}

func (o *Ops) ids(doc *Document) *idAllocator {
	a := &idAllocator{now: o.Now(), taken: map[string]bool{}}
	for _, el := range doc.Elements {
		el.Walk(func(e *Element) { a.taken[e.ID] = true })
	}
	return a
}

func (a *idAllocator) next(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, a.now.UnixMilli())
	for a.taken[id] {
		id = fmt.Sprintf("%s-%d-%s", prefix, a.now.UnixMilli(), uuid.NewString()[:8])
	}
	a.taken[id] = true
	return id
}

// claim keeps id when it is free and replaces it otherwise.
func (a *idAllocator) claim(el *Element) {
	if el.ID == "" || a.taken[el.ID] {
		el.ID = a.next(string(el.Type))
		return
	}
	a.taken[el.ID] = true
}

func (a *idAllocator) claimTree(el *Element) {
	el.Walk(a.claim)
}

// bottomAt is the lowest edge of the top-level sections at bp.
func bottomAt(doc *Document, bp Breakpoint) float64 {
	bottom := 0.0
	for _, el := range doc.Elements {
		if el.Type != TypeSection {
			continue
		}
		bottom = math.Max(bottom, el.PositionAt(bp).Y+el.SizeAt(bp).Height)
	}
	return bottom
}

// restack lays the top-level sections out end to end in array order on
// every breakpoint and returns the stacked height at view.
func restack(doc *Document, view Breakpoint) float64 {
	total := 0.0
	for _, bp := range Breakpoints {
		y := 0.0
		for _, el := range doc.Elements {
			if el.Type != TypeSection {
				continue
			}
			el.ensureMaps()
			p := el.PositionAt(bp)
			p.X, p.Y = 0, y
			el.Position[bp] = p
			y += el.SizeAt(bp).Height
		}
		if bp == view {
			total = y
		}
	}
	return total
}

func (o *Ops) grow(doc *Document, bottom float64) {
	if bottom > doc.Canvas.Height.Px() {
		doc.Canvas.Height = Height(bottom)
	}
}

// AddSection appends a section built from tmpl below the lowest section.
func (o *Ops) AddSection(doc *Document, tmpl *Element, mode Breakpoint) *Document {
	if tmpl == nil {
		return miss(doc, "addSection")
	}
	out := doc.Clone()
	ids := o.ids(out)

	sec := tmpl.Clone()
	sec.Type = TypeSection
	sec = InitializeResponsiveData(sec)
	ids.claimTree(sec)

	y := bottomAt(out, mode)
	height := sec.SizeAt(mode).Height
	sec.Size[mode] = Size{Width: float64(mode.CanvasWidth()), Height: height}
	sec.Position[mode] = Position{X: 0, Y: y, Z: zOr(sec.PositionAt(mode).Z, defaultZ)}
	sec = SyncElementBetweenModes(sec, mode)

	out.Elements = append(out.Elements, sec)
	o.grow(out, y+height)
	return o.touch(out)
}

// AddElement appends a non-section element below the last section, or
// centers it when it is an overlay. Sections are routed to AddSection.
func (o *Ops) AddElement(doc *Document, el *Element, mode Breakpoint) *Document {
	if el == nil {
		return miss(doc, "addElement")
	}
	if el.Type == TypeSection {
		return o.AddSection(doc, el, mode)
	}
	out := doc.Clone()
	ids := o.ids(out)
	add := InitializeResponsiveData(el.Clone())
	ids.claimTree(add)

	size := add.SizeAt(mode)
	pos := add.PositionAt(mode)

	if add.Type.IsOverlay() {
		overlays := 0
		for _, e := range out.Elements {
			if e.Type.IsOverlay() {
				overlays++
			}
		}
		add.Size[mode] = size
		add.Position[mode] = Position{Y: pos.Y, Z: overlayZ + overlays}
		add = SyncElementBetweenModes(add, mode)
		for _, bp := range Breakpoints {
			p := add.Position[bp]
			p.X = math.Max(0, math.Round((float64(bp.CanvasWidth())-add.SizeAt(bp).Width)/2))
			add.Position[bp] = p
		}
		out.Elements = append(out.Elements, add)
		return o.touch(out)
	}

	y := 0.0
	for i := len(out.Elements) - 1; i >= 0; i-- {
		last := out.Elements[i]
		if last.Type != TypeSection {
			continue
		}
		r := GetResponsiveValues(last, mode)
		y = r.Position.Y + r.Size.Height + pxValue(r.Styles["marginBottom"])
		break
	}
	add.Size[mode] = size
	add.Position[mode] = Position{X: pos.X, Y: y, Z: zOr(pos.Z, defaultZ)}
	add = SyncElementBetweenModes(add, mode)

	out.Elements = append(out.Elements, add)
	o.grow(out, y+size.Height)
	return o.touch(out)
}

// pxValue reads a leading numeric value from a style value such as
// "24px" or 24. Anything else is 0.
func pxValue(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	m := unitToken.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[2] != "px" {
		return 0
	}
	f, _ := strconv.ParseFloat(m[1], 64)
	return f
}

// locate finds the slice holding id and its index within it.
func locate(elements *[]*Element, id string) (*[]*Element, int) {
	for i, el := range *elements {
		if el.ID == id {
			return elements, i
		}
		if list, idx := locate(&el.Children, id); list != nil {
			return list, idx
		}
	}
	return nil, -1
}

func pruneIDs(ids []string, gone *Element) []string {
	if len(ids) == 0 {
		return ids
	}
	removed := map[string]bool{}
	gone.Walk(func(e *Element) { removed[e.ID] = true })
	out := ids[:0:0]
	for _, id := range ids {
		if !removed[id] {
			out = append(out, id)
		}
	}
	return out
}

// DeleteElement removes id from the document. Removing a section restacks
// the remaining ones and shrinks the canvas to fit.
func (o *Ops) DeleteElement(doc *Document, id string) *Document {
	out := doc.Clone()
	list, idx := locate(&out.Elements, id)
	if list == nil {
		return miss(doc, "deleteElement", "id", id)
	}
	removed := (*list)[idx]
	*list = append((*list)[:idx], (*list)[idx+1:]...)
	out.VisiblePopups = pruneIDs(out.VisiblePopups, removed)

	if removed.Type == TypeSection && list == &out.Elements {
		stacked := restack(out, out.ViewMode())
		out.Canvas.Height = Height(math.Max(stacked+100, 100))
	}
	return o.touch(out)
}

func (o *Ops) MoveElementUp(doc *Document, id string) *Document {
	return o.moveElement(doc, id, -1)
}

func (o *Ops) MoveElementDown(doc *Document, id string) *Document {
	return o.moveElement(doc, id, 1)
}

func (o *Ops) moveElement(doc *Document, id string, delta int) *Document {
	idx := doc.indexOf(id)
	if idx < 0 {
		return miss(doc, "moveElement", "id", id)
	}
	to := idx + delta
	if to < 0 || to >= len(doc.Elements) {
		return doc
	}
	out := doc.Clone()
	out.Elements[idx], out.Elements[to] = out.Elements[to], out.Elements[idx]
	stacked := restack(out, out.ViewMode())
	out.Canvas.Height = Height(stacked + 100)
	return o.touch(out)
}

// DuplicateElement inserts a copy of id right after it, offset by 10px on
// every breakpoint.
func (o *Ops) DuplicateElement(doc *Document, id string) *Document {
	out := doc.Clone()
	list, idx := locate(&out.Elements, id)
	if list == nil {
		return miss(doc, "duplicateElement", "id", id)
	}
	ids := o.ids(out)
	dup := (*list)[idx].Clone()
	dup.Walk(func(e *Element) { e.ID = ids.next(e.ID) })

	dup.ensureMaps()
	for _, bp := range Breakpoints {
		p := dup.PositionAt(bp)
		p.Y += 10
		if dup.Type != TypeSection {
			p.X += 10
		}
		dup.Position[bp] = p
	}

	rest := append([]*Element{dup}, (*list)[idx+1:]...)
	*list = append((*list)[:idx+1], rest...)
	return o.touch(out)
}

const (
	groupWidth  = 300
	groupHeight = 200
)

// GroupElements moves the top-level elements named by ids into a new group
// appended at the origin. It returns the group id, or "" when none of the
// ids resolve.
func (o *Ops) GroupElements(doc *Document, ids []string) (*Document, string) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := doc.Clone()
	var members, keep []*Element
	for _, el := range out.Elements {
		if want[el.ID] {
			members = append(members, el)
		} else {
			keep = append(keep, el)
		}
	}
	if len(members) == 0 {
		return miss(doc, "groupElements", "ids", ids), ""
	}

	group := NewElement(o.ids(out).next(string(TypeGroup)), TypeGroup)
	group.ResponsiveStyles = map[Breakpoint]Styles{Desktop: {}}
	for _, bp := range Breakpoints {
		group.Size[bp] = Size{Width: groupWidth, Height: groupHeight}
		group.Position[bp] = Position{Z: defaultZ}
	}
	for _, m := range members {
		m.ensureMaps()
		for _, bp := range Breakpoints {
			m.Position[bp] = Position{Z: zOr(m.PositionAt(bp).Z, defaultZ)}
		}
	}
	group.Children = members

	if keep == nil {
		keep = []*Element{}
	}
	out.Elements = append(keep, group)
	return o.touch(out), group.ID
}

// UngroupElements replaces a top-level group with its children, moving
// them back into page coordinates.
func (o *Ops) UngroupElements(doc *Document, groupID string) *Document {
	idx := doc.indexOf(groupID)
	if idx < 0 || doc.Elements[idx].Type != TypeGroup {
		return miss(doc, "ungroupElements", "id", groupID)
	}
	out := doc.Clone()
	group := out.Elements[idx]
	for _, c := range group.Children {
		c.ensureMaps()
		for _, bp := range Breakpoints {
			origin := group.PositionAt(bp)
			p := c.PositionAt(bp)
			p.X += origin.X
			p.Y += origin.Y
			if c.Type == TypeSection {
				p.X = 0
			}
			c.Position[bp] = p
		}
	}
	elements := make([]*Element, 0, len(out.Elements)-1+len(group.Children))
	elements = append(elements, out.Elements[:idx]...)
	elements = append(elements, group.Children...)
	elements = append(elements, out.Elements[idx+1:]...)
	out.Elements = elements
	return o.touch(out)
}

// Normalize brings every element of a loaded document into the
// per-breakpoint shape and reports component data that does not fit its
// element type.
func (o *Ops) Normalize(doc *Document) (*Document, []FieldError) {
	out := doc.Clone()
	if out.Canvas.Width == 0 {
		out.Canvas.Width = Desktop.CanvasWidth()
	}
	if out.Elements == nil {
		out.Elements = []*Element{}
	}
	var problems []FieldError
	for i, el := range out.Elements {
		out.Elements[i] = InitializeResponsiveData(el)
		out.Elements[i].Walk(func(e *Element) {
			if e.Type == TypeSection {
				for bp, p := range e.Position {
					p.X = 0
					e.Position[bp] = p
				}
			}
			for _, fe := range ValidateComponentData(e.Type, GetResponsiveValues(e, Desktop).ComponentData) {
				fe.Field = e.ID + "." + fe.Field
				problems = append(problems, fe)
			}
		})
	}
	return out, problems
}
